package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// activeSet перечисляет часы окна обходом от start до end по кругу.
func activeSet(start, end int) map[int]bool {
	set := map[int]bool{}
	for h := start; h != end; h = (h + 1) % 24 {
		set[h] = true
	}
	return set
}

func TestIsActiveExhaustive(t *testing.T) {
	for start := 0; start < 24; start++ {
		for end := 0; end < 24; end++ {
			want := activeSet(start, end)
			for h := 0; h < 24; h++ {
				if got := IsActive(h, start, end); got != want[h] {
					t.Fatalf("IsActive(%d, %d, %d) = %v, ожидали %v", h, start, end, got, want[h])
				}
			}
			if got := ActiveHours(start, end); got != len(want) {
				t.Fatalf("ActiveHours(%d, %d) = %d, ожидали %d", start, end, got, len(want))
			}
		}
	}
}

func TestIsActiveWrapsMidnight(t *testing.T) {
	for h := 0; h < 24; h++ {
		want := h >= 14 || h < 4
		assert.Equal(t, want, IsActive(h, 14, 4), "час %d", h)
	}
	assert.Equal(t, 14, ActiveHours(14, 4))
}

func TestIsActiveSameDayWindow(t *testing.T) {
	assert.False(t, IsActive(8, 9, 18))
	assert.True(t, IsActive(9, 9, 18))
	assert.True(t, IsActive(17, 9, 18))
	assert.False(t, IsActive(18, 9, 18))
	assert.Equal(t, 9, ActiveHours(9, 18))
}

func TestIsActiveEmptyWindow(t *testing.T) {
	for h := 0; h < 24; h++ {
		assert.False(t, IsActive(h, 7, 7))
	}
	assert.Zero(t, ActiveHours(7, 7))
}

func TestNormalizeHourOutOfRange(t *testing.T) {
	assert.True(t, IsActive(25, 0, 2))
	assert.True(t, IsActive(-1, 22, 2))
	assert.Equal(t, 4, ActiveHours(-2, 2))
}
