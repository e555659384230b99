package engine

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghost-activity/internal/domain"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xabcdef))
}

func TestDailyRatioIsPureFunctionOfDateAndKind(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	morning := time.Date(2026, 10, 14, 9, 0, 0, 0, loc)
	evening := time.Date(2026, 10, 14, 23, 30, 0, 0, loc)

	for _, kind := range plannedKinds {
		offset := KindOffset(kind)
		assert.Equal(t, DailyRatio(morning, offset), DailyRatio(evening, offset), "kind %s", kind)
		assert.Equal(t, DailyTarget(40, morning, offset), DailyTarget(40, evening, offset))
	}
	assert.NotEqual(t, DailyRatio(morning, KindOffset(domain.KindPost)), DailyRatio(morning, KindOffset(domain.KindComment)))
	assert.NotEqual(t, DailyRatio(morning, 0), DailyRatio(morning.AddDate(0, 0, 7), 0))
}

func TestDailyRatioStaysInWeekdayRange(t *testing.T) {
	day := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 366; i++ {
		lo, hi := ratioRange(day.Weekday())
		for _, kind := range plannedKinds {
			r := DailyRatio(day, KindOffset(kind))
			if r < lo || r > hi {
				t.Fatalf("%s %s: коэффициент %f вне [%f, %f]", day.Format("2006-01-02"), kind, r, lo, hi)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

func TestRatioRangeByWeekday(t *testing.T) {
	lo, hi := ratioRange(time.Saturday)
	assert.Equal(t, []float64{1.2, 1.3}, []float64{lo, hi})
	lo, hi = ratioRange(time.Tuesday)
	assert.Equal(t, []float64{0.8, 0.9}, []float64{lo, hi})
	lo, hi = ratioRange(time.Thursday)
	assert.Equal(t, []float64{0.9, 1.1}, []float64{lo, hi})
}

func TestDailyTargetFloorAndDisabled(t *testing.T) {
	monday := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	assert.Equal(t, 1, DailyTarget(1, monday, 0))
	assert.Zero(t, DailyTarget(0, monday, 0))
	assert.Zero(t, DailyTarget(-5, monday, 0))

	saturday := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, saturday.Weekday())
	got := DailyTarget(20, saturday, 0)
	assert.GreaterOrEqual(t, got, 24)
	assert.LessOrEqual(t, got, 26)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 5, Remaining(20, 15))
	assert.Zero(t, Remaining(20, 20))
	assert.Zero(t, Remaining(20, 31))
}

func TestCycleQuotaScenarioWrapWindow(t *testing.T) {
	slots := TotalSlots(14, 4, 2)
	require.Equal(t, 28, slots)

	seen := map[int]bool{}
	for seed := uint64(0); seed < 2000; seed++ {
		q := CycleQuota(20, slots, seeded(seed))
		lo := int(math.Round(20.0 / 28 * 0.5))
		hi := int(math.Round(20.0 / 28 * 1.5))
		if q < lo || q > hi {
			t.Fatalf("квота %d вне [%d, %d]", q, lo, hi)
		}
		seen[q] = true
	}
	assert.True(t, seen[0], "ожидали циклы без публикаций")
	assert.True(t, seen[1], "ожидали циклы с одной публикацией")
}

func TestCycleQuotaEdgeCases(t *testing.T) {
	rnd := seeded(1)
	assert.Zero(t, CycleQuota(0, 28, rnd))
	assert.Zero(t, CycleQuota(-3, 28, rnd))
	assert.Zero(t, CycleQuota(10, 0, rnd))
	for i := 0; i < 100; i++ {
		assert.LessOrEqual(t, CycleQuota(3, 1, rnd), 3)
	}
}

func TestCycleQuotaSumApproximatesRemaining(t *testing.T) {
	const (
		remaining = 280
		slots     = 28
		days      = 200
	)
	rnd := seeded(42)
	total := 0
	for d := 0; d < days; d++ {
		daySum := 0
		for c := 0; c < slots; c++ {
			daySum += CycleQuota(remaining, slots, rnd)
		}
		if daySum < remaining/2 || daySum > remaining*3/2 {
			t.Fatalf("сумма за день %d вне допустимого разброса", daySum)
		}
		total += daySum
	}
	mean := float64(total) / days
	assert.InDelta(t, remaining, mean, remaining*0.03)
}

func TestPlanCycleScenario(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, loc)
	require.Equal(t, time.Wednesday, now.Weekday())

	cfg := domain.EngineConfig{Enabled: true, ActiveStartHour: 14, ActiveEndHour: 4, PostsPerDay: 20}
	require.True(t, IsActive(now.Hour(), cfg.ActiveStartHour, cfg.ActiveEndHour))

	for seed := uint64(0); seed < 200; seed++ {
		plan := PlanCycle(cfg, now, domain.DailyCounts{}, 2, seeded(seed))
		assert.Equal(t, 14, plan.ActiveHours)
		assert.Equal(t, 28, plan.TotalSlots)
		assert.Equal(t, plan.Targets.Posts, plan.Remaining.Posts)
		assert.GreaterOrEqual(t, plan.Targets.Posts, 18)
		assert.LessOrEqual(t, plan.Targets.Posts, 22)
		assert.Contains(t, []int{0, 1}, plan.Quota.Posts)
		assert.Zero(t, plan.Quota.Comments)
		assert.Zero(t, plan.Quota.Replies)
	}
}

func TestPlanCycleSubtractsProduced(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC)
	cfg := domain.EngineConfig{Enabled: true, ActiveStartHour: 14, ActiveEndHour: 4, PostsPerDay: 20, CommentsPerDay: 10}
	plan := PlanCycle(cfg, now, domain.DailyCounts{Posts: 100, Comments: 3}, 2, seeded(7))
	assert.Zero(t, plan.Remaining.Posts)
	assert.Zero(t, plan.Quota.Posts)
	assert.Equal(t, plan.Targets.Comments-3, plan.Remaining.Comments)
}
