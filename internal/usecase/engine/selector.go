package engine

import (
	"context"
	"fmt"
	"math/rand/v2"

	"ghost-activity/internal/domain"
)

// PersonaSelector выбирает случайное подмножество активных персон без повторов.
type PersonaSelector struct {
	personas domain.PersonaRepo
}

// NewPersonaSelector создаёт селектор.
func NewPersonaSelector(personas domain.PersonaRepo) *PersonaSelector {
	return &PersonaSelector{personas: personas}
}

// Pick возвращает не более count персон. Короткий список не считается ошибкой.
func (s *PersonaSelector) Pick(ctx context.Context, count int, personality domain.Personality, rnd *rand.Rand) ([]domain.Persona, error) {
	if count <= 0 {
		return nil, nil
	}
	all, err := s.personas.ListActivePersonas(ctx, personality)
	if err != nil {
		return nil, fmt.Errorf("список персон: %w", err)
	}
	active := all[:0:0]
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	shuffle(rnd, active)
	if len(active) > count {
		active = active[:count]
	}
	return active, nil
}

// PoolAllocator достаёт неиспользованные элементы пула для постов.
// Захват происходит позже, при публикации, поэтому кандидатов берётся с запасом.
type PoolAllocator struct {
	pool       domain.PoolRepo
	oversample int
}

// NewPoolAllocator создаёт аллокатор; oversample — множитель выборки кандидатов.
func NewPoolAllocator(pool domain.PoolRepo, oversample int) *PoolAllocator {
	if oversample < 1 {
		oversample = 3
	}
	return &PoolAllocator{pool: pool, oversample: oversample}
}

// Allocate возвращает до count неиспользованных элементов пула.
func (a *PoolAllocator) Allocate(ctx context.Context, kind domain.ContentKind, count int, personality domain.Personality, rnd *rand.Rand) ([]domain.PoolItem, error) {
	candidates, err := a.Candidates(ctx, kind, count, personality, rnd)
	if err != nil {
		return nil, err
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates, nil
}

// Candidates возвращает весь перемешанный запас кандидатов, до count*oversample элементов.
// Элементы сверх count служат заменой, если захват основного кандидата проиграл гонку.
func (a *PoolAllocator) Candidates(ctx context.Context, kind domain.ContentKind, count int, personality domain.Personality, rnd *rand.Rand) ([]domain.PoolItem, error) {
	if kind != domain.KindPost {
		return nil, fmt.Errorf("пул поддерживает только посты, получено %q", kind)
	}
	if count <= 0 {
		return nil, nil
	}
	candidates, err := a.pool.ListUnusedPoolItems(ctx, kind, personality, count*a.oversample)
	if err != nil {
		return nil, fmt.Errorf("кандидаты пула: %w", err)
	}
	unused := candidates[:0:0]
	for _, item := range candidates {
		if !item.Used {
			unused = append(unused, item)
		}
	}
	shuffle(rnd, unused)
	return unused, nil
}

// shuffle — перемешивание Фишера–Йетса из math/rand/v2.
func shuffle[T any](rnd *rand.Rand, items []T) {
	rnd.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
