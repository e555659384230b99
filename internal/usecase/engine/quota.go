package engine

import (
	"math"
	"math/rand/v2"
	"time"

	"ghost-activity/internal/domain"
)

// Разброс квоты одного цикла вокруг равномерной доли: ±50%.
const quotaSpread = 0.5

// dailySeedStream смешивается со смещением типа, чтобы последовательности PCG
// для постов, комментариев и ответов не совпадали в один и тот же день.
const dailySeedStream = 0x9e3779b97f4a7c15

// KindOffset возвращает смещение, которое разводит дневные коэффициенты типов контента.
func KindOffset(kind domain.ContentKind) uint64 {
	switch kind {
	case domain.KindComment:
		return 1
	case domain.KindReply:
		return 2
	}
	return 0
}

// ratioRange возвращает диапазон дневного коэффициента для дня недели.
func ratioRange(day time.Weekday) (lo, hi float64) {
	switch day {
	case time.Saturday, time.Sunday:
		return 1.2, 1.3
	case time.Monday, time.Tuesday:
		return 0.8, 0.9
	}
	return 0.9, 1.1
}

// DailyRatio — детерминированный коэффициент для даты и смещения типа.
// PCG сидируется календарной датой и смещением, поэтому повторные вызовы в тот же день совпадают.
func DailyRatio(date time.Time, offset uint64) float64 {
	y, m, d := date.Date()
	seed := uint64(y)*10000 + uint64(m)*100 + uint64(d)
	rng := rand.New(rand.NewPCG(seed, dailySeedStream^offset))
	lo, hi := ratioRange(date.Weekday())
	return lo + rng.Float64()*(hi-lo)
}

// DailyTarget корректирует базовую дневную цель на коэффициент дня.
// Нулевая или отрицательная база означает, что тип выключен.
func DailyTarget(base int, date time.Time, offset uint64) int {
	if base <= 0 {
		return 0
	}
	target := int(math.Round(float64(base) * DailyRatio(date, offset)))
	if target < 1 {
		return 1
	}
	return target
}

// Remaining возвращает остаток дневной цели.
func Remaining(target, produced int) int {
	if produced >= target {
		return 0
	}
	return target - produced
}

// TotalSlots — число циклов в активном окне за сутки.
func TotalSlots(start, end, cyclesPerHour int) int {
	if cyclesPerHour <= 0 {
		cyclesPerHour = 1
	}
	return ActiveHours(start, end) * cyclesPerHour
}

// CycleQuota распределяет остаток на текущий цикл со случайным разбросом.
// Результат не превышает остаток и не бывает отрицательным.
func CycleQuota(remaining, totalSlots int, rnd *rand.Rand) int {
	if remaining <= 0 || totalSlots <= 0 {
		return 0
	}
	base := float64(remaining) / float64(totalSlots)
	factor := 1 + (rnd.Float64()*2-1)*quotaSpread
	quota := int(math.Round(base * factor))
	if quota < 0 {
		return 0
	}
	if quota > remaining {
		return remaining
	}
	return quota
}

// CyclePlan — план текущего цикла по всем типам контента.
type CyclePlan struct {
	ActiveHours int
	TotalSlots  int
	Targets     domain.KindCounts
	Remaining   domain.KindCounts
	Quota       domain.KindCounts
}

var plannedKinds = []domain.ContentKind{domain.KindPost, domain.KindComment, domain.KindReply}

// PlanCycle считает дневные цели, остатки и квоты цикла.
// localNow должен быть в опорном часовом поясе движка.
func PlanCycle(cfg domain.EngineConfig, localNow time.Time, produced domain.DailyCounts, cyclesPerHour int, rnd *rand.Rand) CyclePlan {
	plan := CyclePlan{
		ActiveHours: ActiveHours(cfg.ActiveStartHour, cfg.ActiveEndHour),
		TotalSlots:  TotalSlots(cfg.ActiveStartHour, cfg.ActiveEndHour, cyclesPerHour),
	}
	for _, kind := range plannedKinds {
		target := DailyTarget(cfg.BaseTarget(kind), localNow, KindOffset(kind))
		remaining := Remaining(target, produced.Of(kind))
		plan.Targets.Add(kind, target)
		plan.Remaining.Add(kind, remaining)
		plan.Quota.Add(kind, CycleQuota(remaining, plan.TotalSlots, rnd))
	}
	return plan
}
