package engine

// IsActive сообщает, попадает ли час hour в активное окно [start, end).
// Если start > end, окно переходит через полночь.
func IsActive(hour, start, end int) bool {
	hour, start, end = normalizeHour(hour), normalizeHour(start), normalizeHour(end)
	if start <= end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}

// ActiveHours возвращает число активных часов окна по той же арифметике, что и IsActive.
func ActiveHours(start, end int) int {
	start, end = normalizeHour(start), normalizeHour(end)
	if start <= end {
		return end - start
	}
	return 24 - start + end
}

func normalizeHour(h int) int {
	return ((h % 24) + 24) % 24
}
