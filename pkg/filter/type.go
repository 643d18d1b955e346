package filter

import "time"

// Type is the coarse category of a filter, used by the prefetch advisor to
// reason about which views a driver is likely to open next.
type Type string

const (
	// TypeToday covers filters whose window is the current calendar day.
	TypeToday Type = "today"

	// TypeThisWeek covers filters whose window starts on the current week's Monday.
	TypeThisWeek Type = "this_week"

	// TypeThisMonth covers filters whose window starts on the 1st of the current month.
	TypeThisMonth Type = "this_month"

	// TypeCustom covers every other date window, including open-ended ones.
	TypeCustom Type = "custom"
)

// KnownTypes lists the non-custom categories in a stable order.
var KnownTypes = []Type{TypeToday, TypeThisWeek, TypeThisMonth}

// Today returns a filter covering the current calendar day in now's location.
func Today(now time.Time, limit int) Filter {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := endOfDay(now)
	return Filter{StartDate: &start, EndDate: &end, Limit: limit, SortBy: "date"}
}

// ThisWeek returns a filter covering Monday through the end of the current
// day. The end bound is day-granular so the filter key, and with it the cache
// key, stays stable across calls within one day.
func ThisWeek(now time.Time, limit int) Filter {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started six days earlier
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(weekday - 1))
	end := endOfDay(now)
	return Filter{StartDate: &start, EndDate: &end, Limit: limit, SortBy: "date"}
}

// ThisMonth returns a filter covering the 1st of the month through the end of
// the current day.
func ThisMonth(now time.Time, limit int) Filter {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := endOfDay(now)
	return Filter{StartDate: &start, EndDate: &end, Limit: limit, SortBy: "date"}
}

func endOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// TypeOf classifies a filter against the given current time.
func TypeOf(f Filter, now time.Time) Type {
	if f.StartDate == nil {
		return TypeCustom
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case f.StartDate.Equal(dayStart):
		return TypeToday
	case f.StartDate.Equal(ThisWeek(now, f.Limit).startOrZero()):
		return TypeThisWeek
	case f.StartDate.Equal(ThisMonth(now, f.Limit).startOrZero()):
		return TypeThisMonth
	default:
		return TypeCustom
	}
}

func (f Filter) startOrZero() time.Time {
	if f.StartDate == nil {
		return time.Time{}
	}
	return *f.StartDate
}
