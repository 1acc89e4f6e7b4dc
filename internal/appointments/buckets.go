package appointments

import (
	"sort"
	"time"
)

// SortBySchedule orders by (date, time) ascending using plain string
// comparison. That is only correct because both fields are validated as
// fixed-width zero-padded values. Ties keep the incoming order.
func SortBySchedule(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].Time < list[j].Time
	})
}

// Today formats now as a calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(time.DateOnly)
}

// Agenda keeps scheduled appointments dated today or later.
func Agenda(list []Appointment, today string) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if a.Status == StatusScheduled && a.Date >= today {
			out = append(out, a)
		}
	}
	return out
}

// History keeps past appointments and anything completed or cancelled.
func History(list []Appointment, today string) []Appointment {
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if a.Date < today || a.Status == StatusCompleted || a.Status == StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}

// Stats aggregates the in-memory set for the dashboard.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"byStatus"`
	ByTreatment map[string]int `json:"byTreatment"`
	Upcoming    int            `json:"upcoming"`
	Messages    int            `json:"messages"`
}

// ComputeStats reduces over the full set in one pass.
func ComputeStats(list []Appointment, today string) Stats {
	stats := Stats{
		Total: len(list),
		ByStatus: map[Status]int{
			StatusScheduled: 0,
			StatusCompleted: 0,
			StatusCancelled: 0,
		},
		ByTreatment: make(map[string]int),
	}
	for _, a := range list {
		stats.ByStatus[a.Status]++
		stats.ByTreatment[a.Treatment]++
		stats.Messages += len(a.Messages)
		if a.Status == StatusScheduled && a.Date >= today {
			stats.Upcoming++
		}
	}
	return stats
}
