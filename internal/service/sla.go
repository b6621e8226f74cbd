package service

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// Calendar supplies business-day information for SLA math.
type Calendar interface {
	IsWorkday(t time.Time) bool
}

// Response windows in business hours per priority.
const (
	slaCriticalHours = 4
	slaHighHours     = 24
	slaMediumHours   = 72
	slaLowHours      = 168
)

// ResponseWindow returns the business-hour window for a priority. Unknown
// priorities get the low window.
func ResponseWindow(priority domain.IncidentPriority) time.Duration {
	switch priority {
	case domain.IncidentPriorityCritical:
		return slaCriticalHours * time.Hour
	case domain.IncidentPriorityHigh:
		return slaHighHours * time.Hour
	case domain.IncidentPriorityMedium:
		return slaMediumHours * time.Hour
	default:
		return slaLowHours * time.Hour
	}
}

// ComputeDeadline walks forward from createdAt accumulating time only on
// workdays. A workday counts in full; non-workdays are skipped whole. Pure
// given the same calendar.
func ComputeDeadline(createdAt time.Time, priority domain.IncidentPriority, calendar Calendar) time.Time {
	remaining := ResponseWindow(priority)
	cur := createdAt
	for {
		if !calendar.IsWorkday(cur) {
			cur = nextMidnight(cur)
			continue
		}
		endOfDay := nextMidnight(cur)
		available := endOfDay.Sub(cur)
		if available >= remaining {
			return cur.Add(remaining)
		}
		remaining -= available
		cur = endOfDay
	}
}

func nextMidnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

// WeekendCalendar treats Saturday, Sunday and the configured holidays as
// non-workdays. Holiday keys are ISO dates (2006-01-02).
type WeekendCalendar struct {
	holidays map[string]struct{}
}

// NewWeekendCalendar builds a calendar from holiday date strings.
func NewWeekendCalendar(holidays []string) *WeekendCalendar {
	set := make(map[string]struct{}, len(holidays))
	for _, day := range holidays {
		set[day] = struct{}{}
	}
	return &WeekendCalendar{holidays: set}
}

// IsWorkday implements Calendar.
func (c *WeekendCalendar) IsWorkday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[t.Format("2006-01-02")]
	return !holiday
}
