package reminder

import (
	"errors"
	"fmt"
	"time"
)

// Params holds the fixed time parameters every scheduling command uses.
type Params struct {
	DailyHour, DailyMinute     int
	WeeklyDay                  time.Weekday
	WeeklyHour, WeeklyMinute   int
	MonthlyDay                 int
	MonthlyHour, MonthlyMinute int
}

// DefaultTimezone is used for firing and rendering when no zone is configured.
const DefaultTimezone = "Asia/Jakarta"

// DefaultParams: daily 08:00, weekly Thursday 10:00, monthly day 1 09:00.
func DefaultParams() Params {
	return Params{
		DailyHour: 8, DailyMinute: 0,
		WeeklyDay: time.Thursday, WeeklyHour: 10, WeeklyMinute: 0,
		MonthlyDay: 1, MonthlyHour: 9, MonthlyMinute: 0,
	}
}

// Recurrence builds the rule for kind k.
func (p Params) Recurrence(k Kind) Recurrence {
	switch k {
	case KindDaily:
		return Daily(p.DailyHour, p.DailyMinute)
	case KindWeekly:
		return Weekly(p.WeeklyDay, p.WeeklyHour, p.WeeklyMinute)
	case KindMonthly:
		return Monthly(p.MonthlyDay, p.MonthlyHour, p.MonthlyMinute)
	default:
		return Hourly()
	}
}

func (p Params) Validate() error {
	var errs []error
	for _, k := range Kinds {
		if err := p.Recurrence(k).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("reminders: %w", err))
		}
	}
	return errors.Join(errs...)
}
