package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind is the closed set of recurrence kinds.
type Kind int

const (
	KindHourly Kind = iota + 1
	KindDaily
	KindWeekly
	KindMonthly
)

// Kinds lists every kind in menu order.
var Kinds = []Kind{KindHourly, KindDaily, KindWeekly, KindMonthly}

func (k Kind) String() string {
	switch k {
	case KindHourly:
		return "hourly"
	case KindDaily:
		return "daily"
	case KindWeekly:
		return "weekly"
	case KindMonthly:
		return "monthly"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Label is the capitalized name used in chat replies.
func (k Kind) Label() string {
	s := k.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseKind maps a command name ("hourly", "/daily", ...) to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "/"))
	for _, k := range Kinds {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Recurrence is the rule that places a job's fire instants.
// Hour/Minute apply to every kind but hourly; Weekday only to weekly and Day
// only to monthly.
type Recurrence struct {
	Kind    Kind
	Hour    int
	Minute  int
	Weekday time.Weekday
	Day     int
}

func Hourly() Recurrence { return Recurrence{Kind: KindHourly} }

func Daily(hour, minute int) Recurrence {
	return Recurrence{Kind: KindDaily, Hour: hour, Minute: minute}
}

func Weekly(day time.Weekday, hour, minute int) Recurrence {
	return Recurrence{Kind: KindWeekly, Weekday: day, Hour: hour, Minute: minute}
}

func Monthly(day, hour, minute int) Recurrence {
	return Recurrence{Kind: KindMonthly, Day: day, Hour: hour, Minute: minute}
}

// Validate rejects out-of-range parameters. Monthly days stop at 28 so every
// month has the slot.
func (r Recurrence) Validate() error {
	switch r.Kind {
	case KindHourly:
		return nil
	case KindDaily, KindWeekly, KindMonthly:
	default:
		return fmt.Errorf("unknown recurrence kind %d", int(r.Kind))
	}
	if r.Hour < 0 || r.Hour > 23 {
		return fmt.Errorf("%s: hour %d out of range", r.Kind, r.Hour)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return fmt.Errorf("%s: minute %d out of range", r.Kind, r.Minute)
	}
	if r.Kind == KindWeekly && (r.Weekday < time.Sunday || r.Weekday > time.Saturday) {
		return fmt.Errorf("weekly: weekday %d out of range", int(r.Weekday))
	}
	if r.Kind == KindMonthly && (r.Day < 1 || r.Day > 28) {
		return fmt.Errorf("monthly: day %d out of range (1..28)", r.Day)
	}
	return nil
}

// CronSpec renders the rule as a standard 5-field cron expression
// (weekday field Sunday=0).
func (r Recurrence) CronSpec() string {
	switch r.Kind {
	case KindHourly:
		return "@every 1h"
	case KindDaily:
		return fmt.Sprintf("%d %d * * *", r.Minute, r.Hour)
	case KindWeekly:
		return fmt.Sprintf("%d %d * * %d", r.Minute, r.Hour, int(r.Weekday))
	case KindMonthly:
		return fmt.Sprintf("%d %d %d * *", r.Minute, r.Hour, r.Day)
	default:
		return ""
	}
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule returns the cron schedule evaluated in loc.
func (r Recurrence) Schedule(loc *time.Location) (cron.Schedule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Kind == KindHourly {
		return cron.Every(time.Hour), nil
	}
	if loc == nil {
		loc = time.Local
	}
	return specParser.Parse("CRON_TZ=" + loc.String() + " " + r.CronSpec())
}

// First returns the first fire instant for a job created at now. Hourly
// fires immediately; the other kinds fire at the next slot at or after now,
// at second granularity.
func (r Recurrence) First(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc).Truncate(time.Second)
	if r.Kind == KindHourly {
		return now
	}
	s, err := r.Schedule(loc)
	if err != nil {
		return time.Time{}
	}
	// cron's Next is strictly after its argument.
	return s.Next(now.Add(-time.Second))
}

// Next returns the fire instant one recurrence unit after prev. It returns
// the zero time when the rule is invalid.
func (r Recurrence) Next(prev time.Time, loc *time.Location) time.Time {
	if r.Kind == KindHourly {
		return prev.Add(time.Hour)
	}
	s, err := r.Schedule(loc)
	if err != nil {
		return time.Time{}
	}
	return s.Next(prev)
}

// Describe renders the cadence for humans, e.g. "every Thursday at 10:00".
func (r Recurrence) Describe() string {
	at := fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
	switch r.Kind {
	case KindHourly:
		return "every hour"
	case KindDaily:
		return "every day at " + at
	case KindWeekly:
		return "every " + r.Weekday.String() + " at " + at
	case KindMonthly:
		return fmt.Sprintf("on day %d of every month at %s", r.Day, at)
	default:
		return r.Kind.String()
	}
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ParseWeekday accepts English day names ("thursday", "thu"). Numbers are
// rejected on purpose: 0-indexed weekday numbers differ between conventions.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if s == name || s == name[:3] {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid weekday %q (use a day name like \"thursday\")", s)
}
