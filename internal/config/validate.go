package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"remindbot/internal/reminder"
)

// Environment variables that override file values.
const (
	EnvTelegramToken   = "REMINDBOT_TELEGRAM_TOKEN"
	EnvTopicARN        = "REMINDBOT_TOPIC_ARN"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvRegion          = "AWS_REGION"
	EnvAdminToken      = "REMINDBOT_ADMIN_TOKEN"
)

// ValidationError lists every problem found in a configuration. It is fatal
// at startup.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// ApplyEnv overrides secrets and topic coordinates from the environment.
// A nil getenv means os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.Token, EnvTelegramToken)
	set(&c.Topic.ARN, EnvTopicARN)
	set(&c.Topic.AccessKeyID, EnvAccessKeyID)
	set(&c.Topic.SecretAccessKey, EnvSecretAccessKey)
	set(&c.Topic.Region, EnvRegion)
	set(&c.Admin.Token, EnvAdminToken)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var p []string
	add := func(format string, args ...any) { p = append(p, fmt.Sprintf(format, args...)) }

	if strings.TrimSpace(c.Telegram.Token) == "" {
		add("telegram.token is required (or set %s)", EnvTelegramToken)
	}
	if _, err := c.Telegram.PollTimeoutOrDefault(); err != nil {
		add("%v", err)
	}

	switch strings.ToLower(strings.TrimSpace(c.Topic.Driver)) {
	case "", "sns":
		if strings.TrimSpace(c.Topic.ARN) == "" {
			add("topic.arn is required (or set %s)", EnvTopicARN)
		}
		if strings.TrimSpace(c.Topic.Region) == "" {
			add("topic.region is required (or set %s)", EnvRegion)
		}
		if strings.TrimSpace(c.Topic.AccessKeyID) == "" {
			add("topic.access_key_id is required (or set %s)", EnvAccessKeyID)
		}
		if strings.TrimSpace(c.Topic.SecretAccessKey) == "" {
			add("topic.secret_access_key is required (or set %s)", EnvSecretAccessKey)
		}
	case "redis":
		if strings.TrimSpace(c.Topic.RedisAddr) == "" {
			add("topic.redis_addr is required for driver redis")
		}
		if strings.TrimSpace(c.Topic.RedisChannel) == "" {
			add("topic.redis_channel is required for driver redis")
		}
	case "none":
	default:
		add("topic.driver: unknown driver %q (use sns, redis or none)", c.Topic.Driver)
	}

	checkTZ := func(path, tz string) {
		if strings.TrimSpace(tz) == "" {
			return
		}
		if _, err := time.LoadLocation(strings.TrimSpace(tz)); err != nil {
			add("%s: unknown timezone %q", path, tz)
		}
	}
	checkTZ("scheduler.timezone", c.Scheduler.Timezone)
	checkTZ("notifier.timezone", c.Notifier.Timezone)
	if _, err := c.Scheduler.TickOrDefault(); err != nil {
		add("%v", err)
	}
	if _, err := c.Scheduler.DeliveryTimeoutOrDefault(); err != nil {
		add("%v", err)
	}
	if c.Scheduler.Workers < 0 {
		add("scheduler.workers must be >= 0")
	}
	if c.Scheduler.QueueSize < 0 {
		add("scheduler.queue_size must be >= 0")
	}
	if c.Notifier.RatePerSec < 0 {
		add("notifier.rate_per_sec must be >= 0")
	}

	if _, err := c.Reminders.Params(); err != nil {
		add("%v", err)
	}

	if st := c.Storage; st != nil {
		switch strings.ToLower(strings.TrimSpace(st.Driver)) {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(st.Path) == "" {
				add("storage.path is required for driver %s", st.Driver)
			}
		default:
			add("storage.driver: unknown driver %q (use file, sqlite or none)", st.Driver)
		}
		if _, err := st.BusyTimeoutOrDefault(); err != nil {
			add("%v", err)
		}
	}

	if c.Admin.Enabled && strings.TrimSpace(c.Admin.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(c.Admin.Addr)); err != nil {
			add("admin.addr: %v", err)
		}
	}

	if len(p) > 0 {
		return &ValidationError{Problems: p}
	}
	return nil
}

// Params resolves the reminder slots, falling back to the defaults for
// empty fields.
func (r RemindersConfig) Params() (reminder.Params, error) {
	p := reminder.DefaultParams()
	var err error
	if s := strings.TrimSpace(r.Daily); s != "" {
		if p.DailyHour, p.DailyMinute, err = reminder.ParseClock(s); err != nil {
			return p, fmt.Errorf("reminders.daily: %w", err)
		}
	}
	if s := strings.TrimSpace(r.WeeklyDay); s != "" {
		if p.WeeklyDay, err = reminder.ParseWeekday(s); err != nil {
			return p, fmt.Errorf("reminders.weekly_day: %w", err)
		}
	}
	if s := strings.TrimSpace(r.WeeklyAt); s != "" {
		if p.WeeklyHour, p.WeeklyMinute, err = reminder.ParseClock(s); err != nil {
			return p, fmt.Errorf("reminders.weekly_at: %w", err)
		}
	}
	if r.MonthlyDay != 0 {
		p.MonthlyDay = r.MonthlyDay
	}
	if s := strings.TrimSpace(r.MonthlyAt); s != "" {
		if p.MonthlyHour, p.MonthlyMinute, err = reminder.ParseClock(s); err != nil {
			return p, fmt.Errorf("reminders.monthly_at: %w", err)
		}
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
