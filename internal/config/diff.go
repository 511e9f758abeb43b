package config

import (
	"strings"

	logx "remindbot/pkg/logx"
)

// Sections that take effect without a restart.
var hotSections = map[string]bool{"logging": true, "notifier": true, "reminders": true, "admin": true}

// SummarizeChange lists the changed sections and safe log fields (secrets
// are reported only as set/unset).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	var attrs []logx.Field

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
		)
	}
	if oldCfg.Topic != newCfg.Topic {
		changed = append(changed, "topic")
		attrs = append(attrs,
			logx.String("topic.driver", newCfg.Topic.Driver),
			logx.String("topic.arn", newCfg.Topic.ARN),
			logx.Bool("topic.credentials_set", newCfg.Topic.AccessKeyID != ""),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.Int("scheduler.workers", newCfg.Scheduler.Workers),
		)
	}
	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.daily", newCfg.Reminders.Daily),
			logx.String("reminders.weekly_day", newCfg.Reminders.WeeklyDay),
			logx.Int("reminders.monthly_day", newCfg.Reminders.MonthlyDay),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.timezone", newCfg.Notifier.Timezone),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if storageKey(oldCfg.Storage) != storageKey(newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage", storageKey(newCfg.Storage)))
	}
	if oldCfg.Admin != newCfg.Admin {
		changed = append(changed, "admin")
		attrs = append(attrs,
			logx.Bool("admin.enabled", newCfg.Admin.Enabled),
			logx.String("admin.addr", newCfg.Admin.Addr),
			logx.Bool("admin.token_set", newCfg.Admin.Token != ""),
		)
	}
	return changed, attrs
}

// RestartRequired returns the changed sections that only apply on restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !hotSections[s] {
			out = append(out, s)
		}
	}
	return out
}

func storageKey(s *StorageConfig) string {
	if s == nil {
		return "none"
	}
	return strings.ToLower(strings.TrimSpace(s.Driver)) + ":" + strings.TrimSpace(s.Path)
}
