package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("500ms", "10s", "1m"). Clock times are
// "HH:MM" (24h) and weekdays are English names ("thursday").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Topic     TopicConfig     `json:"topic"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Reminders RemindersConfig `json:"reminders"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Admin     AdminConfig     `json:"admin"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// TopicConfig selects where rendered reminders are fanned out.
//
// driver "sns" (default) publishes to an AWS SNS topic; "redis" uses
// PUBLISH on a channel; "none" disables the fan-out.
type TopicConfig struct {
	Driver          string `json:"driver,omitempty"`
	ARN             string `json:"arn,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"` // e.g. localstack
	Subject         string `json:"subject,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	RedisChannel  string `json:"redis_channel,omitempty"`
}

type SchedulerConfig struct {
	Timezone        string `json:"timezone,omitempty"`
	Tick            string `json:"tick,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	DeliveryTimeout string `json:"delivery_timeout,omitempty"`
}

// RemindersConfig holds the fixed slots used by /daily, /weekly and /monthly.
//
// Defaults: daily "08:00", weekly "thursday" "10:00", monthly day 1 "09:00".
type RemindersConfig struct {
	Daily      string `json:"daily,omitempty"`
	WeeklyDay  string `json:"weekly_day,omitempty"`
	WeeklyAt   string `json:"weekly_at,omitempty"`
	MonthlyDay int    `json:"monthly_day,omitempty"`
	MonthlyAt  string `json:"monthly_at,omitempty"`
}

type NotifierConfig struct {
	Timezone   string `json:"timezone,omitempty"`
	TimeFormat string `json:"time_format,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional delivery journal.
//
//	"storage": { "driver": "sqlite", "path": "./remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// AdminConfig controls the operator HTTP endpoint (/healthz, /status,
// /deliveries and optionally /debug/pprof/). Defaults to 127.0.0.1:6060.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
}
