package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remindbot/internal/reminder"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  poll_timeout: 15s
topic:
  arn: arn:aws:sns:ap-southeast-1:111122223333:reminders
  region: ap-southeast-1
  access_key_id: AKIAEXAMPLE
  secret_access_key: example-secret
scheduler:
  timezone: Asia/Jakarta
  workers: 2
reminders:
  daily: "07:30"
  weekly_day: monday
logging:
  level: debug
  console: true
`

func noEnv(string) string { return "" }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	m.SetEnv(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Scheduler.Workers != 2 || !cfg.Logging.Console {
		t.Fatalf("cfg = %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatal("Load should commit the config")
	}
	p, err := cfg.Reminders.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if p.DailyHour != 7 || p.DailyMinute != 30 || p.WeeklyDay != time.Monday || p.WeeklyHour != 10 || p.MonthlyDay != 1 {
		t.Fatalf("params = %+v", p)
	}
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	m := NewManager(writeFile(t, "config.json", `{"telegram":{"token":"x","owner_user_ids":[1]}}`))
	m.SetEnv(noEnv)
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown field", err)
	}

	m = NewManager(writeFile(t, "config.json", `{"telegram":{"token":"x"}} {}`))
	m.SetEnv(noEnv)
	if _, err := m.Load(); err == nil {
		t.Fatal("trailing data should be rejected")
	}
}

func TestMissingFileUsesEnvironment(t *testing.T) {
	env := map[string]string{
		EnvTelegramToken:   "999:env",
		EnvTopicARN:        "arn:aws:sns:us-east-1:1:t",
		EnvRegion:          "us-east-1",
		EnvAccessKeyID:     "AKIA",
		EnvSecretAccessKey: "secret",
	}
	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	m.SetEnv(func(k string) string { return env[k] })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" || cfg.Topic.SecretAccessKey != "secret" || cfg.Topic.Region != "us-east-1" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	m := NewManager(writeFile(t, "config.yaml", sampleYAML))
	m.SetEnv(func(k string) string {
		if k == EnvTelegramToken {
			return "override"
		}
		return ""
	})
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "override" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Scheduler: SchedulerConfig{Timezone: "Mars/Olympus", Tick: "soon"},
		Reminders: RemindersConfig{MonthlyDay: 31},
		Storage:   &StorageConfig{Driver: "sqlite"},
	}
	err := cfg.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	want := []string{"telegram.token", "topic.arn", "topic.region", "topic.access_key_id", "topic.secret_access_key", "scheduler.timezone", "scheduler.tick", "monthly", "storage.path"}
	msg := ve.Error()
	for _, w := range want {
		if !strings.Contains(msg, w) {
			t.Fatalf("missing %q in %q", w, msg)
		}
	}
	if len(ve.Problems) != len(want) {
		t.Fatalf("problems = %d, want %d: %v", len(ve.Problems), len(want), ve.Problems)
	}
}

func TestValidateTopicDrivers(t *testing.T) {
	base := Config{Telegram: TelegramConfig{Token: "x"}}

	redis := base
	redis.Topic = TopicConfig{Driver: "redis", RedisAddr: "localhost:6379"}
	if err := redis.Validate(); err == nil || !strings.Contains(err.Error(), "redis_channel") {
		t.Fatalf("redis err = %v", err)
	}
	sns := base
	sns.Topic = TopicConfig{ARN: "arn:aws:sns:us-east-1:1:t", Region: "us-east-1", AccessKeyID: "AKIA"}
	err := sns.Validate()
	if err == nil || !strings.Contains(err.Error(), "topic.secret_access_key is required") || strings.Contains(err.Error(), "topic.access_key_id") {
		t.Fatalf("sns err = %v", err)
	}
	sns.Topic.SecretAccessKey = "secret"
	if err := sns.Validate(); err != nil {
		t.Fatalf("sns with credentials err = %v", err)
	}

	none := base
	none.Topic = TopicConfig{Driver: "none"}
	if err := none.Validate(); err != nil {
		t.Fatalf("none err = %v", err)
	}
	bad := base
	bad.Topic = TopicConfig{Driver: "kafka"}
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("kafka err = %v", err)
	}
}

func TestRemindersParamsDefaults(t *testing.T) {
	p, err := RemindersConfig{}.Params()
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if p != reminder.DefaultParams() {
		t.Fatalf("params = %+v", p)
	}
	if _, err := (RemindersConfig{WeeklyDay: "3"}).Params(); err == nil {
		t.Fatal("numeric weekday should be rejected")
	}
	if _, err := (RemindersConfig{Daily: "8am"}).Params(); err == nil {
		t.Fatal("bad clock should be rejected")
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewManager(path)
	m.SetEnv(noEnv)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if m.reload(context.Background()) {
		t.Fatal("unchanged file should not publish")
	}

	updated := strings.Replace(sampleYAML, "level: debug", "level: warn", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	if !m.reload(context.Background()) {
		t.Fatal("changed file should publish")
	}
	got := <-ch
	if got.Logging.Level != "warn" || m.Get().Logging.Level != "warn" {
		t.Fatalf("level = %q", got.Logging.Level)
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return errors.New("no") })
	if err := os.WriteFile(path, []byte(strings.Replace(updated, "level: warn", "level: info", 1)), 0o600); err != nil {
		t.Fatal(err)
	}
	if m.reload(context.Background()) {
		t.Fatal("validator rejection should not publish")
	}
	if m.Get().Logging.Level != "warn" {
		t.Fatal("rejected config must not be committed")
	}
}

func TestSummarizeChange(t *testing.T) {
	a := &Config{Telegram: TelegramConfig{Token: "secret"}, Logging: LoggingConfig{Level: "info"}}
	b := &Config{Telegram: TelegramConfig{Token: "secret2"}, Logging: LoggingConfig{Level: "debug"}, Storage: &StorageConfig{Driver: "file", Path: "x"}}

	changed, _ := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "telegram,logging,storage" {
		t.Fatalf("changed = %v", changed)
	}
	if r := RestartRequired(changed); strings.Join(r, ",") != "telegram,storage" {
		t.Fatalf("restart required = %v", r)
	}
}

func TestValidateAdmin(t *testing.T) {
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t"},
			Topic:    TopicConfig{Driver: "none"},
		}
	}
	cases := []struct {
		name    string
		admin   AdminConfig
		wantErr bool
	}{
		{"disabled with junk addr", AdminConfig{Addr: "nope"}, false},
		{"enabled default addr", AdminConfig{Enabled: true}, false},
		{"enabled loopback", AdminConfig{Enabled: true, Addr: "127.0.0.1:6060"}, false},
		{"enabled bad addr", AdminConfig{Enabled: true, Addr: "6060"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			c.Admin = tc.admin
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
		})
	}

	c := base()
	c.ApplyEnv(func(k string) string {
		if k == EnvAdminToken {
			return " tok "
		}
		return ""
	})
	if c.Admin.Token != "tok" {
		t.Fatalf("admin token=%q", c.Admin.Token)
	}
}

func TestDurationDefaults(t *testing.T) {
	tests := []struct {
		name    string
		resolve func() (time.Duration, error)
		want    time.Duration
		wantErr string
	}{
		{"poll empty", TelegramConfig{}.PollTimeoutOrDefault, DefaultPollTimeout, ""},
		{"poll set", TelegramConfig{PollTimeout: " 25s "}.PollTimeoutOrDefault, 25 * time.Second, ""},
		{"tick zero", SchedulerConfig{Tick: "0s"}.TickOrDefault, DefaultTick, ""},
		{"tick bad", SchedulerConfig{Tick: "soon"}.TickOrDefault, 0, "scheduler.tick: invalid duration"},
		{"delivery empty", SchedulerConfig{}.DeliveryTimeoutOrDefault, DefaultDeliveryTimeout, ""},
		{"delivery negative", SchedulerConfig{DeliveryTimeout: "-1s"}.DeliveryTimeoutOrDefault, 0, "must be >= 0"},
		{"busy set", StorageConfig{BusyTimeout: "250ms"}.BusyTimeoutOrDefault, 250 * time.Millisecond, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resolve()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %v, %v, want %v", got, err, tt.want)
			}
		})
	}
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "yaml unknown key",
			path:    "c.yml",
			data:    "at: &slot \"09:15\"\nreminders:\n  daily: *slot\n  monthly_at: *slot\n",
			wantErr: "unknown field \"at\"",
		},
		{
			name: "yaml alias values",
			path: "c.yaml",
			data: "telegram:\n  token: &tok \"1:x\"\nadmin:\n  token: *tok\nreminders:\n  daily: \"09:15\"\n  monthly_day: 15\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Telegram.Token != "1:x" || cfg.Admin.Token != "1:x" {
					t.Fatalf("tokens = %q, %q", cfg.Telegram.Token, cfg.Admin.Token)
				}
				if cfg.Reminders.Daily != "09:15" || cfg.Reminders.MonthlyDay != 15 {
					t.Fatalf("reminders = %+v", cfg.Reminders)
				}
			},
		},
		{
			name: "empty yaml",
			path: "c.yaml",
			data: "",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Telegram.Token != "" || cfg.Storage != nil {
					t.Fatalf("cfg = %+v", cfg)
				}
			},
		},
		{
			name:    "yaml merge key",
			path:    "c.yaml",
			data:    "base: &b {token: x}\ntelegram:\n  <<: *b\n",
			wantErr: "merge keys",
		},
		{
			name:    "yaml syntax",
			path:    "c.yaml",
			data:    "telegram: [\n",
			wantErr: "yaml:",
		},
		{
			name: "json storage",
			path: "c.json",
			data: `{"storage":{"driver":"sqlite","path":"./r.db"}}`,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
					t.Fatalf("storage = %+v", cfg.Storage)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := decodeConfig(tt.path, []byte(tt.data))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeConfig: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
