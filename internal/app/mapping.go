package app

import (
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/admin"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	"remindbot/internal/topic"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

const topicDialTimeout = 5 * time.Second

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTelegram(cfg *config.Config) (telegram.Config, error) {
	poll, err := cfg.Telegram.PollTimeoutOrDefault()
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: strings.TrimSpace(cfg.Telegram.Token), PollTimeout: poll}, nil
}

func mapTopic(cfg *config.Config) topic.Config {
	t := cfg.Topic
	return topic.Config{
		Driver:          strings.ToLower(strings.TrimSpace(t.Driver)),
		ARN:             strings.TrimSpace(t.ARN),
		Region:          strings.TrimSpace(t.Region),
		AccessKeyID:     t.AccessKeyID,
		SecretAccessKey: t.SecretAccessKey,
		Endpoint:        strings.TrimSpace(t.Endpoint),
		Subject:         t.Subject,
		RedisAddr:       strings.TrimSpace(t.RedisAddr),
		RedisPassword:   t.RedisPassword,
		RedisDB:         t.RedisDB,
		RedisChannel:    strings.TrimSpace(t.RedisChannel),
		DialTimeout:     topicDialTimeout,
	}
}

func mapScheduler(cfg *config.Config) (scheduler.Config, error) {
	tick, err := cfg.Scheduler.TickOrDefault()
	if err != nil {
		return scheduler.Config{}, err
	}
	timeout, err := cfg.Scheduler.DeliveryTimeoutOrDefault()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Timezone:        strings.TrimSpace(cfg.Scheduler.Timezone),
		Tick:            tick,
		Workers:         cfg.Scheduler.Workers,
		QueueSize:       cfg.Scheduler.QueueSize,
		DeliveryTimeout: timeout,
	}, nil
}

func mapNotifier(cfg *config.Config) notifier.Config {
	return notifier.Config{
		Timezone:   strings.TrimSpace(cfg.Notifier.Timezone),
		TimeFormat: cfg.Notifier.TimeFormat,
		RatePerSec: cfg.Notifier.RatePerSec,
	}
}

// mapStorage reports enabled=false when no journal is configured.
func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := sc.BusyTimeoutOrDefault()
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

func mapAdmin(cfg *config.Config) admin.Config {
	return admin.Config{
		Enabled:       cfg.Admin.Enabled,
		Addr:          strings.TrimSpace(cfg.Admin.Addr),
		Token:         strings.TrimSpace(cfg.Admin.Token),
		AllowInsecure: cfg.Admin.AllowInsecure,
		Pprof:         cfg.Admin.Pprof,
		ReadTimeout:   10 * time.Second,
		// pprof/profile streams for 30s by default
		WriteTimeout: 60 * time.Second,
	}
}
