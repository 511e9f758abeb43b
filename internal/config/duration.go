package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for duration fields left empty or set to "0s".
const (
	DefaultPollTimeout     = 10 * time.Second
	DefaultTick            = time.Second
	DefaultDeliveryTimeout = 30 * time.Second
	DefaultBusyTimeout     = time.Second
)

// PollTimeoutOrDefault is the long-poll timeout handed to the bot API.
func (c TelegramConfig) PollTimeoutOrDefault() (time.Duration, error) {
	return durationOrDefault("telegram.poll_timeout", c.PollTimeout, DefaultPollTimeout)
}

// TickOrDefault is how often the scheduler looks for due reminders.
func (c SchedulerConfig) TickOrDefault() (time.Duration, error) {
	return durationOrDefault("scheduler.tick", c.Tick, DefaultTick)
}

// DeliveryTimeoutOrDefault bounds one delivery of a fired reminder, chat and
// topic steps together.
func (c SchedulerConfig) DeliveryTimeoutOrDefault() (time.Duration, error) {
	return durationOrDefault("scheduler.delivery_timeout", c.DeliveryTimeout, DefaultDeliveryTimeout)
}

func (c StorageConfig) BusyTimeoutOrDefault() (time.Duration, error) {
	return durationOrDefault("storage.busy_timeout", c.BusyTimeout, DefaultBusyTimeout)
}

func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", path, s)
	case d == 0:
		return def, nil
	}
	return d, nil
}
