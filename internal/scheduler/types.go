package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"remindbot/internal/reminder"
)

var (
	ErrQueueFull = errors.New("scheduler: dispatch queue full")
	ErrStopped   = errors.New("scheduler: stopped")
)

// Config controls the tick loop and the dispatch pool.
type Config struct {
	Timezone        string // IANA TZ; default reminder.DefaultTimezone
	Tick            time.Duration
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = reminder.DefaultTimezone
	}
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	return c
}

// Deliverer performs one delivery of a fired occurrence. Errors are only
// observed; they never affect the job's recurrence.
type Deliverer interface {
	Deliver(ctx context.Context, job reminder.Job, firedAt time.Time) error
}

// DelivererFunc adapts a plain function to Deliverer.
type DelivererFunc func(ctx context.Context, job reminder.Job, firedAt time.Time) error

func (f DelivererFunc) Deliver(ctx context.Context, job reminder.Job, firedAt time.Time) error {
	return f(ctx, job, firedAt)
}

// FireEvent is the payload of reminder.fired / reminder.dropped bus events.
type FireEvent struct {
	JobID   string
	ChatID  int64
	Kind    string
	FiredAt time.Time
	Skipped int
	Reason  string
}

// ScheduledEvent is the payload of reminder.scheduled bus events.
type ScheduledEvent struct {
	JobID      string
	ChatID     int64
	Kind       string
	NextFireAt time.Time
}

type Snapshot struct {
	Location string `json:"location"`
	Jobs     int    `json:"jobs"`
	Chats    int    `json:"chats"`
	Workers  int    `json:"workers"`
	QueueLen int    `json:"queue_len"`
	QueueCap int    `json:"queue_cap"`
	Fired    uint64 `json:"fired"`
	Dropped  uint64 `json:"dropped"`
	Skipped  uint64 `json:"skipped"`
	Failed   uint64 `json:"failed"`
	Running  bool   `json:"running"`
}

type dispatch struct {
	job        reminder.Job
	firedAt    time.Time
	enqueuedAt time.Time
}
