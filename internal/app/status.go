package app

import (
	"context"
	"errors"
	"time"

	"remindbot/internal/notifier"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
)

var errJournalDisabled = errors.New("delivery journal disabled")

type statusReport struct {
	StartedAt  time.Time              `json:"started_at"`
	Uptime     string                 `json:"uptime"`
	Scheduler  scheduler.Snapshot     `json:"scheduler"`
	Supervisor rtsup.Counters         `json:"supervisor"`
	Recent     []notifier.HistoryItem `json:"recent_deliveries"`
	Journal    bool                   `json:"journal"`
}

func (a *App) status() statusReport {
	r := statusReport{
		StartedAt: a.startedAt,
		Scheduler: a.sched.Snapshot(),
		Recent:    a.notif.History(),
		Journal:   a.store != nil,
	}
	if !a.startedAt.IsZero() {
		r.Uptime = time.Since(a.startedAt).Truncate(time.Second).String()
	}
	if a.sup != nil {
		r.Supervisor = a.sup.Counters()
	}
	return r
}

func (a *App) recentDeliveries(ctx context.Context, limit int) (any, error) {
	if a.store == nil {
		return nil, errJournalDisabled
	}
	entries, err := a.store.RecentDeliveries(ctx, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []storage.DeliveryEntry{}
	}
	return entries, nil
}
