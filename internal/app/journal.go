package app

import (
	"context"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

const journalWriteTimeout = 2 * time.Second

// journalEntry converts a delivery or drop event into a journal row.
func journalEntry(e eventbus.Event) (storage.DeliveryEntry, bool) {
	switch d := e.Data.(type) {
	case notifier.DeliveryEvent:
		status := storage.StatusDelivered
		if e.Type == eventbus.TypeReminderDeliveryFailed {
			status = storage.StatusFailed
		}
		return storage.DeliveryEntry{
			At:      e.Time,
			JobID:   d.JobID,
			ChatID:  d.ChatID,
			Kind:    d.Kind,
			FiredAt: d.FiredAt,
			Status:  status,
			ChatOK:  d.ChatOK,
			TopicOK: d.TopicOK,
			Error:   d.Error,
			TookMS:  d.Duration.Milliseconds(),
		}, true
	case scheduler.FireEvent:
		if e.Type != eventbus.TypeReminderDropped {
			return storage.DeliveryEntry{}, false
		}
		return storage.DeliveryEntry{
			At:      e.Time,
			JobID:   d.JobID,
			ChatID:  d.ChatID,
			Kind:    d.Kind,
			FiredAt: d.FiredAt,
			Status:  storage.StatusDropped,
			Error:   d.Reason,
		}, true
	}
	return storage.DeliveryEntry{}, false
}

// runJournal appends every delivery outcome seen on events to store until
// ctx is done or events is closed.
func runJournal(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			entry, ok := journalEntry(e)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
			err := store.AppendDelivery(wctx, entry)
			cancel()
			if err != nil {
				log.Warn("journal append failed", logx.String("job", entry.JobID), logx.String("status", entry.Status), logx.Err(err))
			}
		}
	}
}
