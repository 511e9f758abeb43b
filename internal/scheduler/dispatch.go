package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "remindbot/pkg/logx"
)

func (s *Service) enqueue(d dispatch) error {
	select {
	case s.queue <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		// A canceled context wins over queued work.
		select {
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case d := <-s.queue:
			s.deliver(ctx, d)
		}
	}
}

func (s *Service) deliver(ctx context.Context, d dispatch) {
	if s.deliverer == nil {
		return
	}
	s.mu.Lock()
	timeout := s.cfg.DeliveryTimeout
	s.mu.Unlock()

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("delivery panicked", logx.String("job", d.job.ID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		err = s.deliverer.Deliver(runCtx, d.job, d.firedAt)
	}()

	if err != nil {
		s.failed.Add(1)
	}
	s.log.Debug("delivery finished",
		logx.String("job", d.job.ID),
		logx.Int64("chat_id", d.job.ChatID),
		logx.Duration("queue_delay", start.Sub(d.enqueuedAt)),
		logx.Duration("took", time.Since(start)),
		logx.Bool("ok", err == nil),
	)
}
