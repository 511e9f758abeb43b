package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	"remindbot/internal/topic"
	logx "remindbot/pkg/logx"
)

// Service renders and delivers reminders. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	loc     *time.Location
	limiter *rate.Limiter

	sender Sender
	pub    topic.Publisher
	log    logx.Logger
	bus    eventbus.Bus

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, pub topic.Publisher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if pub == nil {
		pub = topic.Nop{}
	}
	s := &Service{sender: sender, pub: pub, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

// Apply swaps the rendering and rate settings.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if strings.TrimSpace(cfg.Timezone) == "" {
		cfg.Timezone = reminder.DefaultTimezone
	}
	if strings.TrimSpace(cfg.TimeFormat) == "" {
		cfg.TimeFormat = DefaultTimeFormat
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		s.log.Warn("invalid notifier timezone; using UTC", logx.String("tz", cfg.Timezone), logx.Err(err))
		loc = time.UTC
	}
	s.cfg = cfg
	s.loc = loc
	// burst = rate so one slot's worth of reminders goes out without waiting
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Render builds the outbound reminder text.
func (s *Service) Render(text string, firedAt time.Time) string {
	s.mu.Lock()
	loc, layout := s.loc, s.cfg.TimeFormat
	s.mu.Unlock()
	return "Reminder:\n\n" + text + "\n\nSent at: " + firedAt.In(loc).Format(layout)
}

// Deliver sends one fired occurrence to the chat and the topic. Each step
// runs regardless of the other's outcome. The returned error joins the
// failed steps' *DeliveryError values; callers only observe it.
func (s *Service) Deliver(ctx context.Context, job reminder.Job, firedAt time.Time) error {
	start := time.Now()
	msg := s.Render(job.Text, firedAt)
	log := s.log.With(logx.String("job", job.ID), logx.Int64("chat_id", job.ChatID))

	var errs []error
	chatErr := s.sendChat(ctx, job.ChatID, msg)
	if chatErr != nil {
		errs = append(errs, &DeliveryError{Step: StepChat, JobID: job.ID, ChatID: job.ChatID, Err: chatErr})
		log.Warn("reminder chat send failed", logx.String("step", StepChat), logx.Err(chatErr))
	}
	pubErr := s.pub.Publish(ctx, msg)
	if pubErr != nil {
		errs = append(errs, &DeliveryError{Step: StepPublish, JobID: job.ID, ChatID: job.ChatID, Err: pubErr})
		log.Warn("reminder publish failed", logx.String("step", StepPublish), logx.Err(pubErr))
	}
	err := errors.Join(errs...)

	ev := DeliveryEvent{
		JobID:    job.ID,
		ChatID:   job.ChatID,
		Kind:     job.Recurrence.Kind.String(),
		FiredAt:  firedAt,
		ChatOK:   chatErr == nil,
		TopicOK:  pubErr == nil,
		Duration: time.Since(start),
	}
	if err != nil {
		ev.Error = err.Error()
		eventbus.Publish(s.bus, eventbus.TypeReminderDeliveryFailed, ev)
	} else {
		log.Debug("reminder delivered", logx.Time("fired_at", firedAt), logx.Duration("took", ev.Duration))
		eventbus.Publish(s.bus, eventbus.TypeReminderDelivered, ev)
	}
	s.record(HistoryItem{At: start, JobID: job.ID, ChatID: job.ChatID, ChatOK: ev.ChatOK, TopicOK: ev.TopicOK})
	return err
}

func (s *Service) sendChat(ctx context.Context, chatID int64, msg string) error {
	if s.sender == nil {
		return errors.New("no chat sender")
	}
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	if err := lim.Wait(ctx); err != nil {
		return err
	}
	return s.sender.SendText(ctx, chatID, msg)
}

func (s *Service) record(it HistoryItem) {
	s.mu.Lock()
	max := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

// History returns the most recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
