package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	logx "remindbot/pkg/logx"
)

// Service owns every active reminder job and fires them on schedule.
//
// The active set and the chat registry are only mutated together, under mu.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	loc  *time.Location
	jobs []*reminder.Job
	reg  *reminder.Registry

	deliverer Deliverer
	log       logx.Logger
	bus       eventbus.Bus
	now       func() time.Time

	queue chan dispatch
	wake  chan struct{}
	sup   *rtsup.Supervisor

	fired   atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, deliverer Deliverer, reg *reminder.Registry, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if reg == nil {
		reg = reminder.NewRegistry()
	}
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:       cfg,
		reg:       reg,
		deliverer: deliverer,
		log:       log,
		bus:       bus,
		now:       time.Now,
		queue:     make(chan dispatch, cfg.QueueSize),
		wake:      make(chan struct{}, 1),
	}
	s.loc = s.loadLocation(cfg.Timezone)
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc
	}
	s.log.Warn("invalid timezone; using default", logx.String("tz", tz), logx.String("default", reminder.DefaultTimezone), logx.Err(err))
	if loc, err = time.LoadLocation(reminder.DefaultTimezone); err != nil {
		return time.UTC
	}
	return loc
}

func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Schedule computes the job's first fire instant and makes it active. The
// job is recorded in the registry in the same critical section.
//
// Once active the job belongs to the tick loop. Callers must read the
// returned copy, taken before the loop can advance it, instead of job.
// ok is false when the job was not scheduled.
func (s *Service) Schedule(job *reminder.Job) (snap reminder.Job, ok bool) {
	if job == nil {
		return reminder.Job{}, false
	}
	s.mu.Lock()
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.NextFireAt = job.Recurrence.First(now, s.loc)
	if job.NextFireAt.IsZero() {
		s.mu.Unlock()
		s.log.Error("job has no valid fire time; not scheduled",
			logx.String("job", job.ID), logx.Int64("chat_id", job.ChatID), logx.String("kind", job.Recurrence.Kind.String()))
		return *job, false
	}
	s.jobs = append(s.jobs, job)
	s.reg.Append(job.ChatID, job)
	snap = *job
	ev := ScheduledEvent{JobID: snap.ID, ChatID: snap.ChatID, Kind: snap.Recurrence.Kind.String(), NextFireAt: snap.NextFireAt}
	s.mu.Unlock()

	s.log.Info("reminder scheduled",
		logx.String("job", ev.JobID),
		logx.Int64("chat_id", ev.ChatID),
		logx.String("kind", ev.Kind),
		logx.Time("next_fire_at", ev.NextFireAt),
	)
	eventbus.Publish(s.bus, eventbus.TypeReminderScheduled, ev)

	// Let the loop pick up an immediate first fire without waiting a tick.
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return snap, true
}

// Tick fires every job due at now. Each due job is advanced before its
// delivery is queued, so a failed or dropped delivery never loses the
// recurrence. Occurrences missed while the process was busy are coalesced
// into one delivery.
func (s *Service) Tick(now time.Time) int {
	var due []dispatch
	var skips []int

	s.mu.Lock()
	for _, j := range s.jobs {
		if j.StateAt(now) != reminder.StateDue {
			continue
		}
		firedAt := j.NextFireAt
		next := j.Recurrence.Next(firedAt, s.loc)
		skipped := 0
		for !next.IsZero() && !next.After(now) {
			skipped++
			s.log.Debug("occurrence skipped",
				logx.String("job", j.ID), logx.Time("slot", next), logx.Time("now", now))
			next = j.Recurrence.Next(next, s.loc)
		}
		j.NextFireAt = next
		j.LastFiredAt = firedAt
		j.Fires++
		due = append(due, dispatch{job: *j, firedAt: firedAt, enqueuedAt: time.Now()})
		skips = append(skips, skipped)
	}
	s.mu.Unlock()

	for i, d := range due {
		if skips[i] > 0 {
			s.skipped.Add(uint64(skips[i]))
			s.log.Warn("missed occurrences coalesced",
				logx.String("job", d.job.ID), logx.Int64("chat_id", d.job.ChatID), logx.Int("skipped", skips[i]))
		}
		ev := FireEvent{JobID: d.job.ID, ChatID: d.job.ChatID, Kind: d.job.Recurrence.Kind.String(), FiredAt: d.firedAt, Skipped: skips[i]}
		if err := s.enqueue(d); err != nil {
			s.dropped.Add(1)
			ev.Reason = err.Error()
			s.log.Warn("reminder dropped",
				logx.String("job", d.job.ID), logx.Int64("chat_id", d.job.ChatID), logx.Time("fired_at", d.firedAt), logx.Err(err))
			eventbus.Publish(s.bus, eventbus.TypeReminderDropped, ev)
			continue
		}
		s.fired.Add(1)
		s.log.Debug("reminder fired",
			logx.String("job", d.job.ID), logx.Int64("chat_id", d.job.ChatID), logx.Time("fired_at", d.firedAt), logx.Time("next_fire_at", d.job.NextFireAt))
		eventbus.Publish(s.bus, eventbus.TypeReminderFired, ev)
	}
	return len(due)
}

// Start runs the tick loop and the dispatch workers. Calling it on a running
// service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	cfg := s.cfg
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	for i := 0; i < cfg.Workers; i++ {
		sup.Go0("scheduler.worker", s.worker)
	}
	sup.GoRestart0("scheduler.loop", s.loop, rtsup.WithStopOnCleanExit(true))
	s.sup = sup
	s.log.Info("service started",
		logx.String("tz", s.loc.String()),
		logx.Int("workers", cfg.Workers),
		logx.Int("queue", cfg.QueueSize),
		logx.Duration("tick", cfg.Tick),
	)
}

// Stop cancels the loop and waits for in-flight deliveries, bounded by ctx.
// Queued but undelivered occurrences stay in the queue.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)), logx.Int("queued", len(s.queue)))
	return err
}

func (s *Service) loop(ctx context.Context) {
	s.mu.Lock()
	every := s.cfg.Tick
	s.mu.Unlock()

	t := time.NewTicker(every)
	defer t.Stop()

	s.Tick(s.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-s.wake:
		}
		s.Tick(s.now())
	}
}

// Jobs returns copies of every active job in scheduling order.
func (s *Service) Jobs() []reminder.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reminder.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// ChatJobs returns copies of one chat's jobs in creation order.
func (s *Service) ChatJobs(chatID int64) []reminder.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := s.reg.Jobs(chatID)
	out := make([]reminder.Job, 0, len(refs))
	for _, j := range refs {
		out = append(out, *j)
	}
	return out
}
