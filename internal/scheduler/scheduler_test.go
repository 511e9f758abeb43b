package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
	logx "remindbot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type delivered struct {
	job     reminder.Job
	firedAt time.Time
}

type recordingDeliverer struct {
	err error
	ch  chan delivered
}

func (d *recordingDeliverer) Deliver(ctx context.Context, job reminder.Job, firedAt time.Time) error {
	d.ch <- delivered{job: job, firedAt: firedAt}
	return d.err
}

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newTestService(clock *fakeClock, d Deliverer, cfg Config) (*Service, *reminder.Registry) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Jakarta"
	}
	reg := reminder.NewRegistry()
	return New(cfg, d, reg, logx.Nop(), nil, WithClock(clock.Now)), reg
}

func TestScheduleComputesFirstFireAndRegisters(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, loc)
	clock := &fakeClock{t: t0}
	s, reg := newTestService(clock, nil, Config{})

	p := reminder.DefaultParams()
	hourly, ok := s.Schedule(reminder.NewJob(42, "Take medicine", p.Recurrence(reminder.KindHourly), t0))
	if !ok {
		t.Fatal("hourly job not scheduled")
	}
	daily, ok := s.Schedule(reminder.NewJob(42, "Standup", p.Recurrence(reminder.KindDaily), t0))
	if !ok {
		t.Fatal("daily job not scheduled")
	}

	if !hourly.NextFireAt.Equal(t0) {
		t.Fatalf("hourly NextFireAt = %v, want %v", hourly.NextFireAt, t0)
	}
	if want := time.Date(2026, 10, 14, 8, 0, 0, 0, loc); !daily.NextFireAt.Equal(want) {
		t.Fatalf("daily NextFireAt = %v, want %v", daily.NextFireAt, want)
	}

	jobs := reg.Jobs(42)
	if len(jobs) != 2 || jobs[0].ID != hourly.ID || jobs[1].ID != daily.ID {
		t.Fatalf("registry jobs = %v", jobs)
	}
	if len(s.Jobs()) != reg.Len() {
		t.Fatalf("active set (%d) and registry (%d) out of sync", len(s.Jobs()), reg.Len())
	}
	if _, ok := s.Schedule(nil); ok {
		t.Fatal("Schedule(nil) reported success")
	}
}

func TestTickAdvancesExactlyOneUnit(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, loc)
	clock := &fakeClock{t: t0}
	s, _ := newTestService(clock, nil, Config{QueueSize: 16})

	job, _ := s.Schedule(reminder.NewJob(42, "x", reminder.Hourly(), t0))

	if n := s.Tick(t0.Add(-time.Second)); n != 0 {
		t.Fatalf("Tick before due fired %d jobs", n)
	}
	if n := s.Tick(t0); n != 1 {
		t.Fatalf("Tick at due fired %d jobs, want 1", n)
	}
	got := s.Jobs()[0]
	if want := t0.Add(time.Hour); !got.NextFireAt.Equal(want) {
		t.Fatalf("NextFireAt = %v, want %v", got.NextFireAt, want)
	}
	if !got.LastFiredAt.Equal(t0) || got.Fires != 1 {
		t.Fatalf("LastFiredAt = %v, Fires = %d", got.LastFiredAt, got.Fires)
	}
	// Firing again at the same instant is a no-op.
	if n := s.Tick(t0.Add(30 * time.Minute)); n != 0 {
		t.Fatalf("Tick fired %d jobs before next slot", n)
	}
	if job.ID != got.ID {
		t.Fatal("job identity changed")
	}
}

func TestTickCoalescesMissedOccurrences(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 8, 0, 0, 0, loc)
	clock := &fakeClock{t: t0}
	s, _ := newTestService(clock, nil, Config{QueueSize: 16})

	s.Schedule(reminder.NewJob(7, "x", reminder.Daily(8, 0), t0))

	late := t0.Add(3*24*time.Hour + time.Hour) // three slots later
	if n := s.Tick(late); n != 1 {
		t.Fatalf("Tick fired %d, want 1 coalesced delivery", n)
	}
	got := s.Jobs()[0]
	if want := time.Date(2026, 10, 18, 8, 0, 0, 0, loc); !got.NextFireAt.Equal(want) {
		t.Fatalf("NextFireAt = %v, want %v", got.NextFireAt, want)
	}
	if !got.NextFireAt.After(late) {
		t.Fatal("NextFireAt must be after now")
	}
	if snap := s.Snapshot(); snap.Skipped != 3 || snap.Fired != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestQueueFullDropsButStillAdvances(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, loc)
	clock := &fakeClock{t: t0}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{Timezone: "Asia/Jakarta", QueueSize: 1}, nil, nil, logx.Nop(), bus, WithClock(clock.Now))
	s.Schedule(reminder.NewJob(1, "a", reminder.Hourly(), t0))
	s.Schedule(reminder.NewJob(2, "b", reminder.Hourly(), t0))

	if n := s.Tick(t0); n != 2 {
		t.Fatalf("Tick fired %d, want 2", n)
	}
	snap := s.Snapshot()
	if snap.Fired != 1 || snap.Dropped != 1 || snap.QueueLen != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	for _, j := range s.Jobs() {
		if !j.NextFireAt.Equal(t0.Add(time.Hour)) {
			t.Fatalf("job %s not advanced: %v", j.Text, j.NextFireAt)
		}
	}

	seen := map[string]int{}
	for len(events) > 0 {
		ev := <-events
		seen[ev.Type]++
	}
	if seen[eventbus.TypeReminderScheduled] != 2 || seen[eventbus.TypeReminderFired] != 1 || seen[eventbus.TypeReminderDropped] != 1 {
		t.Fatalf("events = %v", seen)
	}
}

func TestDeliveryFailureDoesNotAffectRecurrence(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, loc)
	clock := &fakeClock{t: t0}
	d := &recordingDeliverer{err: errors.New("chat unreachable"), ch: make(chan delivered, 4)}
	s, _ := newTestService(clock, d, Config{Workers: 1, Tick: time.Hour, DeliveryTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx) // idempotent
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
		defer c()
		_ = s.Stop(stopCtx)
	}()

	s.Schedule(reminder.NewJob(42, "Take medicine", reminder.Hourly(), t0))

	first := waitDelivered(t, d.ch)
	if !first.firedAt.Equal(t0) || first.job.Text != "Take medicine" {
		t.Fatalf("first delivery = %+v", first)
	}

	clock.Set(t0.Add(time.Hour))
	s.Tick(clock.Now())
	second := waitDelivered(t, d.ch)
	if !second.firedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("second firedAt = %v, want %v", second.firedAt, t0.Add(time.Hour))
	}
	if got := s.Jobs()[0].NextFireAt; !got.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("NextFireAt = %v after failed deliveries", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Failed < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f := s.Snapshot().Failed; f != 2 {
		t.Fatalf("Failed = %d, want 2", f)
	}
}

func TestChatJobsReturnsCopies(t *testing.T) {
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, time.UTC)
	clock := &fakeClock{t: t0}
	s, _ := newTestService(clock, nil, Config{Timezone: "UTC"})
	s.Schedule(reminder.NewJob(5, "a", reminder.Daily(8, 0), t0))

	jobs := s.ChatJobs(5)
	if len(jobs) != 1 {
		t.Fatalf("ChatJobs = %v", jobs)
	}
	jobs[0].Text = "changed"
	if s.ChatJobs(5)[0].Text != "a" {
		t.Fatal("ChatJobs must return copies")
	}
	if len(s.ChatJobs(6)) != 0 {
		t.Fatal("unknown chat should have no jobs")
	}
}

func waitDelivered(t *testing.T, ch <-chan delivered) delivered {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return delivered{}
	}
}

func TestScheduleReturnsCopyWhileLoopRuns(t *testing.T) {
	loc := jakarta(t)
	t0 := time.Date(2026, 10, 14, 7, 30, 0, 0, loc)
	clock := &fakeClock{t: t0}
	s, _ := newTestService(clock, nil, Config{Tick: time.Millisecond, QueueSize: 512})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer func() {
		stopCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
		defer c()
		_ = s.Stop(stopCtx)
	}()

	const n = 200
	var wg sync.WaitGroup
	snaps := make([]reminder.Job, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], _ = s.Schedule(reminder.NewJob(42, "x", reminder.Hourly(), t0))
		}(i)
	}
	wg.Wait()

	for i, snap := range snaps {
		if !snap.NextFireAt.Equal(t0) || snap.Fires != 0 {
			t.Fatalf("snapshot %d = next %v fires %d, want first fire %v", i, snap.NextFireAt, snap.Fires, t0)
		}
	}
	if got := len(s.ChatJobs(42)); got != n {
		t.Fatalf("ChatJobs = %d, want %d", got, n)
	}
}

func TestDefaultLocation(t *testing.T) {
	tests := []struct {
		name string
		tz   string
		want string
	}{
		{"empty", "", reminder.DefaultTimezone},
		{"blank", "  ", reminder.DefaultTimezone},
		{"invalid", "Mars/Olympus", reminder.DefaultTimezone},
		{"configured", "UTC", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{Timezone: tt.tz}, nil, nil, logx.Nop(), nil)
			if got := s.Location().String(); got != tt.want {
				t.Fatalf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}
