// Package router turns chat commands into scheduled reminders.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Sender delivers replies to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Scheduler is the part of the scheduler the router drives.
type Scheduler interface {
	Schedule(job *reminder.Job) (reminder.Job, bool)
	ChatJobs(chatID int64) []reminder.Job
	Location() *time.Location
}

// Request is one parsed command.
type Request struct {
	Update  transport.Update
	ChatID  int64
	FromID  int64
	Command string
	Args    []string
}

type Option func(*Router)

// WithWorkers sets the number of concurrent command handlers in DispatchLoop.
func WithWorkers(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithHandlerTimeout bounds each command handler.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

type Router struct {
	log    logx.Logger
	sender Sender
	sched  Scheduler
	reg    *reminder.Registry

	pmu    sync.RWMutex
	params reminder.Params

	routes  map[string]HandlerFunc
	workers int
	timeout time.Duration
}

func New(log logx.Logger, sender Sender, sched Scheduler, reg *reminder.Registry, params reminder.Params, opts ...Option) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if reg == nil {
		reg = reminder.NewRegistry()
	}
	r := &Router{
		log:     log,
		sender:  sender,
		sched:   sched,
		reg:     reg,
		params:  params,
		workers: 4,
		timeout: 15 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}

	start := func(ctx context.Context, req *Request) error {
		return r.reply(ctx, req.ChatID, r.HandleStart(req.ChatID))
	}
	r.routes = map[string]HandlerFunc{
		"start": start,
		"help":  start,
		"list": func(ctx context.Context, req *Request) error {
			return r.reply(ctx, req.ChatID, r.HandleList(req.ChatID))
		},
	}
	for _, k := range reminder.Kinds {
		kind := k
		r.routes[kind.String()] = func(ctx context.Context, req *Request) error {
			_, text := r.HandleScheduleCommand(ctx, kind, req.ChatID, req.Args)
			return r.reply(ctx, req.ChatID, text)
		}
	}
	return r
}

// SetParams swaps the fixed time parameters used for new reminders.
func (r *Router) SetParams(p reminder.Params) {
	r.pmu.Lock()
	r.params = p
	r.pmu.Unlock()
}

func (r *Router) currentParams() reminder.Params {
	r.pmu.RLock()
	defer r.pmu.RUnlock()
	return r.params
}

// HandleStart returns the welcome text. It has no side effects.
func (r *Router) HandleStart(chatID int64) string {
	return welcomeText
}

// HandleScheduleCommand creates and schedules a reminder for chatID. The
// reminder text is args joined with single spaces; an empty text is accepted.
// The returned job is a copy taken when the reminder became active.
func (r *Router) HandleScheduleCommand(ctx context.Context, kind reminder.Kind, chatID int64, args []string) (reminder.Job, string) {
	text := strings.Join(args, " ")
	job, ok := r.sched.Schedule(reminder.NewJob(chatID, text, r.currentParams().Recurrence(kind), time.Now()))

	r.log.Info("reminder command handled",
		logx.String("job", job.ID),
		logx.Int64("chat_id", chatID),
		logx.String("kind", kind.String()),
		logx.Bool("scheduled", ok),
		logx.Int("chat_jobs", len(r.reg.Jobs(chatID))),
	)
	return job, confirmText(job, r.sched.Location())
}

// HandleList renders the chat's reminders in creation order.
func (r *Router) HandleList(chatID int64) string {
	return listText(r.sched.ChatJobs(chatID), r.sched.Location())
}

// HandleError logs a failed update. Nothing is sent to the user.
func (r *Router) HandleError(up transport.Update, err error) {
	if err == nil {
		return
	}
	fields := []logx.Field{logx.Err(err)}
	if m := up.Message; m != nil {
		fields = append(fields,
			logx.Int64("chat_id", m.ChatID),
			logx.Int64("from_id", m.FromID),
			logx.String("from", m.FromUsername),
			logx.Int("message_id", m.ID),
			logx.String("text", m.Text),
		)
	}
	r.log.Warn("update caused error", fields...)
}

// MenuCommands is the command menu advertised to the platform.
func (r *Router) MenuCommands() []transport.BotCommand {
	return menuCommands()
}

// HandleUpdate routes one update. Non-command text and unknown commands are
// ignored.
func (r *Router) HandleUpdate(ctx context.Context, up transport.Update) {
	req, ok := parseRequest(up)
	if !ok {
		return
	}
	h, ok := r.routes[req.Command]
	if !ok {
		r.log.Debug("unknown command ignored", logx.String("cmd", req.Command), logx.Int64("chat_id", req.ChatID))
		return
	}
	h = Chain(h, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(r.timeout))
	if err := h(ctx, req); err != nil {
		r.HandleError(up, err)
	}
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
// Updates are sharded by chat so one chat's commands run in arrival order.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	shards := make([]chan transport.Update, r.workers)

	for i := range shards {
		ch := make(chan transport.Update, 8)
		shards[i] = ch
		sup.Go0("command.worker", func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case up, ok := <-ch:
					if !ok {
						return
					}
					r.HandleUpdate(c, up)
				}
			}
		})
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers))

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case shards[shardOf(up, len(shards))] <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// shardOf maps an update to a worker by chat ID.
func shardOf(up transport.Update, n int) int {
	if up.Message == nil || n <= 1 {
		return 0
	}
	return int(uint64(up.Message.ChatID) % uint64(n))
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	if r.sender == nil {
		return nil
	}
	return r.sender.SendText(ctx, chatID, text)
}

// parseRequest splits "/cmd[@bot] arg1 arg2" into a Request.
func parseRequest(up transport.Update) (*Request, bool) {
	m := up.Message
	if m == nil {
		return nil, false
	}
	fields := strings.Fields(m.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil, false
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	cmd = strings.ToLower(cmd)
	if cmd == "" {
		return nil, false
	}
	return &Request{
		Update:  up,
		ChatID:  m.ChatID,
		FromID:  m.FromID,
		Command: cmd,
		Args:    fields[1:],
	}, true
}
