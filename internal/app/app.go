package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/observability/admin"
	"remindbot/internal/reminder"
	"remindbot/internal/router"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	"remindbot/internal/topic"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	pub   topic.Publisher

	adapter *telegram.Adapter
	reg     *reminder.Registry
	sched   *scheduler.Service
	notif   *notifier.Service
	router  *router.Router
	admin   *admin.Service

	startedAt time.Time
	updates   chan transport.Update
}

// New loads the config at cfgPath and builds every component. A
// *config.ValidationError means the bot cannot start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	comp := func(name string) logx.Logger { return log.With(logx.String("comp", name)) }

	tcfg, err := mapTelegram(cfg)
	if err != nil {
		return nil, err
	}
	scfg, err := mapScheduler(cfg)
	if err != nil {
		return nil, err
	}
	params, err := cfg.Reminders.Params()
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if sc, enabled, err := mapStorage(cfg); err != nil {
		return nil, err
	} else if enabled {
		store, err = storage.Open(sc, comp("storage"))
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		log.Info("delivery journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	pub, err := topic.Open(mapTopic(cfg), comp("topic"))
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("open topic: %w", err)
	}

	ad, err := telegram.New(tcfg, comp("telegram"))
	if err != nil {
		_ = pub.Close()
		closeStore(store)
		return nil, err
	}

	bus := eventbus.New()
	reg := reminder.NewRegistry()
	notif := notifier.New(mapNotifier(cfg), ad, pub, comp("notifier"), bus)
	sched := scheduler.New(scfg, notif, reg, comp("scheduler"), bus)
	rt := router.New(comp("router"), ad, sched, reg, params)
	ad.SetErrorHandler(rt.HandleError)

	cfgm.SetLogger(comp("config"))

	a := &App{
		cfgm:    cfgm,
		log:     comp("app"),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		pub:     pub,
		adapter: ad,
		reg:     reg,
		sched:   sched,
		notif:   notif,
		router:  rt,
		updates: make(chan transport.Update, 256),
	}
	a.admin = admin.New(mapAdmin(cfg), admin.Sources{
		Status:     func() any { return a.status() },
		Deliveries: a.recentDeliveries,
	}, comp("admin"))
	return a, nil
}

func closeStore(st storage.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.startedAt = time.Now()

	// reject reloads that parse but cannot be mapped onto the running services
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapScheduler(cfg); err != nil {
			return err
		}
		if _, err := mapTelegram(cfg); err != nil {
			return err
		}
		_, _, err := mapStorage(cfg)
		return err
	})

	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		jlog := a.log.With(logx.String("comp", "journal"))
		a.sup.Go0("journal", func(c context.Context) {
			defer unsub()
			runJournal(c, events, a.store, jlog)
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	a.sup.Go0("telegram.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.adapter.UpdateMenuCommands(mctx, a.router.MenuCommands()); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("menu commands update failed", logx.Err(err))
		}
	})

	if a.admin.Enabled() {
		a.admin.Start(a.sup.Context())
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) { systemd.Watchdog(c, iv) })
	}
	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd ready notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}

	a.log.Info("app started", logx.String("tz", a.sched.Location().String()))
	return nil
}

// reloadLoop applies the hot sections of each published config and warns
// about sections that only take effect after a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the latest config of a burst
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogging(newCfg))
	a.notif.Apply(mapNotifier(newCfg))
	if p, err := newCfg.Reminders.Params(); err != nil {
		a.log.Warn("invalid reminders config; keeping previous", logx.Err(err))
	} else {
		a.router.SetParams(p)
	}
	a.admin.Reconfigure(ctx, mapAdmin(newCfg))

	if cold := config.RestartRequired(sections); len(cold) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strings("sections", cold))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd stopping notify failed", logx.Err(err))
	}

	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component cannot stall the rest
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { return a.sched.Stop(c) })
	step("adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("admin", 1*time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("topic", 1*time.Second, func(context.Context) error { return a.pub.Close() })
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped", logx.Int("jobs", a.reg.Len()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
