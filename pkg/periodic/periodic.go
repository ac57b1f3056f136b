package periodic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Func is one run of a periodic job.
type Func func(ctx context.Context) error

// Task runs a Func on a fixed interval. Runs never overlap: a tick that fires
// while the previous run is still in flight is skipped, and so is a manual
// TryRun.
type Task struct {
	name      string
	interval  time.Duration
	fn        Func
	immediate bool

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Task)

// WithImmediateRun makes the task run once as soon as it starts instead of
// waiting a full interval.
func WithImmediateRun() Option {
	return func(t *Task) { t.immediate = true }
}

func New(name string, interval time.Duration, fn Func, opts ...Option) *Task {
	t := &Task{name: name, interval: interval, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Task) Name() string { return t.name }

// Running reports whether a run is in flight.
func (t *Task) Running() bool { return t.running.Load() }

// TryRun executes the job unless a run is already in progress. ran is false
// when the call was skipped.
func (t *Task) TryRun(ctx context.Context) (ran bool, err error) {
	if !t.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer t.running.Store(false)

	start := time.Now()
	err = t.fn(ctx)
	if err != nil {
		zap.L().Error("[Periodic] run failed", zap.String("task", t.name), zap.Error(err))
	} else {
		zap.L().Debug("[Periodic] run finished", zap.String("task", t.name), zap.Duration("duration", time.Since(start)))
	}
	return true, err
}

// Start launches the ticker loop. It is a no-op when already started.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
}

// Stop cancels the loop and waits for an in-flight run to return or ctx to expire.
func (t *Task) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	zap.L().Info("[Periodic] started", zap.String("task", t.name), zap.Duration("interval", t.interval))

	if t.immediate {
		t.tick(ctx)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.tick(ctx)
		case <-ctx.Done():
			zap.L().Info("[Periodic] stopped", zap.String("task", t.name))
			return
		}
	}
}

func (t *Task) tick(ctx context.Context) {
	if ran, _ := t.TryRun(ctx); !ran {
		zap.L().Warn("[Periodic] previous run still in progress, skipping tick", zap.String("task", t.name))
	}
}

// Register ties the task to the fx lifecycle.
func Register(lc fx.Lifecycle, t *Task) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			t.Start()
			return nil
		},
		OnStop: t.Stop,
	})
}
