package sessions

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker drives Controller.Tick once per interval while the session is active and
// pushes the result through the Synchronizer.
type Ticker struct {
	ctrl     *Controller
	syncer   *Synchronizer
	interval time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTicker creates a countdown ticker. A non-positive interval means one second.
func NewTicker(ctrl *Controller, syncer *Synchronizer, interval time.Duration, logger *zap.Logger) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{ctrl: ctrl, syncer: syncer, interval: interval, logger: logger}
}

// Start begins the tick loop. Call Stop to release resources.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
	t.logger.Info("session ticker started", zap.Duration("interval", t.interval))
}

// Stop halts the loop and waits for it to exit.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	<-t.done
	t.logger.Info("session ticker stopped")
}

func (t *Ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.step(ctx)
		}
	}
}

func (t *Ticker) step(ctx context.Context) {
	if !t.ctrl.Snapshot().IsActive() {
		retryCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		t.syncer.RetryExpiry(retryCtx)
		return
	}
	s, err := t.ctrl.Tick()
	if err != nil {
		// ended remotely since the snapshot
		return
	}
	if s.HasEnded() {
		expCtx, cancel := context.WithTimeout(ctx, remoteTimeout)
		defer cancel()
		t.syncer.PushExpiry(expCtx)
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, t.interval)
	defer cancel()
	t.syncer.PushLocalTick(pushCtx, s.TimeRemainingSeconds)
}
