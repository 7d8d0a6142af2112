package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/giffer-go/pkg/logger"
)

// ActivityCounter reports how many jobs are in flight
type ActivityCounter interface {
	Active() int
}

// IdleWatcher signals when no job has been active for a while, so a
// server started on demand can exit by itself
type IdleWatcher struct {
	jobs        ActivityCounter
	idleTimeout time.Duration
	interval    time.Duration
	multiLogger *logger.MultiLogger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	exitChan chan struct{}
	wg       sync.WaitGroup
}

// NewIdleWatcher creates a watcher. A zero idleTimeout never fires.
func NewIdleWatcher(jobs ActivityCounter, idleTimeout time.Duration, multiLogger *logger.MultiLogger) *IdleWatcher {
	interval := time.Second
	if idleTimeout > 0 && idleTimeout/4 < interval {
		interval = idleTimeout / 4
	}
	return &IdleWatcher{
		jobs:        jobs,
		idleTimeout: idleTimeout,
		interval:    interval,
		multiLogger: multiLogger,
		stopChan:    make(chan struct{}),
		exitChan:    make(chan struct{}),
	}
}

// Start begins watching. It returns immediately when idle exit is disabled.
func (w *IdleWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.idleTimeout <= 0 {
		return
	}
	w.running = true

	w.wg.Add(1)
	go w.watch(ctx)
}

// Stop stops watching
func (w *IdleWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
}

// WaitForExit is closed once the idle timeout elapsed
func (w *IdleWatcher) WaitForExit() <-chan struct{} {
	return w.exitChan
}

func (w *IdleWatcher) watch(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	idleSince := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if w.jobs.Active() > 0 {
				idleSince = time.Now()
				continue
			}
			if time.Since(idleSince) < w.idleTimeout {
				continue
			}
			if w.multiLogger != nil {
				w.multiLogger.LogJobEvent("idle_exit",
					zap.Duration("idle_timeout", w.idleTimeout))
			}
			close(w.exitChan)
			return
		}
	}
}
