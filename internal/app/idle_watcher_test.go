package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeCounter struct {
	n atomic.Int32
}

func (c *fakeCounter) Active() int { return int(c.n.Load()) }

func TestIdleWatcher_FiresWhenIdle(t *testing.T) {
	jobs := &fakeCounter{}
	w := NewIdleWatcher(jobs, 80*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-w.WaitForExit():
	case <-time.After(2 * time.Second):
		t.Fatal("idle watcher did not fire")
	}
}

func TestIdleWatcher_ActiveJobsKeepAlive(t *testing.T) {
	jobs := &fakeCounter{}
	jobs.n.Store(1)
	w := NewIdleWatcher(jobs, 60*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	select {
	case <-w.WaitForExit():
		t.Fatal("fired while a job was active")
	case <-time.After(200 * time.Millisecond):
	}

	jobs.n.Store(0)
	assert.Eventually(t, func() bool {
		select {
		case <-w.WaitForExit():
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIdleWatcher_Disabled(t *testing.T) {
	w := NewIdleWatcher(&fakeCounter{}, 0, nil)
	w.Start(context.Background())
	w.Stop()

	select {
	case <-w.WaitForExit():
		t.Fatal("disabled watcher fired")
	case <-time.After(50 * time.Millisecond):
	}
}
