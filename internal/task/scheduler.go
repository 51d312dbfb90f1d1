// Package task runs periodic background work such as persisting widget view counts.
package task

import (
	"context"
	"sync"
	"time"
)

// DefaultSchedulerInterval applies when a scheduler is built without a positive interval.
const DefaultSchedulerInterval = time.Minute

// RunnerFunc is one unit of periodic work.
type RunnerFunc func(context.Context)

// Scheduler invokes a runner on an interval or on demand. Stop performs one final run so buffered work is not lost.
type Scheduler struct {
	interval     time.Duration
	runner       RunnerFunc
	trigger      chan struct{}
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewScheduler builds a Scheduler for the runner.
func NewScheduler(interval time.Duration, runner RunnerFunc) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the background loop. Calling Start on a running scheduler does nothing.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	defer scheduler.controlMutex.Unlock()
	if scheduler.cancel != nil {
		return
	}
	loopContext, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	scheduler.done = make(chan struct{})

	go scheduler.loop(loopContext, scheduler.done)
}

// Trigger requests an immediate run. Requests coalesce while one is pending.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Stop ends the loop, waits for an in-flight run and then runs once more with the provided context.
func (scheduler *Scheduler) Stop(ctx context.Context) {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	scheduler.run(ctx)
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx)
			ticker.Reset(scheduler.interval)
		case <-ticker.C:
			scheduler.run(ctx)
		}
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	scheduler.runner(ctx)
}
