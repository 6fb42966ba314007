// Package scheduler runs periodic background tasks with context-aware
// shutdown.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task defines a periodic background task. The refresh sweep is the primary
// user: it runs once at startup, then on every interval tick.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Fn       func(ctx context.Context) error
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	tasks  []Task
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add registers a task to be run when Start is called.
func (s *Scheduler) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// Start launches all registered tasks as goroutines. Each task runs
// immediately on start, then repeats at its configured interval. All tasks
// stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, t)
	}
}

func (s *Scheduler) runTask(ctx context.Context, t Task) {
	defer s.wg.Done()

	// Run immediately on start
	s.executeTask(ctx, t)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "task stopping", "task", t.Name)
			return
		case <-ticker.C:
			s.executeTask(ctx, t)
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	if err := t.Fn(taskCtx); err != nil {
		s.logger.ErrorContext(ctx, "task failed", "task", t.Name, "error", err)
	}
}

// Shutdown blocks until all running tasks complete.
func (s *Scheduler) Shutdown() {
	s.wg.Wait()
}
