package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one periodic activity. Run is called once per interval; the next call
// does not start until the previous one returned.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns one ticker goroutine per task so a slow task never delays another.
type Scheduler struct {
	tasks   []Task
	wg      sync.WaitGroup
	running atomic.Bool
	cycles  sync.Map // task name -> *atomic.Uint64
}

func NewScheduler(tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Names lists the registered tasks.
func (s *Scheduler) Names() []string {
	out := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Name
	}
	return out
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Cycles returns how many times task name has completed a run.
func (s *Scheduler) Cycles(name string) uint64 {
	v, ok := s.cycles.Load(name)
	if !ok {
		return 0
	}
	return v.(*atomic.Uint64).Load()
}

// Start launches every task and returns immediately. Loops stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	for _, t := range s.tasks {
		counter := &atomic.Uint64{}
		s.cycles.Store(t.Name, counter)
		s.wg.Add(1)
		go s.loop(ctx, t, counter)
	}
	go func() {
		s.wg.Wait()
		s.running.Store(false)
	}()
	log.Info().Strs("tasks", s.Names()).Msg("scheduler started")
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task, counter *atomic.Uint64) {
	defer s.wg.Done()
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, t)
			counter.Add(1)
		case <-ctx.Done():
			log.Debug().Str("task", t.Name).Msg("scheduler task stopped")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", t.Name).Interface("panic", r).Msg("scheduled task panicked")
		}
	}()
	if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("task", t.Name).Msg("scheduled task failed")
	}
}
