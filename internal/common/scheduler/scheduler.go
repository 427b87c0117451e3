// internal/common/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"whitelist-intake/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// JobFunc is one run of a scheduled job. It must be safe to re-run after a
// crash mid-run.
type JobFunc func(ctx context.Context) error

// Scheduler owns the periodic background jobs. Each job runs in its own
// goroutine, never overlaps itself, and survives panics in a single run.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
	running bool
}

func New(log logger.Logger) *Scheduler {
	cl := cronLogger{log: log.WithFields(map[string]interface{}{"component": "scheduler"})}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Every registers fn to run every interval under name.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc("@every "+interval.String(), s.wrap(name, fn))
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	s.entries[name] = id

	s.logger.Info("job registered", map[string]interface{}{
		"job":      name,
		"interval": interval.String(),
	})
	return nil
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
}

// Stop halts scheduling, cancels in-flight runs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(name string, fn JobFunc) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			s.logger.Error("job run failed", map[string]interface{}{
				"job":      name,
				"error":    err,
				"duration": time.Since(start).String(),
			})
			return
		}
		s.logger.Debug("job run completed", map[string]interface{}{
			"job":      name,
			"duration": time.Since(start).String(),
		})
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err
	c.log.Error(msg, fields)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
