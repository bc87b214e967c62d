package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Errors returned by Scheduler.
var (
	ErrDuplicateJob    = errors.New("cron: duplicate job name")
	ErrInvalidSchedule = errors.New("cron: invalid schedule")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field expression.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, expr, err)
	}
	return nil
}

// Scheduler runs registered jobs on their schedules. A tick that fires
// while the previous run of the same job is still going is skipped.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []Job
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// RegisterJob adds a job. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.locks[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateJob, name)
	}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start schedules every registered job. Jobs receive a context derived
// from ctx that is canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithParser(parser))

	for _, job := range s.jobs {
		lock := s.locks[job.Name()]
		if _, err := c.AddFunc(job.Schedule(), func() { s.runJob(runCtx, job, lock) }); err != nil {
			cancel()
			return fmt.Errorf("%w for job %q: %w", ErrInvalidSchedule, job.Name(), err)
		}
	}

	s.cron = c
	s.cancel = cancel
	c.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// runJob runs one tick of job unless the previous tick still holds lock.
func (s *Scheduler) runJob(ctx context.Context, job Job, lock *sync.Mutex) bool {
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return false
	}
	defer lock.Unlock()

	s.logger.Debug("cron: job started", "job", job.Name())
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return true
	}
	s.logger.Debug("cron: job completed", "job", job.Name())
	return true
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
