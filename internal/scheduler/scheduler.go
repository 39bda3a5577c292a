package scheduler

import (
	"fmt"

	"renamebot/internal/config"

	"github.com/robfig/cron/v3"
)

// Scheduler runs housekeeping jobs on cron schedules
type Scheduler struct {
	config *config.Config
	cron   *cron.Cron
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg *config.Config) *Scheduler {
	return &Scheduler{
		config: cfg,
		cron:   cron.New(),
	}
}

// RegisterFunc schedules fn under a standard cron spec or descriptor such as "@hourly".
// Errors returned by fn are logged, never propagated.
func (s *Scheduler) RegisterFunc(spec, name string, fn func() error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(); err != nil {
			s.config.Logger.Errorf("Scheduled job %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	s.config.Logger.Infof("Scheduled job %s (%s)", name, spec)
	return nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.config.Logger.Info("Scheduler started!")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.config.Logger.Info("Scheduler stopped")
}

// Len returns the number of scheduled jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}
