package jobs

import (
	"storhub-backend/internal/config"
	"storhub-backend/internal/logger"
	"storhub-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	overstay service.OverstayService
	config   *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(overstay service.OverstayService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		overstay: overstay,
		config:   cfg,
	}
}

// Config returns the application configuration
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	log.Info("Starting job")
	jobFunc()
	log.Info("Job completed")
}

// RunAllNightlyJobs runs all nightly jobs (for manual execution)
func (jr *JobRunner) RunAllNightlyJobs() {
	jr.DetectOverstays()
}
