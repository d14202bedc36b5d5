// File: internal/jobs/guest_cleanup.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"redsocial_backend/internal/config"
	"redsocial_backend/internal/profile"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// GuestCleanupJob removes stale guest profiles. Guest accounts are
// throwaway by nature, so documents older than GUEST_MAX_AGE_DAYS are
// purged on the configured schedule.
type GuestCleanupJob struct {
	store         profile.Store
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewGuestCleanupJob creates a new GuestCleanupJob.
func NewGuestCleanupJob(
	store profile.Store,
	logger *zap.Logger,
	cfg *config.Config,
) *GuestCleanupJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &GuestCleanupJob{
		store:         store,
		logger:        logger.Named("GuestCleanupJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *GuestCleanupJob) SetupAndStart() error {
	jobSpec := j.cfg.GuestCleanupSchedule // e.g., "@daily", "0 1 * * *" (1 AM daily)
	if jobSpec == "" {
		j.logger.Warn("Guest cleanup job schedule not defined (GUEST_CLEANUP_SCHEDULE). Job will not run.")
		return nil // Not a fatal error, just won't run
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule guest cleanup job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Guest cleanup job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start() // Start the scheduler in the background
	return nil
}

// runJob is the actual work performed by the cron job.
func (j *GuestCleanupJob) runJob() {
	j.logger.Info("Starting guest cleanup job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute) // Job timeout
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -j.cfg.GuestMaxAgeDays)
	ids, err := j.store.ListGuestsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("Guest cleanup job run failed", zap.Error(err))
		return
	}

	deleted := 0
	for _, id := range ids {
		if err := j.store.Delete(ctx, id); err != nil {
			j.logger.Warn("Failed to delete stale guest profile", zap.String("id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	j.logger.Info("Guest cleanup job run completed",
		zap.Int("guests_found", len(ids)),
		zap.Int("guests_deleted", deleted),
		zap.Time("cutoff", cutoff))
}

// Stop gracefully stops the cron scheduler.
func (j *GuestCleanupJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping guest cleanup job scheduler...")
		stopCtx := j.cronScheduler.Stop() // Returns a context that is done when the scheduler has stopped
		select {
		case <-stopCtx.Done():
			j.logger.Info("Guest cleanup job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second): // Timeout for stopping
			j.logger.Warn("Guest cleanup job scheduler stop timed out.")
		}
	}
}

// --- Cron Logger Adapter ---

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	cl.zl.Info(msg, fields...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
