// Package scheduler runs the supplemental scheduled-maintenance jobs
// SPEC_FULL.md §4.12 adds around spec.md's request-scoped operations:
// audit-log retention, an informational reward-cooldown report, and
// periodic garbage collection of the in-process rate-limiter and image
// exclusion maps. None of these jobs change request-path behavior; they
// only bound memory and storage growth over a long-running process.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/research-platform/imagedesc-core/internal/catalog"
	"github.com/research-platform/imagedesc-core/internal/db"
	"github.com/research-platform/imagedesc-core/internal/middleware"
)

// Config controls which maintenance jobs run and on what cadence.
type Config struct {
	AuditRetention time.Duration
}

// DefaultConfig returns SPEC_FULL.md's documented default of 90 days.
func DefaultConfig() Config {
	return Config{AuditRetention: 90 * 24 * time.Hour}
}

// Scheduler owns the cron runner and the jobs' storage/map dependencies.
type Scheduler struct {
	cron      *cron.Cron
	db        *db.Database
	limiter   *middleware.LocalLimiter
	exclusion *catalog.Exclusion
	config    Config
	logger    zerolog.Logger
}

// New constructs a Scheduler. limiter may be nil when the deployment uses
// RedisLimiter exclusively, in which case the GC job is skipped.
func New(database *db.Database, limiter *middleware.LocalLimiter, exclusion *catalog.Exclusion, config Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		db:        database,
		limiter:   limiter,
		exclusion: exclusion,
		config:    config,
		logger:    logger,
	}
}

// Start registers and runs the scheduled jobs. Cron expressions follow the
// standard five-field format (robfig/cron/v3's default parser).
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 3 * * *", s.runAuditRetention); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.runRewardCooldownReport); err != nil {
		return err
	}
	if s.limiter != nil {
		if _, err := s.cron.AddFunc("*/5 * * * *", s.limiter.GC); err != nil {
			return err
		}
	}
	if s.exclusion != nil {
		if _, err := s.cron.AddFunc("0 * * * *", s.exclusion.Sweep); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runAuditRetention purges audit_log/performance_metrics rows past the
// configured retention window (spec.md §4.9's best-effort telemetry rows,
// not the trigger-written per-entity audit events).
func (s *Scheduler) runAuditRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.db.PurgeAuditOlderThan(ctx, s.config.AuditRetention)
	if err != nil {
		s.logger.Warn().Err(err).Msg("audit retention job failed")
		return
	}
	s.logger.Info().Int64("rows_deleted", deleted).Msg("audit retention job completed")
}

// runRewardCooldownReport is a read-only observability job: it logs how
// many participants are currently inside their reward-selection cooldown
// window, for operators watching reward-throughput trends. It never writes.
func (s *Scheduler) runRewardCooldownReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.db.CountParticipantsInCooldown(ctx, 24*time.Hour)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reward cooldown report job failed")
		return
	}
	s.logger.Info().Int64("participants_in_cooldown", count).Msg("reward cooldown report")
}
