// Package scheduler runs the monthly depreciation posting on a cron
// schedule: once a day it checks which tenants' journal_processing_day
// (spec §5) matches today and posts that tenant's current month, so a
// tenant posts once a month on its own configured day rather than every
// tenant racing for the same moment.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sethnicholsaz/herdledger/internal/ledger"
)

// Config holds scheduler configuration.
type Config struct {
	// DailySchedule is the cron expression (5-field, no seconds) the
	// scheduler checks daily for tenants due today, e.g. "0 2 * * *" for
	// 2:00 AM daily.
	DailySchedule string
	Enabled       bool
}

// DefaultConfig mirrors the teacher's daily-job default, moved earlier in
// the night since depreciation posting has no recipient-facing email step
// to wait on.
func DefaultConfig() Config {
	return Config{
		DailySchedule: "0 2 * * *",
		Enabled:       true,
	}
}

// TenantRef identifies a tenant's schema for the scheduler's sweep.
type TenantRef struct {
	TenantID   string
	SchemaName string
}

// Repository gives the scheduler the minimal per-tenant addressing it
// needs: which tenants are due to post today.
type Repository interface {
	ListProcessingDay(ctx context.Context, day int) ([]TenantRef, error)
}

// Poster is the subset of internal/ledger.Engine the scheduler drives.
type Poster interface {
	PostMonthlyDepreciation(ctx context.Context, schemaName, tenantID string, month, year int, mode ledger.ProcessingMode) (ledger.MonthlyResult, error)
}

// Scheduler manages the background monthly-posting job.
type Scheduler struct {
	cron    *cron.Cron
	repo    Repository
	poster  Poster
	config  Config
	running bool
	mu      sync.Mutex
}

func NewScheduler(repo Repository, poster Poster, config Config) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		repo:   repo,
		poster: poster,
		config: config,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if !s.config.Enabled {
		log.Info().Msg("scheduler is disabled")
		return nil
	}

	// 5-field cron prepended with "0" for seconds, matching the teacher's
	// own cron.WithSeconds() convention.
	schedule := "0 " + s.config.DailySchedule
	if _, err := s.cron.AddFunc(schedule, s.postDueTenants); err != nil {
		return fmt.Errorf("add monthly depreciation job: %w", err)
	}

	s.cron.Start()
	s.running = true
	log.Info().Str("schedule", s.config.DailySchedule).Msg("scheduler started - monthly depreciation sweep scheduled")
	return nil
}

// Stop stops the scheduler gracefully, returning a context done once any
// in-flight run has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	ctx := s.cron.Stop()
	s.running = false
	log.Info().Msg("scheduler stopped")
	return ctx
}

// IsRunning reports whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow manually triggers today's sweep, bypassing the cron trigger.
func (s *Scheduler) RunNow() {
	s.postDueTenants()
}

// postDueTenants posts this month's depreciation, in production mode, for
// every tenant whose journal_processing_day matches today. Each tenant's
// posting is independent: one tenant's failure (surfaced by
// PostMonthlyDepreciation's own per-tenant lease, spec §5) never blocks
// another's.
func (s *Scheduler) postDueTenants() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	now := time.Now()
	log.Info().Int("day", now.Day()).Msg("starting scheduled monthly depreciation sweep")

	tenants, err := s.repo.ListProcessingDay(ctx, now.Day())
	if err != nil {
		log.Error().Err(err).Msg("failed to list tenants due for processing today")
		return
	}

	posted, errored := 0, 0
	for _, t := range tenants {
		result, err := s.poster.PostMonthlyDepreciation(ctx, t.SchemaName, t.TenantID, int(now.Month()), now.Year(), ledger.ModeProduction)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", t.TenantID).Msg("scheduled monthly depreciation failed for tenant")
			errored++
			continue
		}
		log.Info().Str("tenant_id", t.TenantID).Int("cows_processed", result.CowsProcessed).
			Str("total", result.Total.String()).Msg("posted scheduled monthly depreciation")
		posted++
	}

	log.Info().Int("tenants_posted", posted).Int("tenants_errored", errored).
		Msg("completed scheduled monthly depreciation sweep")
}
