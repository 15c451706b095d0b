package tenantcfg

import (
	"context"
	"errors"

	"github.com/sethnicholsaz/herdledger/internal/ledger"
)

// ErrNotFound is returned when a tenant has no configuration row yet; the
// caller falls back to DefaultDepreciationSettings and an empty chart
// override rather than treating an un-configured tenant as an error.
var ErrNotFound = errors.New("tenant configuration not found")

// Repository persists TenantConfig. PostgresRepository (pgx) is the
// default implementation cmd/engine wires up; GORMRepository
// (//go:build gorm) is the alternate, matching the teacher's own tenant
// package's pgx/GORM split.
type Repository interface {
	Get(ctx context.Context, tenantID string) (*TenantConfig, error)
	Upsert(ctx context.Context, cfg *TenantConfig) error
	// ListProcessingDay returns every active tenant whose
	// JournalProcessingDay matches day, used by the scheduler's per-day
	// sweep (spec §5).
	ListProcessingDay(ctx context.Context, day int) ([]TenantRef, error)
}

// SettingsFor and CoaFor adapt a Repository into the plain functions
// internal/ledger.NewEngine expects: un-configured tenants get the
// built-in defaults rather than an error, so a brand-new tenant can post
// immediately without a provisioning step populating this table first.
func SettingsFor(repo Repository) func(tenantID string) ledger.Settings {
	return func(tenantID string) ledger.Settings {
		cfg, err := repo.Get(context.Background(), tenantID)
		if err != nil {
			return DefaultDepreciationSettings().ToLedgerSettings()
		}
		return cfg.DepreciationSettings.ToLedgerSettings()
	}
}

func CoaFor(repo Repository) func(tenantID string) *ledger.ChartOfAccounts {
	return func(tenantID string) *ledger.ChartOfAccounts {
		cfg, err := repo.Get(context.Background(), tenantID)
		if err != nil {
			return ledger.NewChartOfAccounts(nil)
		}
		return cfg.ChartOverride.ToChartOfAccounts()
	}
}

// FiscalYearStartMonthFor adapts a Repository into the plain function
// internal/ledger.NewEngine expects for its reporting fiscal year (spec
// §6 fiscal_year_start_month); an un-configured tenant reports on a
// calendar year, matching DefaultDepreciationSettings.
func FiscalYearStartMonthFor(repo Repository) func(tenantID string) int {
	return func(tenantID string) int {
		cfg, err := repo.Get(context.Background(), tenantID)
		if err != nil {
			return DefaultDepreciationSettings().FiscalYearStartMonth
		}
		return cfg.DepreciationSettings.FiscalYearStartMonth
	}
}
