package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReportQueries implements spec §4.6: derived read-models computed from the
// ledger itself, never from the cow rows, so they stay consistent even when
// in-flight writes for other tenants are uncommitted.
type ReportQueries struct {
	repo Repository
	coa  func(tenantID string) *ChartOfAccounts
}

func NewReportQueries(repo Repository, coa func(string) *ChartOfAccounts) *ReportQueries {
	return &ReportQueries{repo: repo, coa: coa}
}

// DashboardStats is dashboard_stats(tenant) -> {active_count, asset_value, accum_depr}.
type DashboardStats struct {
	ActiveCount int
	AssetValue  decimal.Decimal
	AccumDepr   decimal.Decimal
	NetBook     decimal.Decimal
}

// DashboardStats implements spec §4.6 Dashboard balances: asset_value =
// ΣDr(asset) - ΣCr(asset); accum_depr = ΣCr(accum_depr) - ΣDr(accum_depr).
func (q *ReportQueries) DashboardStats(ctx context.Context, schemaName, tenantID string) (DashboardStats, error) {
	count, _, err := q.repo.ActiveCowStats(ctx, schemaName, tenantID)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	coa := q.coa(tenantID)
	asset := coa.Resolve(RoleAsset)
	accum := coa.Resolve(RoleAccumDepr)

	assetDr, assetCr, err := q.repo.LedgerBalance(ctx, schemaName, tenantID, asset.Code)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	accumDr, accumCr, err := q.repo.LedgerBalance(ctx, schemaName, tenantID, accum.Code)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	assetValue := assetDr.Sub(assetCr)
	accumDepr := accumCr.Sub(accumDr)
	return DashboardStats{
		ActiveCount: count,
		AssetValue:  assetValue,
		AccumDepr:   accumDepr,
		NetBook:     assetValue.Sub(accumDepr),
	}, nil
}

// MonthRow is one row of monthly_reconciliation(tenant, year) -> 12 rows.
type MonthRow struct {
	Month             int
	StartingBalance   int
	Additions         int
	Disposals         int
	EndingBalance     int // computed flow: starting + additions - disposals
	ActualActiveAtEOM int // live count as of this month's end, for diagnostics
}

// MonthlyReconciliation implements spec §4.6: for each month, additions
// (freshenings), disposals, and the computed running headcount, alongside
// the actual live count at each month's end for side-by-side diagnostics.
// The window starts at fiscalYearStartMonth (spec §6's configurable
// fiscal_year_start_month, 1-12; an out-of-range value falls back to
// January) of year and runs 12 consecutive calendar months forward,
// crossing into year+1 when the fiscal year doesn't start in January. The
// first row's starting balance is derived from cows active as of the day
// before the window opens; an optional one-time year adjustment absorbs any
// gap between the computed and the actual final month's ending count (spec
// §4.6 last paragraph), applied to every row's running balance.
func (q *ReportQueries) MonthlyReconciliation(ctx context.Context, schemaName, tenantID string, year, fiscalYearStartMonth int, applyYearAdjustment bool) ([]MonthRow, error) {
	if fiscalYearStartMonth < 1 || fiscalYearStartMonth > 12 {
		fiscalYearStartMonth = 1
	}
	windowStart := dateUTC(year, fiscalYearStartMonth, 1)
	startingBalance, err := q.repo.ActiveCountAt(ctx, schemaName, tenantID, windowStart.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("monthly reconciliation: %w", err)
	}

	rows := make([]MonthRow, 12)
	running := startingBalance
	for i := 0; i < 12; i++ {
		monthStart := windowStart.AddDate(0, i, 0)
		y, m := monthStart.Year(), int(monthStart.Month())

		additions, err := q.repo.MonthlyAdditions(ctx, schemaName, tenantID, y, m)
		if err != nil {
			return nil, fmt.Errorf("monthly reconciliation: %w", err)
		}
		disposals, err := q.repo.MonthlyDispositions(ctx, schemaName, tenantID, y, m)
		if err != nil {
			return nil, fmt.Errorf("monthly reconciliation: %w", err)
		}
		eom := EndOfMonth(monthStart)
		actual, err := q.repo.ActiveCountAt(ctx, schemaName, tenantID, eom)
		if err != nil {
			return nil, fmt.Errorf("monthly reconciliation: %w", err)
		}

		ending := running + additions - disposals
		rows[i] = MonthRow{
			Month: m, StartingBalance: running, Additions: additions,
			Disposals: disposals, EndingBalance: ending, ActualActiveAtEOM: actual,
		}
		running = ending
	}

	if applyYearAdjustment {
		decAggregate := rows[11].EndingBalance
		decActual := rows[11].ActualActiveAtEOM
		adjustment := decActual - decAggregate
		if adjustment != 0 {
			for i := range rows {
				rows[i].StartingBalance += adjustment
				rows[i].EndingBalance += adjustment
			}
		}
	}

	return rows, nil
}

func dateUTC(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
