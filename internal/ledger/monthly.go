package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// MonthlyPoster implements spec §4.3: for (tenant, month, year) it
// materialises one balanced journal entry summing all eligible cows'
// monthly depreciation, re-creating it from scratch on every run so that
// re-posting is idempotent.
type MonthlyPoster struct {
	repo     Repository
	enforcer *enforcer
	coa      func(tenantID string) *ChartOfAccounts
	settings func(tenantID string) Settings
	now      func() time.Time
}

func NewMonthlyPoster(repo Repository, coa func(string) *ChartOfAccounts, settings func(string) Settings, now func() time.Time) *MonthlyPoster {
	return &MonthlyPoster{repo: repo, enforcer: &enforcer{repo: repo}, coa: coa, settings: settings, now: now}
}

// MonthlyResult is the tagged result record for post_monthly_depreciation
// (spec §6, §9 "tagged result records instead of dynamic JSON").
type MonthlyResult struct {
	CowsProcessed  int
	Total          decimal.Decimal
	EntryID        string
	JournalCreated bool // false when no eligible cow had depreciation to post; an existing entry is always re-created, never kept
}

// PostMonthlyDepreciation implements post_monthly_depreciation(tenant,
// month, year, mode) -> {cows_processed, total, entry_id}.
func (p *MonthlyPoster) PostMonthlyDepreciation(ctx context.Context, schemaName, tenantID string, month, year int, mode ProcessingMode) (MonthlyResult, error) {
	settings := p.settings(tenantID)
	coa := p.coa(tenantID)

	targetEOM := EndOfMonth(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))

	// The lease is acquired and committed in its own transaction so that a
	// failure further down can still durably mark it 'failed' after the
	// posting transaction rolls back (spec §5 per-tenant lease, §7
	// "ProcessingLog row is updated to failed with the error message").
	leaseTx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}
	lease, err := p.repo.AcquireProcessingLease(ctx, leaseTx, schemaName, tenantID, month, year, EntryDepreciation)
	if err != nil {
		leaseTx.Rollback(ctx)
		return MonthlyResult{}, apierr.ConcurrencyTimeout(err)
	}
	if err := leaseTx.Commit(ctx); err != nil {
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		p.fail(ctx, schemaName, lease.ID, err)
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := p.repo.FindEntry(ctx, schemaName, tenantID, month, year, EntryDepreciation)
	if err != nil && err != ErrEntryNotFound {
		p.fail(ctx, schemaName, lease.ID, err)
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}
	if existing != nil {
		if err := p.repo.DeleteEntry(ctx, tx, schemaName, existing.ID); err != nil {
			p.fail(ctx, schemaName, lease.ID, err)
			return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
		}
	}

	cows, err := p.repo.ListEligibleCows(ctx, schemaName, tenantID, targetEOM)
	if err != nil {
		p.fail(ctx, schemaName, lease.ID, err)
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}

	deprExpense := coa.Resolve(RoleDeprExpense)
	accumDepr := coa.Resolve(RoleAccumDepr)

	var lines []JournalLine
	total := decimal.Zero
	processed := 0
	priorMonthEnd := firstOfMonth(targetEOM).AddDate(0, 0, -1)

	for _, c := range cows {
		accumSoFar, err := p.repo.AccumulatedDepreciation(ctx, schemaName, tenantID, c.ID, priorMonthEnd)
		if err != nil {
			p.fail(ctx, schemaName, lease.ID, err)
			return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
		}
		amount := MonthlyDepreciation(c.PurchasePrice, c.SalvageValue, c.FreshenDate, targetEOM, accumSoFar, settings)
		if amount.IsZero() {
			continue
		}
		lines = append(lines, depreciationLinePair(c.ID, deprExpense, accumDepr, amount)...)
		total = total.Add(amount)
		processed++
	}

	if err := checkBalance(lines); err != nil {
		p.fail(ctx, schemaName, lease.ID, err)
		return MonthlyResult{}, err
	}

	result := MonthlyResult{CowsProcessed: processed, Total: total}

	if total.GreaterThan(decimal.Zero) {
		entry := &JournalEntry{
			TenantID:    tenantID,
			Type:        EntryDepreciation,
			TotalAmount: total,
			Status:      EntryPosted,
			Lines:       lines,
		}
		switch mode {
		case ModeProduction:
			now := p.now()
			entry.EntryDate = now
			entry.Month = int(now.Month())
			entry.Year = now.Year()
			entry.Description = fmt.Sprintf("Monthly depreciation for %04d-%02d (posted %s, production mode)",
				year, month, now.Format("2006-01-02"))
		default: // ModeHistorical
			entry.EntryDate = targetEOM
			entry.Month = month
			entry.Year = year
			entry.Description = fmt.Sprintf("Monthly depreciation for %04d-%02d", year, month)
		}

		if err := p.repo.CreateEntry(ctx, tx, schemaName, entry); err != nil {
			p.fail(ctx, schemaName, lease.ID, err)
			return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
		}
		result.EntryID = entry.ID
		result.JournalCreated = true
	}

	if err := p.repo.CompleteProcessingLease(ctx, tx, schemaName, lease.ID, processed, total); err != nil {
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return MonthlyResult{}, fmt.Errorf("post monthly depreciation: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Int("month", month).Int("year", year).
		Int("cows_processed", processed).Str("total", total.String()).Msg("posted monthly depreciation")
	return result, nil
}

func (p *MonthlyPoster) fail(ctx context.Context, schemaName, logID string, cause error) {
	if err := p.repo.FailProcessingLease(ctx, schemaName, logID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to record processing log failure")
	}
}
