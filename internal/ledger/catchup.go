package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// CatchUpPoster implements spec §4.2: for a given cow and target date T,
// ensures every month from freshen_month+1 up to T has exactly one
// (Dr depreciation_expense, Cr accum_depr) pair for that cow.
type CatchUpPoster struct {
	repo     Repository
	enforcer *enforcer
	coa      func(tenantID string) *ChartOfAccounts
	settings func(tenantID string) Settings
}

func NewCatchUpPoster(repo Repository, coa func(string) *ChartOfAccounts, settings func(string) Settings) *CatchUpPoster {
	return &CatchUpPoster{repo: repo, enforcer: &enforcer{repo: repo}, coa: coa, settings: settings}
}

// CatchUpCow implements catch_up_cow(cow_id, through_date) -> {entries_created}.
// The whole walk is one transaction: any failure rolls back the entire
// call and the cow's ledger state is unchanged (spec §4.2 Failure semantics).
func (p *CatchUpPoster) CatchUpCow(ctx context.Context, schemaName string, cowID string, through time.Time) (int, error) {
	cow, err := p.repo.GetCow(ctx, schemaName, cowID)
	if err != nil {
		return 0, apierr.NotFound(fmt.Errorf("catch up cow: %w", err))
	}

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("catch up cow: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := p.catchUpTx(ctx, tx, schemaName, cow, through)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("catch up cow: %w", err)
	}
	log.Info().Str("tenant_id", cow.TenantID).Str("cow_id", cow.ID).Int("created", created).
		Msg("caught up cow depreciation")
	return created, nil
}

// catchUpTx is the core cursor walk, reused by the disposition poster
// (which runs catch-up to the month prior to the disposition date inside
// its own larger transaction, spec §4.5 step 2).
func (p *CatchUpPoster) catchUpTx(ctx context.Context, tx Tx, schemaName string, cow *Cow, through time.Time) (int, error) {
	settings := p.settings(cow.TenantID)
	coa := p.coa(cow.TenantID)
	deprExpense := coa.Resolve(RoleDeprExpense)
	accumDepr := coa.Resolve(RoleAccumDepr)

	last, err := p.repo.LastDepreciationMonth(ctx, schemaName, cow.TenantID, cow.ID)
	if err != nil {
		return 0, fmt.Errorf("catch up: %w", err)
	}

	cursor := firstOfMonth(cow.FreshenDate).AddDate(0, 1, 0)
	if last != nil {
		cursor = firstOfMonth(*last).AddDate(0, 1, 0)
	}

	created := 0
	for !cursor.After(through) {
		eom := EndOfMonth(cursor)
		if MonthsElapsed(cow.FreshenDate, eom) >= settings.Years*12 {
			break
		}

		accumSoFar, err := p.repo.AccumulatedDepreciationTx(ctx, tx, schemaName, cow.TenantID, cow.ID, firstOfMonth(cursor).AddDate(0, 0, -1))
		if err != nil {
			return created, fmt.Errorf("catch up: %w", err)
		}
		amount := MonthlyDepreciation(cow.PurchasePrice, cow.SalvageValue, cow.FreshenDate, eom, accumSoFar, settings)
		if amount.IsZero() {
			break
		}

		entryDate := eom
		isTerminalMonth := eom.Year() == through.Year() && eom.Month() == through.Month()
		if isTerminalMonth && through.Before(eom) {
			entryDate = through
		}

		if err := p.enforcer.checkNoPostDispositionDepreciation(ctx, schemaName, cow.ID, entryDate); err != nil {
			return created, err
		}

		entry, _, err := p.repo.GetOrCreateEntryTx(ctx, tx, schemaName, cow.TenantID, int(cursor.Month()), cursor.Year(), EntryDepreciation, entryDate)
		if err != nil {
			return created, fmt.Errorf("catch up: %w", err)
		}

		has, err := p.repo.EntryHasCowLines(ctx, tx, schemaName, entry.ID, cow.ID)
		if err != nil {
			return created, fmt.Errorf("catch up: %w", err)
		}
		if !has {
			lines := depreciationLinePair(cow.ID, deprExpense, accumDepr, amount)
			if err := checkBalance(lines); err != nil {
				return created, err
			}
			if err := p.repo.AppendLines(ctx, tx, schemaName, entry.ID, lines); err != nil {
				return created, fmt.Errorf("catch up: %w", err)
			}
			created++
		}

		cursor = cursor.AddDate(0, 1, 0)
	}

	return created, nil
}

func depreciationLinePair(cowID string, deprExpense, accumDepr Account, amount decimal.Decimal) []JournalLine {
	id := cowID
	return []JournalLine{
		{
			CowID: &id, AccountCode: deprExpense.Code, AccountName: deprExpense.Name,
			Description: "Monthly depreciation", DebitAmount: amount, LineType: LineDebit,
		},
		{
			CowID: &id, AccountCode: accumDepr.Code, AccountName: accumDepr.Name,
			Description: "Monthly depreciation", CreditAmount: amount, LineType: LineCredit,
		},
	}
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
