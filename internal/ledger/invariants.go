package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// enforcer wraps the mutators that touch depreciation/disposition with the
// pre- and post-conditions that a schema with DB triggers would express as
// triggers. There are no triggers, so a check runs only where it is called:
// the catch-up poster checks each month it posts against the cow's
// disposition, the disposition poster runs the sweep inside its own
// transaction, and Engine.RegisterDisposition checks for an existing
// disposition. The monthly and acquisition posters call none of them, and no
// call is made under a processing lease.
type enforcer struct {
	repo Repository
}

// checkNoPostDispositionDepreciation is the pre-insert guard rejecting a
// depreciation entry_date that falls after an existing disposition for any
// referenced cow: a cow cannot accrue depreciation once it has left service.
func (e *enforcer) checkNoPostDispositionDepreciation(ctx context.Context, schemaName string, cowID string, entryDate time.Time) error {
	d, err := e.repo.GetDispositionByCow(ctx, schemaName, cowID)
	if err != nil {
		if err == ErrDispositionNotFound {
			return nil
		}
		return fmt.Errorf("check disposition for cow %s: %w", cowID, err)
	}
	if entryDate.After(d.DispositionDate) {
		return apierr.InvariantViolation("no_depreciation_after_disposition", fmt.Errorf(
			"depreciation entry_date %s for cow %s is after disposition date %s",
			entryDate.Format("2006-01-02"), cowID, d.DispositionDate.Format("2006-01-02")))
	}
	return nil
}

// checkAtMostOneDisposition is the pre-insert guard rejecting a second
// disposition for a cow that already has one.
func (e *enforcer) checkAtMostOneDisposition(ctx context.Context, schemaName, cowID string) error {
	_, err := e.repo.GetDispositionByCow(ctx, schemaName, cowID)
	if err == nil {
		return apierr.InvariantViolation("single_disposition_per_cow", fmt.Errorf("cow %s already has a disposition", cowID))
	}
	if err != ErrDispositionNotFound {
		return fmt.Errorf("check existing disposition for cow %s: %w", cowID, err)
	}
	return nil
}

// sweepPostDispositionDepreciation is the post-insert/update cascade that
// restores the no-depreciation-after-disposition invariant: delete any
// depreciation lines for cow dated after the disposition, then delete any
// entry left with no lines. This makes the engine correct regardless of
// event order: a disposition ingested after depreciation was already posted
// for that period still converges the ledger to a consistent state.
func (e *enforcer) sweepPostDispositionDepreciation(ctx context.Context, tx Tx, schemaName, tenantID, cowID string, dispositionDate time.Time) (linesDeleted int, err error) {
	if stale, findErr := e.repo.FindDepreciationLinesForCowAfter(ctx, schemaName, tenantID, cowID, dispositionDate); findErr == nil && len(stale) > 0 {
		var total decimal.Decimal
		for _, l := range stale {
			total = total.Add(l.DebitAmount)
		}
		log.Warn().Str("cow_id", cowID).Int("line_count", len(stale)).Str("total_amount", total.String()).
			Msg("sweeping post-disposition depreciation lines posted out of order")
	}

	linesDeleted, err = e.repo.DeleteLinesForCowAfter(ctx, tx, schemaName, cowID, dispositionDate)
	if err != nil {
		return 0, fmt.Errorf("sweep post-disposition depreciation: %w", err)
	}
	if linesDeleted > 0 {
		if _, err := e.repo.DeleteEmptyEntries(ctx, tx, schemaName, tenantID); err != nil {
			return linesDeleted, fmt.Errorf("delete empty entries after sweep: %w", err)
		}
	}
	return linesDeleted, nil
}

// checkBalance is the implementation safety net of §4.5 step 8: even
// though every poster's line construction is algebraically balanced by
// design, verify ∑Dr = ∑Cr before committing and treat any mismatch as a
// bug (BalanceFailure), not a recoverable condition.
func checkBalance(lines []JournalLine) error {
	var debits, credits = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.DebitAmount)
		credits = credits.Add(l.CreditAmount)
	}
	if !debits.Equal(credits) {
		return apierr.BalanceFailure(fmt.Errorf("entry does not balance: debits=%s credits=%s", debits, credits))
	}
	return nil
}
