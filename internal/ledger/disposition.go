package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// DispositionPoster implements spec §4.5: cleanup, catch-up, partial-month
// depreciation, and the final disposition entry — all in one transaction.
type DispositionPoster struct {
	repo     Repository
	enforcer *enforcer
	catchUp  *CatchUpPoster
	coa      func(tenantID string) *ChartOfAccounts
	settings func(tenantID string) Settings
}

func NewDispositionPoster(repo Repository, catchUp *CatchUpPoster, coa func(string) *ChartOfAccounts, settings func(string) Settings) *DispositionPoster {
	return &DispositionPoster{repo: repo, enforcer: &enforcer{repo: repo}, catchUp: catchUp, coa: coa, settings: settings}
}

// DispositionResult is post_disposition's tagged result record (spec §6).
type DispositionResult struct {
	EntryID  string
	Accum    decimal.Decimal
	Book     decimal.Decimal
	GainLoss decimal.Decimal
}

// PostDisposition implements post_disposition(disposition_id) -> {entry_id, accum, book, gain_loss}.
func (p *DispositionPoster) PostDisposition(ctx context.Context, schemaName, dispositionID string) (DispositionResult, error) {
	d, err := p.repo.GetDisposition(ctx, schemaName, dispositionID)
	if err != nil {
		return DispositionResult{}, apierr.NotFound(fmt.Errorf("post disposition: %w", err))
	}
	cow, err := p.repo.GetCow(ctx, schemaName, d.CowID)
	if err != nil {
		return DispositionResult{}, apierr.NotFound(fmt.Errorf("post disposition: %w", err))
	}

	settings := p.settings(cow.TenantID)
	coa := p.coa(cow.TenantID)

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}
	defer tx.Rollback(ctx)

	// Step 1: cleanup pre-existing over-post — any depreciation for this
	// cow dated after D is stale regardless of how it got there.
	if _, err := p.enforcer.sweepPostDispositionDepreciation(ctx, tx, schemaName, cow.TenantID, cow.ID, d.DispositionDate); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	// Step 2: catch up to the month prior to D. catchUpTx is a no-op if
	// there is nothing before catchUpThrough left to post.
	catchUpThrough := firstOfMonth(d.DispositionDate).AddDate(0, 0, -1)
	if _, err := p.catchUp.catchUpTx(ctx, tx, schemaName, cow, catchUpThrough); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	// Step 3: partial-month depreciation if D falls mid-month.
	eom := EndOfMonth(d.DispositionDate)
	if settings.IncludePartialMonths && d.DispositionDate.Day() < eom.Day() {
		accumBeforeMonth, err := p.repo.AccumulatedDepreciationTx(ctx, tx, schemaName, cow.TenantID, cow.ID, catchUpThrough)
		if err != nil {
			return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
		}
		depreciable := cow.PurchasePrice.Sub(cow.SalvageValue)
		if accumBeforeMonth.LessThan(depreciable) {
			partial := PartialMonthDepreciation(cow.PurchasePrice, cow.SalvageValue, d.DispositionDate, settings)
			if accumBeforeMonth.Add(partial).GreaterThan(depreciable) {
				partial = depreciable.Sub(accumBeforeMonth)
			}
			if partial.GreaterThan(decimal.Zero) {
				deprExpense := coa.Resolve(RoleDeprExpense)
				accumDepr := coa.Resolve(RoleAccumDepr)
				lines := depreciationLinePair(cow.ID, deprExpense, accumDepr, partial)

				entry, created, err := p.repo.GetOrCreateEntryTx(ctx, tx, schemaName, cow.TenantID,
					int(d.DispositionDate.Month()), d.DispositionDate.Year(), EntryDepreciation, d.DispositionDate)
				if err != nil {
					return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
				}
				has, err := p.repo.EntryHasCowLines(ctx, tx, schemaName, entry.ID, cow.ID)
				if err != nil {
					return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
				}
				if has && !created {
					if err := p.repo.ReplaceCowLinesInEntry(ctx, tx, schemaName, entry.ID, cow.ID, lines); err != nil {
						return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
					}
				} else {
					if err := p.repo.AppendLines(ctx, tx, schemaName, entry.ID, lines); err != nil {
						return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
					}
				}
			}
		}
	}

	// Step 4: recompute accumulated depreciation through D.
	actualAccum, err := p.repo.AccumulatedDepreciationTx(ctx, tx, schemaName, cow.TenantID, cow.ID, d.DispositionDate)
	if err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	// Step 5: derive book value & gain/loss.
	book := decimal.Max(cow.SalvageValue, cow.PurchasePrice.Sub(actualAccum))
	saleAmount := d.SaleAmount
	gainLoss := saleAmount.Sub(book)

	// Step 6: delete any previous disposition entry linked from this row.
	if d.JournalEntryID != nil {
		if err := p.repo.DeleteEntry(ctx, tx, schemaName, *d.JournalEntryID); err != nil {
			return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
		}
	}

	// Step 7: create the disposition entry.
	lines, err := dispositionLines(cow, d.Type, actualAccum, saleAmount, gainLoss, coa)
	if err != nil {
		return DispositionResult{}, err
	}
	if err := checkBalance(lines); err != nil {
		return DispositionResult{}, err
	}

	entry := &JournalEntry{
		TenantID:    cow.TenantID,
		EntryDate:   d.DispositionDate,
		Month:       int(d.DispositionDate.Month()),
		Year:        d.DispositionDate.Year(),
		Type:        EntryDisposition,
		Description: fmt.Sprintf("Disposition (%s) of cow %s", d.Type, cow.TagNumber),
		TotalAmount: cow.PurchasePrice,
		Status:      EntryPosted,
		Lines:       lines,
	}
	if err := p.repo.CreateEntry(ctx, tx, schemaName, entry); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	// Step 9: write back disposition + cow state.
	if err := p.repo.UpdateDispositionResult(ctx, schemaName, d.ID, entry.ID, book, gainLoss); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}
	newStatus := CowSold
	if d.Type == DispositionDeath {
		newStatus = CowDeceased
	}
	if err := p.repo.UpdateCowStatus(ctx, schemaName, cow.ID, newStatus, &d.ID); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return DispositionResult{}, fmt.Errorf("post disposition: %w", err)
	}

	log.Info().Str("tenant_id", cow.TenantID).Str("cow_id", cow.ID).Str("disposition_id", d.ID).
		Str("entry_id", entry.ID).Msg("posted disposition entry")

	return DispositionResult{EntryID: entry.ID, Accum: actualAccum, Book: book, GainLoss: gainLoss}, nil
}

// dispositionLines builds the algebraically-balanced line set of spec §4.5
// step 7: Dr(accum) + Dr(cash, if sale) + Dr-or-Cr(gain/loss) = Cr(asset).
func dispositionLines(cow *Cow, dispType DispositionType, actualAccum, saleAmount, gainLoss decimal.Decimal, coa *ChartOfAccounts) ([]JournalLine, error) {
	var lines []JournalLine
	cowID := cow.ID

	if actualAccum.GreaterThan(decimal.Zero) {
		accum := coa.Resolve(RoleAccumDepr)
		lines = append(lines, JournalLine{
			CowID: &cowID, AccountCode: accum.Code, AccountName: accum.Name,
			Description: "Disposition: accumulated depreciation", DebitAmount: actualAccum, LineType: LineDebit,
		})
	}
	if dispType == DispositionSale && saleAmount.GreaterThan(decimal.Zero) {
		cash := coa.Resolve(RoleCash)
		lines = append(lines, JournalLine{
			CowID: &cowID, AccountCode: cash.Code, AccountName: cash.Name,
			Description: "Disposition: sale proceeds", DebitAmount: saleAmount, LineType: LineDebit,
		})
	}
	if gainLoss.Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		if dispType == DispositionSale && gainLoss.GreaterThan(decimal.Zero) {
			gain := coa.Resolve(RoleGainOnSale)
			lines = append(lines, JournalLine{
				CowID: &cowID, AccountCode: gain.Code, AccountName: gain.Name,
				Description: "Disposition: gain on sale", CreditAmount: gainLoss, LineType: LineCredit,
			})
		} else {
			loss := gainLoss.Abs()
			role := LossRoleFor(dispType)
			acct := coa.Resolve(role)
			lines = append(lines, JournalLine{
				CowID: &cowID, AccountCode: acct.Code, AccountName: acct.Name,
				Description: fmt.Sprintf("Disposition: loss (%s)", dispType), DebitAmount: loss, LineType: LineDebit,
			})
		}
	}

	asset := coa.Resolve(RoleAsset)
	lines = append(lines, JournalLine{
		CowID: &cowID, AccountCode: asset.Code, AccountName: asset.Name,
		Description: "Disposition: remove asset cost", CreditAmount: cow.PurchasePrice, LineType: LineCredit,
	})

	return lines, nil
}

// Reinstate implements the optional "reversal" mode of spec §4.5: a
// rescinded disposition gets a reversing entry (swapped Dr/Cr of the
// original, spec §9 choice (c)), and the cow is set back to active. No
// catch-up depreciation is posted for the gap between the original
// disposition date and the reinstatement date, and the disposition row
// itself is left in place.
//
// A reinstatement in the same (month, year) as the disposition is rejected
// as a DataAnomaly: the proration of that partial month is left unresolved
// by the source spec (§9 open question (d)).
func (p *DispositionPoster) Reinstate(ctx context.Context, schemaName, dispositionID string, reinstatementDate time.Time) (string, error) {
	d, err := p.repo.GetDisposition(ctx, schemaName, dispositionID)
	if err != nil {
		return "", apierr.NotFound(fmt.Errorf("reinstate: %w", err))
	}
	if d.JournalEntryID == nil {
		return "", apierr.DataAnomaly(fmt.Errorf("disposition %s has no posted entry to reverse", d.ID))
	}
	if d.DispositionDate.Year() == reinstatementDate.Year() && d.DispositionDate.Month() == reinstatementDate.Month() {
		return "", apierr.DataAnomaly(fmt.Errorf(
			"reinstatement in the same month as the disposition (%04d-%02d) has an unresolved partial-month proration rule; refusing to guess",
			d.DispositionDate.Year(), int(d.DispositionDate.Month())))
	}

	original, err := p.repo.GetEntry(ctx, schemaName, *d.JournalEntryID)
	if err != nil {
		return "", fmt.Errorf("reinstate: %w", err)
	}

	reversalLines := make([]JournalLine, len(original.Lines))
	for i, l := range original.Lines {
		reversalLines[i] = JournalLine{
			CowID: l.CowID, AccountCode: l.AccountCode, AccountName: l.AccountName,
			Description:  "Reversal: " + l.Description,
			DebitAmount:  l.CreditAmount,
			CreditAmount: l.DebitAmount,
		}
		if l.LineType == LineDebit {
			reversalLines[i].LineType = LineCredit
		} else {
			reversalLines[i].LineType = LineDebit
		}
	}
	if err := checkBalance(reversalLines); err != nil {
		return "", err
	}

	reversal := &JournalEntry{
		TenantID:    original.TenantID,
		EntryDate:   reinstatementDate,
		Month:       int(reinstatementDate.Month()),
		Year:        reinstatementDate.Year(),
		Type:        original.Type.ReversalOf(),
		Description: fmt.Sprintf("Reversal of disposition entry %s (reinstatement)", original.ID),
		TotalAmount: original.TotalAmount,
		Status:      EntryPosted,
		Lines:       reversalLines,
	}

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("reinstate: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.repo.CreateEntry(ctx, tx, schemaName, reversal); err != nil {
		return "", fmt.Errorf("reinstate: %w", err)
	}
	if err := p.repo.UpdateCowStatus(ctx, schemaName, d.CowID, CowActive, nil); err != nil {
		return "", fmt.Errorf("reinstate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("reinstate: %w", err)
	}

	log.Info().Str("tenant_id", original.TenantID).Str("disposition_id", d.ID).Str("reversal_entry_id", reversal.ID).
		Msg("reinstated disposition")
	return reversal.ID, nil
}
