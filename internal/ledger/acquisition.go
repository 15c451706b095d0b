package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// AcquisitionPoster implements spec §4.4: one entry per cow, dated the
// cow's freshen_date, debiting the asset account and crediting cash or
// heifers depending on acquisition type.
type AcquisitionPoster struct {
	repo     Repository
	coa      func(tenantID string) *ChartOfAccounts
	settings func(tenantID string) Settings
}

func NewAcquisitionPoster(repo Repository, coa func(tenantID string) *ChartOfAccounts, settings func(tenantID string) Settings) *AcquisitionPoster {
	return &AcquisitionPoster{repo: repo, coa: coa, settings: settings}
}

// PostAcquisition implements post_acquisition(cow_id) -> entry id (spec §6).
func (p *AcquisitionPoster) PostAcquisition(ctx context.Context, schemaName, cowID string) (string, error) {
	cow, err := p.repo.GetCow(ctx, schemaName, cowID)
	if err != nil {
		return "", apierr.NotFound(fmt.Errorf("post acquisition: %w", err))
	}

	// A cow ingested with salvage_value unset gets the tenant's configured
	// default_salvage_percentage applied here, the first financial event in
	// the cow's life, so every downstream depreciation calculation sees it.
	if cow.SalvageValue.IsZero() {
		settings := p.settings(cow.TenantID)
		if salvage := settings.DefaultSalvageValue(cow.PurchasePrice); salvage.GreaterThan(decimal.Zero) {
			if err := p.repo.UpdateCowSalvageValue(ctx, schemaName, cow.ID, salvage); err != nil {
				return "", fmt.Errorf("post acquisition: %w", err)
			}
			cow.SalvageValue = salvage
		}
	}

	coa := p.coa(cow.TenantID)
	asset := coa.Resolve(RoleAsset)

	var creditRole AccountRole
	if cow.AcquisitionType == AcquisitionRaised {
		creditRole = RoleHeifers
	} else {
		creditRole = RoleCash
	}
	credit := coa.Resolve(creditRole)

	lines := []JournalLine{
		{
			CowID: &cow.ID, AccountCode: asset.Code, AccountName: asset.Name,
			Description: fmt.Sprintf("Acquisition of cow %s", cow.TagNumber),
			DebitAmount: cow.PurchasePrice, LineType: LineDebit,
		},
		{
			CowID: &cow.ID, AccountCode: credit.Code, AccountName: credit.Name,
			Description:  fmt.Sprintf("Acquisition of cow %s", cow.TagNumber),
			CreditAmount: cow.PurchasePrice, LineType: LineCredit,
		},
	}
	if err := checkBalance(lines); err != nil {
		return "", err
	}

	entry := &JournalEntry{
		TenantID:    cow.TenantID,
		EntryDate:   cow.FreshenDate,
		Month:       int(cow.FreshenDate.Month()),
		Year:        cow.FreshenDate.Year(),
		Type:        EntryAcquisition,
		Description: fmt.Sprintf("Acquisition: cow %s", cow.TagNumber),
		TotalAmount: cow.PurchasePrice,
		Status:      EntryPosted,
		Lines:       lines,
	}

	tx, err := p.repo.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("post acquisition: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.repo.CreateEntry(ctx, tx, schemaName, entry); err != nil {
		return "", fmt.Errorf("post acquisition: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("post acquisition: %w", err)
	}

	log.Info().Str("tenant_id", cow.TenantID).Str("cow_id", cow.ID).Str("entry_id", entry.ID).
		Msg("posted acquisition entry")
	return entry.ID, nil
}
