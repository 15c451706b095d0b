package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

// Engine is the facade exposing every operation of spec §6's trigger API.
// The specific transport (CLI, RPC, HTTP) that calls into it is out of
// scope (spec §1); cmd/engine wires this up behind plain CLI subcommands.
type Engine struct {
	repo                 Repository
	acquisition          *AcquisitionPoster
	catchUp              *CatchUpPoster
	monthly              *MonthlyPoster
	disposition          *DispositionPoster
	reports              *ReportQueries
	enforcer             *enforcer
	fiscalYearStartMonth func(tenantID string) int
}

// NewEngine wires the posters together; coaFor/settingsFor resolve a
// tenant's chart-of-accounts overrides and depreciation settings
// (internal/tenantcfg), fiscalYearStartMonthFor resolves the tenant's
// reporting fiscal year start (spec §6 fiscal_year_start_month), and now
// is injected so production-mode posting is testable without a wall clock.
func NewEngine(repo Repository, coaFor func(tenantID string) *ChartOfAccounts, settingsFor func(tenantID string) Settings, fiscalYearStartMonthFor func(tenantID string) int, now func() time.Time) *Engine {
	catchUp := NewCatchUpPoster(repo, coaFor, settingsFor)
	return &Engine{
		repo:                 repo,
		acquisition:          NewAcquisitionPoster(repo, coaFor, settingsFor),
		catchUp:              catchUp,
		monthly:              NewMonthlyPoster(repo, coaFor, settingsFor, now),
		disposition:          NewDispositionPoster(repo, catchUp, coaFor, settingsFor),
		reports:              NewReportQueries(repo, coaFor),
		enforcer:             &enforcer{repo: repo},
		fiscalYearStartMonth: fiscalYearStartMonthFor,
	}
}

func (e *Engine) PostAcquisition(ctx context.Context, schemaName, cowID string) (string, error) {
	return e.acquisition.PostAcquisition(ctx, schemaName, cowID)
}

func (e *Engine) PostMonthlyDepreciation(ctx context.Context, schemaName, tenantID string, month, year int, mode ProcessingMode) (MonthlyResult, error) {
	return e.monthly.PostMonthlyDepreciation(ctx, schemaName, tenantID, month, year, mode)
}

func (e *Engine) PostDisposition(ctx context.Context, schemaName, dispositionID string) (DispositionResult, error) {
	return e.disposition.PostDisposition(ctx, schemaName, dispositionID)
}

// RegisterDisposition records a new disposition for a cow ahead of posting.
// Unlike the repository's own upsert (which lets an ingestion pipeline
// correct an unposted disposition's details by cow_id), this is the strict
// entry point: it rejects outright if the cow already has one, rather than
// silently overwriting it.
func (e *Engine) RegisterDisposition(ctx context.Context, schemaName string, d *Disposition) error {
	if err := e.enforcer.checkAtMostOneDisposition(ctx, schemaName, d.CowID); err != nil {
		return err
	}
	if err := e.repo.CreateDisposition(ctx, schemaName, d); err != nil {
		return fmt.Errorf("register disposition: %w", err)
	}
	return nil
}

func (e *Engine) CatchUpCow(ctx context.Context, schemaName, cowID string, through time.Time) (int, error) {
	return e.catchUp.CatchUpCow(ctx, schemaName, cowID, through)
}

func (e *Engine) DashboardStats(ctx context.Context, schemaName, tenantID string) (DashboardStats, error) {
	return e.reports.DashboardStats(ctx, schemaName, tenantID)
}

func (e *Engine) MonthlyReconciliation(ctx context.Context, schemaName, tenantID string, year int, applyYearAdjustment bool) ([]MonthRow, error) {
	return e.reports.MonthlyReconciliation(ctx, schemaName, tenantID, year, e.fiscalYearStartMonth(tenantID), applyYearAdjustment)
}

// YearSummary is one year's worth of process_historical's per-year summary.
type YearSummary struct {
	Year          int
	MonthsPosted  int
	CowsProcessed int
	Errors        []string
}

// ProcessHistorical implements process_historical(tenant, start_year?,
// end_year?) -> per-year summary. Per spec §9 "Historical backfill must be
// month-at-a-time with separate transactions", each month is its own call
// to PostMonthlyDepreciation (its own transaction); a failure on one month
// is recorded and processing continues, so a cancelled or partially-failed
// run leaves a consistent prefix that a re-run resumes cleanly (idempotent
// per-month posting).
func (e *Engine) ProcessHistorical(ctx context.Context, schemaName, tenantID string, startYear, endYear int) ([]YearSummary, error) {
	if endYear < startYear {
		return nil, apierr.DataAnomaly(fmt.Errorf("end_year %d precedes start_year %d", endYear, startYear))
	}

	summaries := make([]YearSummary, 0, endYear-startYear+1)
	for year := startYear; year <= endYear; year++ {
		ys := YearSummary{Year: year}
		for month := 1; month <= 12; month++ {
			result, err := e.monthly.PostMonthlyDepreciation(ctx, schemaName, tenantID, month, year, ModeHistorical)
			if err != nil {
				ys.Errors = append(ys.Errors, fmt.Sprintf("%04d-%02d: %s", year, month, apierr.Sanitize(err.Error())))
				continue
			}
			ys.MonthsPosted++
			ys.CowsProcessed += result.CowsProcessed
		}
		summaries = append(summaries, ys)
	}
	return summaries, nil
}

// MissingJournalsReport is process_missing_journals(tenant)'s structured
// report: successes, failures, and a cut-off indicator if the batch limit
// was hit (spec §7 "Batch orchestrators ... return a structured report").
type MissingJournalsReport struct {
	Processed int
	Errors    []string
	CutOff    bool
}

// maxCowsPerSweep bounds a single process_missing_journals run so it can't
// run unbounded against a very large herd; callers re-invoke to continue.
const maxCowsPerSweep = 5000

// ProcessMissingJournals implements process_missing_journals(tenant) ->
// {processed, errors}: sweeps every active cow's catch-up through today,
// repairing any gap left by an out-of-order ingest or a skipped scheduler
// run, accumulating per-cow errors rather than aborting the whole sweep
// (spec §7 propagation policy for batch orchestrators).
func (e *Engine) ProcessMissingJournals(ctx context.Context, schemaName, tenantID string, now time.Time) (MissingJournalsReport, error) {
	cows, err := e.repo.ListActiveCows(ctx, schemaName, tenantID)
	if err != nil {
		return MissingJournalsReport{}, fmt.Errorf("process missing journals: %w", err)
	}

	var report MissingJournalsReport
	for i, c := range cows {
		if i >= maxCowsPerSweep {
			report.CutOff = true
			break
		}
		if _, err := e.catchUp.CatchUpCow(ctx, schemaName, c.ID, now); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("cow %s: %s", c.TagNumber, apierr.Sanitize(err.Error())))
			log.Error().Err(err).Str("tenant_id", tenantID).Str("cow_id", c.ID).Msg("missing journal sweep failed for cow")
			continue
		}
		report.Processed++
	}
	return report, nil
}

// ReverseEntry implements reverse_entry(entry_id, reason) ->
// {reversal_entry_id}: a new entry with every line's debit/credit swapped,
// appended rather than mutating the original (spec §9 choice (c)).
func (e *Engine) ReverseEntry(ctx context.Context, schemaName, entryID, reason string) (string, error) {
	original, err := e.repo.GetEntry(ctx, schemaName, entryID)
	if err != nil {
		return "", apierr.NotFound(fmt.Errorf("reverse entry: %w", err))
	}
	reversalType := original.Type.ReversalOf()
	if reversalType == "" {
		return "", apierr.DataAnomaly(fmt.Errorf("entry type %q cannot be reversed", original.Type))
	}

	lines := make([]JournalLine, len(original.Lines))
	for i, l := range original.Lines {
		lines[i] = JournalLine{
			CowID: l.CowID, AccountCode: l.AccountCode, AccountName: l.AccountName,
			Description:  "Reversal: " + l.Description,
			DebitAmount:  l.CreditAmount,
			CreditAmount: l.DebitAmount,
		}
		if l.LineType == LineDebit {
			lines[i].LineType = LineCredit
		} else {
			lines[i].LineType = LineDebit
		}
	}
	if err := checkBalance(lines); err != nil {
		return "", err
	}

	now := time.Now()
	reversal := &JournalEntry{
		TenantID:    original.TenantID,
		EntryDate:   now,
		Month:       int(now.Month()),
		Year:        now.Year(),
		Type:        reversalType,
		Description: fmt.Sprintf("Reversal of %s (%s)", original.ID, reason),
		TotalAmount: original.TotalAmount,
		Status:      EntryPosted,
		Lines:       lines,
	}

	tx, err := e.repo.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("reverse entry: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.repo.CreateEntry(ctx, tx, schemaName, reversal); err != nil {
		return "", fmt.Errorf("reverse entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("reverse entry: %w", err)
	}

	log.Info().Str("tenant_id", original.TenantID).Str("original_entry_id", original.ID).
		Str("reversal_entry_id", reversal.ID).Str("reason", reason).Msg("reversed journal entry")
	return reversal.ID, nil
}
