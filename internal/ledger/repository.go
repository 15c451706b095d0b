package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCowNotFound          = errors.New("cow not found")
	ErrDispositionNotFound  = errors.New("disposition not found")
	ErrEntryNotFound        = errors.New("journal entry not found")
	ErrDuplicateDisposition = errors.New("cow already has a disposition")
)

// Repository is the Data Model Store (spec §2.1): persistent, transactional
// access to cows, dispositions, journal entries/lines, and processing logs,
// scoped per tenant schema. Every method is schema-scoped the way the
// teacher's internal/assets and internal/accounting repositories are:
// schemaName selects the tenant's Postgres schema.
type Repository interface {
	GetCow(ctx context.Context, schemaName, cowID string) (*Cow, error)
	GetCowByTag(ctx context.Context, schemaName, tenantID, tagNumber string) (*Cow, error)
	// CreateCow persists a cow ingested from outside the core (spec §1
	// "CSV ingestion ... out of scope"); it assigns a sequential tag_number
	// when the caller leaves TagNumber blank.
	CreateCow(ctx context.Context, schemaName string, c *Cow) error
	ListActiveCows(ctx context.Context, schemaName, tenantID string) ([]Cow, error)
	ListEligibleCows(ctx context.Context, schemaName, tenantID string, eom time.Time) ([]Cow, error)
	UpdateCowStatus(ctx context.Context, schemaName string, cowID string, status CowStatus, dispositionID *string) error
	// UpdateCowSalvageValue persists a salvage value computed from the
	// tenant's default_salvage_percentage (spec §6) onto a cow that was
	// ingested with salvage_value unset.
	UpdateCowSalvageValue(ctx context.Context, schemaName, cowID string, salvageValue decimal.Decimal) error

	GetDisposition(ctx context.Context, schemaName, dispositionID string) (*Disposition, error)
	GetDispositionByCow(ctx context.Context, schemaName, cowID string) (*Disposition, error)
	CreateDisposition(ctx context.Context, schemaName string, d *Disposition) error
	UpdateDispositionResult(ctx context.Context, schemaName string, dispositionID string, entryID string, finalBookValue, gainLoss decimal.Decimal) error

	// Journal entries. *Tx variants participate in an externally managed
	// transaction (the posters' atomic-write boundary, spec §5).
	GetEntry(ctx context.Context, schemaName, entryID string) (*JournalEntry, error)
	FindEntry(ctx context.Context, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*JournalEntry, error)
	FindDepreciationLinesForCowAfter(ctx context.Context, schemaName, tenantID, cowID string, after time.Time) ([]JournalLine, error)
	LastDepreciationMonth(ctx context.Context, schemaName, tenantID, cowID string) (*time.Time, error)
	AccumulatedDepreciation(ctx context.Context, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error)
	// AccumulatedDepreciationTx is AccumulatedDepreciation read within tx,
	// so a multi-month walk (catch-up, disposition) sees its own prior
	// writes from earlier in the same transaction.
	AccumulatedDepreciationTx(ctx context.Context, tx Tx, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error)

	CreateEntry(ctx context.Context, tx Tx, schemaName string, e *JournalEntry) error
	DeleteEntry(ctx context.Context, tx Tx, schemaName string, entryID string) error
	DeleteLinesForCowAfter(ctx context.Context, tx Tx, schemaName, cowID string, after time.Time) (int, error)
	DeleteEmptyEntries(ctx context.Context, tx Tx, schemaName, tenantID string) (int, error)
	ReplaceCowLinesInEntry(ctx context.Context, tx Tx, schemaName, entryID, cowID string, newLines []JournalLine) error

	// GetOrCreateEntryTx finds the tenant's entry for (month, year, type),
	// creating an empty one dated defaultDate if none exists yet — the
	// catch-up poster's "find/create the tenant's monthly depreciation
	// entry for that month" step (spec §4.2).
	GetOrCreateEntryTx(ctx context.Context, tx Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType, defaultDate time.Time) (entry *JournalEntry, created bool, err error)
	// EntryHasCowLines reports whether entryID already has lines for cowID.
	EntryHasCowLines(ctx context.Context, tx Tx, schemaName, entryID, cowID string) (bool, error)
	// AppendLines inserts lines into an existing entry and recomputes its
	// total_amount from the sum of all debit lines.
	AppendLines(ctx context.Context, tx Tx, schemaName, entryID string, lines []JournalLine) error

	// Processing log — also the per-tenant lease (spec §5).
	AcquireProcessingLease(ctx context.Context, tx Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*ProcessingLog, error)
	CompleteProcessingLease(ctx context.Context, tx Tx, schemaName string, logID string, cowsProcessed int, totalAmount decimal.Decimal) error
	FailProcessingLease(ctx context.Context, schemaName string, logID string, errMsg string) error

	// Dashboard / reconciliation reads (spec §4.6).
	ActiveCowStats(ctx context.Context, schemaName, tenantID string) (count int, totalPurchasePrice decimal.Decimal, err error)
	LedgerBalance(ctx context.Context, schemaName, tenantID, accountCode string) (debits, credits decimal.Decimal, err error)
	MonthlyAdditions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error)
	MonthlyDispositions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error)
	ActiveCountAt(ctx context.Context, schemaName, tenantID string, at time.Time) (int, error)

	// BeginTx/generic transaction boundary.
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is the minimal transaction handle the ledger package needs; the
// concrete Postgres implementation satisfies it with pgx.Tx.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
