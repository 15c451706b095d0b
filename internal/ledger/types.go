// Package ledger implements the journal generation and reconciliation
// engine: cows, dispositions, journal entries/lines, processing logs, and
// the posters that turn herd events into a balanced general ledger.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AcquisitionType distinguishes a purchased cow from one raised on the farm;
// it decides which account an acquisition entry credits.
type AcquisitionType string

const (
	AcquisitionPurchased AcquisitionType = "purchased"
	AcquisitionRaised    AcquisitionType = "raised"
)

// CowStatus is the lifecycle state of a cow; it transitions to a terminal
// value only via a Disposition.
type CowStatus string

const (
	CowActive   CowStatus = "active"
	CowSold     CowStatus = "sold"
	CowDeceased CowStatus = "deceased"
)

// Cow is a single depreciable dairy-cow asset.
type Cow struct {
	ID              string
	TenantID        string
	TagNumber       string
	FreshenDate     time.Time
	PurchasePrice   decimal.Decimal
	SalvageValue    decimal.Decimal
	AcquisitionType AcquisitionType
	Status          CowStatus
	DispositionID   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DispositionType is the kind of terminal event that removed a cow from
// service.
type DispositionType string

const (
	DispositionSale   DispositionType = "sale"
	DispositionDeath  DispositionType = "death"
	DispositionCulled DispositionType = "culled"
)

// Disposition is the terminal event for a cow: at most one per cow.
type Disposition struct {
	ID              string
	TenantID        string
	CowID           string
	DispositionDate time.Time
	Type            DispositionType
	SaleAmount      decimal.Decimal
	FinalBookValue  decimal.Decimal
	GainLoss        decimal.Decimal
	JournalEntryID  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JournalEntryType distinguishes the poster that produced an entry and, for
// non-acquisition types, is part of the (tenant, month, year, type)
// uniqueness key.
type JournalEntryType string

const (
	EntryAcquisition          JournalEntryType = "acquisition"
	EntryDepreciation         JournalEntryType = "depreciation"
	EntryDisposition          JournalEntryType = "disposition"
	EntryAcquisitionReversal  JournalEntryType = "acquisition_reversal"
	EntryDepreciationReversal JournalEntryType = "depreciation_reversal"
	EntryDispositionReversal  JournalEntryType = "disposition_reversal"
)

// ReversalOf returns the *_reversal type for a base entry type, or "" if t
// is already a reversal type or unrecognized.
func (t JournalEntryType) ReversalOf() JournalEntryType {
	switch t {
	case EntryAcquisition:
		return EntryAcquisitionReversal
	case EntryDepreciation:
		return EntryDepreciationReversal
	case EntryDisposition:
		return EntryDispositionReversal
	default:
		return ""
	}
}

// JournalEntryStatus mirrors the teacher's draft/posted lifecycle; this
// engine only ever creates entries already POSTED (posters are the
// transaction boundary, §7), but the field is kept for audit symmetry.
type JournalEntryStatus string

const (
	EntryDraft  JournalEntryStatus = "draft"
	EntryPosted JournalEntryStatus = "posted"
)

// JournalEntry groups JournalLines whose debits must sum to its credits.
type JournalEntry struct {
	ID          string
	TenantID    string
	EntryDate   time.Time
	Month       int
	Year        int
	Type        JournalEntryType
	Description string
	TotalAmount decimal.Decimal
	Status      JournalEntryStatus
	Lines       []JournalLine
	CreatedAt   time.Time
}

// LineType records which side of the entry a line is on; exactly one of
// DebitAmount/CreditAmount is non-zero and LineType names which.
type LineType string

const (
	LineDebit  LineType = "debit"
	LineCredit LineType = "credit"
)

// JournalLine is one double-entry leg. CowID is set for lines arising from
// a specific cow's acquisition/depreciation/disposition (used by the
// invariant enforcer and catch-up cursor), and nil for lines with no single
// owning cow.
type JournalLine struct {
	ID           string
	EntryID      string
	CowID        *string
	AccountCode  string
	AccountName  string
	Description  string
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	LineType     LineType
}

// ProcessingStatus is the state of a (tenant, month, year, type) batch run.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// ProcessingLog is one row per (tenant, month, year, type); it also serves
// as the mutual-exclusion lease for that period (spec §5): the monthly
// poster moves the row from pending/completed/failed to processing via a
// status-guarded upsert before it writes, and back to completed/failed when
// done. The catch-up, acquisition and disposition posters take no lease.
type ProcessingLog struct {
	ID            string
	TenantID      string
	Month         int
	Year          int
	Type          JournalEntryType
	Status        ProcessingStatus
	CowsProcessed int
	TotalAmount   decimal.Decimal
	ErrorMessage  string
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// ProcessingMode selects how the Monthly Depreciation Poster dates and
// periods its entry (spec §4.3).
type ProcessingMode string

const (
	ModeHistorical ProcessingMode = "historical"
	ModeProduction ProcessingMode = "production"
)
