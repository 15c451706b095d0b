package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryTx is a no-op transaction handle: the fake repository below writes
// straight through to its maps, the same simplification the teacher's own
// assets.MockRepository makes (no rollback semantics, since every test here
// only exercises the happy path through each poster).
type memoryTx struct{}

func (memoryTx) Commit(ctx context.Context) error   { return nil }
func (memoryTx) Rollback(ctx context.Context) error { return nil }

// memoryRepository is an in-memory Repository fake for unit-testing the
// posters without a database, grounded on the teacher's
// internal/assets.MockRepository (map-backed, mutex-guarded, schema-scoped
// by a prefixed key).
type memoryRepository struct {
	mu sync.Mutex

	cows          map[string]*Cow
	dispositions  map[string]*Disposition
	entries       map[string]*JournalEntry
	processingLog map[string]*ProcessingLog
	seq           int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		cows:          make(map[string]*Cow),
		dispositions:  make(map[string]*Disposition),
		entries:       make(map[string]*JournalEntry),
		processingLog: make(map[string]*ProcessingLog),
	}
}

func key(schemaName, id string) string { return schemaName + "/" + id }

func (r *memoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	return memoryTx{}, nil
}

func (r *memoryRepository) GetCow(ctx context.Context, schemaName, cowID string) (*Cow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cows[key(schemaName, cowID)]
	if !ok {
		return nil, ErrCowNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepository) GetCowByTag(ctx context.Context, schemaName, tenantID, tagNumber string) (*Cow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cows {
		if c.TenantID == tenantID && c.TagNumber == tagNumber {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrCowNotFound
}

func (r *memoryRepository) CreateCow(ctx context.Context, schemaName string, c *Cow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.TagNumber == "" {
		r.seq++
		c.TagNumber = fmt.Sprintf("CM-%05d", r.seq)
	}
	if c.Status == "" {
		c.Status = CowActive
	}
	cp := *c
	r.cows[key(schemaName, c.ID)] = &cp
	return nil
}

func (r *memoryRepository) ListActiveCows(ctx context.Context, schemaName, tenantID string) ([]Cow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Cow
	for _, c := range r.cows {
		if c.TenantID == tenantID && c.Status == CowActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) ListEligibleCows(ctx context.Context, schemaName, tenantID string, eom time.Time) ([]Cow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Cow
	for _, c := range r.cows {
		if c.TenantID != tenantID || c.FreshenDate.After(eom) {
			continue
		}
		d := r.dispositionForCow(schemaName, c.ID)
		if d != nil && !d.DispositionDate.After(eom) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) UpdateCowStatus(ctx context.Context, schemaName string, cowID string, status CowStatus, dispositionID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cows[key(schemaName, cowID)]
	if !ok {
		return ErrCowNotFound
	}
	c.Status = status
	c.DispositionID = dispositionID
	return nil
}

func (r *memoryRepository) UpdateCowSalvageValue(ctx context.Context, schemaName, cowID string, salvageValue decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cows[key(schemaName, cowID)]
	if !ok {
		return ErrCowNotFound
	}
	c.SalvageValue = salvageValue
	return nil
}

func (r *memoryRepository) dispositionForCow(schemaName, cowID string) *Disposition {
	for _, d := range r.dispositions {
		if d.CowID == cowID {
			return d
		}
	}
	return nil
}

func (r *memoryRepository) GetDisposition(ctx context.Context, schemaName, dispositionID string) (*Disposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dispositions[key(schemaName, dispositionID)]
	if !ok {
		return nil, ErrDispositionNotFound
	}
	dp := *d
	return &dp, nil
}

func (r *memoryRepository) GetDispositionByCow(ctx context.Context, schemaName, cowID string) (*Disposition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.dispositionForCow(schemaName, cowID)
	if d == nil {
		return nil, ErrDispositionNotFound
	}
	dp := *d
	return &dp, nil
}

func (r *memoryRepository) CreateDisposition(ctx context.Context, schemaName string, d *Disposition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.dispositionForCow(schemaName, d.CowID); existing != nil {
		existing.DispositionDate = d.DispositionDate
		existing.Type = d.Type
		existing.SaleAmount = d.SaleAmount
		d.ID = existing.ID
		return nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	dp := *d
	r.dispositions[key(schemaName, d.ID)] = &dp
	return nil
}

func (r *memoryRepository) UpdateDispositionResult(ctx context.Context, schemaName string, dispositionID string, entryID string, finalBookValue, gainLoss decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dispositions[key(schemaName, dispositionID)]
	if !ok {
		return ErrDispositionNotFound
	}
	d.JournalEntryID = &entryID
	d.FinalBookValue = finalBookValue
	d.GainLoss = gainLoss
	return nil
}

func (r *memoryRepository) GetEntry(ctx context.Context, schemaName, entryID string) (*JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(schemaName, entryID)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	ep := *e
	ep.Lines = append([]JournalLine(nil), e.Lines...)
	return &ep, nil
}

func (r *memoryRepository) FindEntry(ctx context.Context, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Month == month && e.Year == year && e.Type == entryType {
			ep := *e
			ep.Lines = append([]JournalLine(nil), e.Lines...)
			return &ep, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *memoryRepository) FindDepreciationLinesForCowAfter(ctx context.Context, schemaName, tenantID, cowID string, after time.Time) ([]JournalLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []JournalLine
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.Type != EntryDepreciation || !e.EntryDate.After(after) {
			continue
		}
		for _, l := range e.Lines {
			if l.CowID != nil && *l.CowID == cowID {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (r *memoryRepository) LastDepreciationMonth(ctx context.Context, schemaName, tenantID, cowID string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.Type != EntryDepreciation {
			continue
		}
		for _, l := range e.Lines {
			if l.CowID != nil && *l.CowID == cowID && l.LineType == LineCredit {
				if latest == nil || e.EntryDate.After(*latest) {
					t := e.EntryDate
					latest = &t
				}
			}
		}
	}
	return latest, nil
}

func (r *memoryRepository) accumulatedDepreciationLocked(schemaName, tenantID, cowID string, through time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.Type != EntryDepreciation || e.EntryDate.After(through) {
			continue
		}
		for _, l := range e.Lines {
			if l.CowID != nil && *l.CowID == cowID && l.LineType == LineCredit {
				total = total.Add(l.CreditAmount)
			}
		}
	}
	return total
}

func (r *memoryRepository) AccumulatedDepreciation(ctx context.Context, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accumulatedDepreciationLocked(schemaName, tenantID, cowID, through), nil
}

func (r *memoryRepository) AccumulatedDepreciationTx(ctx context.Context, tx Tx, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accumulatedDepreciationLocked(schemaName, tenantID, cowID, through), nil
}

func (r *memoryRepository) CreateEntry(ctx context.Context, tx Tx, schemaName string, e *JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for i := range e.Lines {
		if e.Lines[i].ID == "" {
			e.Lines[i].ID = uuid.NewString()
		}
		e.Lines[i].EntryID = e.ID
	}
	ep := *e
	ep.Lines = append([]JournalLine(nil), e.Lines...)
	r.entries[key(schemaName, e.ID)] = &ep
	return nil
}

func (r *memoryRepository) DeleteEntry(ctx context.Context, tx Tx, schemaName string, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key(schemaName, entryID))
	return nil
}

func (r *memoryRepository) DeleteLinesForCowAfter(ctx context.Context, tx Tx, schemaName, cowID string, after time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for _, e := range r.entries {
		if e.Type != EntryDepreciation || !e.EntryDate.After(after) {
			continue
		}
		var kept []JournalLine
		for _, l := range e.Lines {
			if l.CowID != nil && *l.CowID == cowID {
				deleted++
				continue
			}
			kept = append(kept, l)
		}
		e.Lines = kept
	}
	return deleted, nil
}

func (r *memoryRepository) DeleteEmptyEntries(ctx context.Context, tx Tx, schemaName, tenantID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k, e := range r.entries {
		if e.TenantID == tenantID && len(e.Lines) == 0 {
			delete(r.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (r *memoryRepository) ReplaceCowLinesInEntry(ctx context.Context, tx Tx, schemaName, entryID, cowID string, newLines []JournalLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(schemaName, entryID)]
	if !ok {
		return ErrEntryNotFound
	}
	var kept []JournalLine
	for _, l := range e.Lines {
		if l.CowID != nil && *l.CowID == cowID {
			continue
		}
		kept = append(kept, l)
	}
	for _, l := range newLines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.EntryID = entryID
		kept = append(kept, l)
	}
	e.Lines = kept
	e.TotalAmount = sumDebits(kept)
	return nil
}

func sumDebits(lines []JournalLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.DebitAmount)
	}
	return total
}

func (r *memoryRepository) GetOrCreateEntryTx(ctx context.Context, tx Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType, defaultDate time.Time) (*JournalEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.Month == month && e.Year == year && e.Type == entryType {
			ep := *e
			ep.Lines = append([]JournalLine(nil), e.Lines...)
			return &ep, false, nil
		}
	}
	e := &JournalEntry{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		EntryDate:   defaultDate,
		Month:       month,
		Year:        year,
		Type:        entryType,
		Description: fmt.Sprintf("%s %d-%02d", entryType, year, month),
		TotalAmount: decimal.Zero,
		Status:      EntryPosted,
	}
	r.entries[key(schemaName, e.ID)] = e
	ep := *e
	return &ep, true, nil
}

func (r *memoryRepository) EntryHasCowLines(ctx context.Context, tx Tx, schemaName, entryID, cowID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(schemaName, entryID)]
	if !ok {
		return false, ErrEntryNotFound
	}
	for _, l := range e.Lines {
		if l.CowID != nil && *l.CowID == cowID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) AppendLines(ctx context.Context, tx Tx, schemaName, entryID string, lines []JournalLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(schemaName, entryID)]
	if !ok {
		return ErrEntryNotFound
	}
	for _, l := range lines {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.EntryID = entryID
		e.Lines = append(e.Lines, l)
	}
	e.TotalAmount = sumDebits(e.Lines)
	return nil
}

func (r *memoryRepository) AcquireProcessingLease(ctx context.Context, tx Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*ProcessingLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logKey := fmt.Sprintf("%s/%s/%d/%d/%s", schemaName, tenantID, month, year, entryType)
	existing, ok := r.processingLog[logKey]
	if ok && existing.Status == ProcessingInProgress {
		return nil, fmt.Errorf("tenant %s period %d-%d is already being processed", tenantID, year, month)
	}
	now := time.Now()
	if !ok {
		existing = &ProcessingLog{ID: uuid.NewString(), TenantID: tenantID, Month: month, Year: year, Type: entryType}
		r.processingLog[logKey] = existing
	}
	existing.Status = ProcessingInProgress
	existing.ErrorMessage = ""
	existing.StartedAt = &now
	existing.CompletedAt = nil
	lp := *existing
	return &lp, nil
}

func (r *memoryRepository) CompleteProcessingLease(ctx context.Context, tx Tx, schemaName string, logID string, cowsProcessed int, totalAmount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.processingLog {
		if l.ID == logID {
			now := time.Now()
			l.Status = ProcessingCompleted
			l.CowsProcessed = cowsProcessed
			l.TotalAmount = totalAmount
			l.CompletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("processing log %s not found", logID)
}

func (r *memoryRepository) FailProcessingLease(ctx context.Context, schemaName string, logID string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.processingLog {
		if l.ID == logID {
			now := time.Now()
			l.Status = ProcessingFailed
			l.ErrorMessage = errMsg
			l.CompletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("processing log %s not found", logID)
}

func (r *memoryRepository) ActiveCowStats(ctx context.Context, schemaName, tenantID string) (int, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	total := decimal.Zero
	for _, c := range r.cows {
		if c.TenantID == tenantID && c.Status == CowActive {
			count++
			total = total.Add(c.PurchasePrice)
		}
	}
	return count, total, nil
}

func (r *memoryRepository) LedgerBalance(ctx context.Context, schemaName, tenantID, accountCode string) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	debits, credits := decimal.Zero, decimal.Zero
	for _, e := range r.entries {
		if e.TenantID != tenantID || e.Status != EntryPosted {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountCode != accountCode {
				continue
			}
			debits = debits.Add(l.DebitAmount)
			credits = credits.Add(l.CreditAmount)
		}
	}
	return debits, credits, nil
}

func (r *memoryRepository) MonthlyAdditions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.cows {
		if c.TenantID == tenantID && c.FreshenDate.Year() == year && int(c.FreshenDate.Month()) == month {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) MonthlyDispositions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, d := range r.dispositions {
		if d.TenantID == tenantID && d.DispositionDate.Year() == year && int(d.DispositionDate.Month()) == month {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) ActiveCountAt(ctx context.Context, schemaName, tenantID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.cows {
		if c.TenantID != tenantID || c.FreshenDate.After(at) {
			continue
		}
		d := r.dispositionForCow(schemaName, c.ID)
		if d != nil && !d.DispositionDate.After(at) {
			continue
		}
		count++
	}
	return count, nil
}

var _ Repository = (*memoryRepository)(nil)
