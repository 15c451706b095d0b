package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository is the pgx-backed Data Model Store. Every query
// injects the tenant's schema name via fmt.Sprintf into a %s.table_name
// placeholder and parameterizes everything else with $N — the same split
// the teacher's internal/assets and internal/accounting repositories use.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return pgxTx{tx}, nil
}

// pgxTx adapts pgx.Tx to the ledger.Tx interface while still exposing the
// underlying pgx.Tx to this package's own *Tx methods via unwrap.
type pgxTx struct {
	pgx.Tx
}

func unwrap(tx Tx) pgx.Tx {
	return tx.(pgxTx).Tx
}

func (r *PostgresRepository) GetCow(ctx context.Context, schemaName, cowID string) (*Cow, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, tag_number, freshen_date, purchase_price, salvage_value,
		       acquisition_type, status, disposition_id, created_at, updated_at
		FROM %s.cows WHERE id = $1`, schemaName)
	return scanCow(r.db.QueryRow(ctx, query, cowID))
}

func (r *PostgresRepository) GetCowByTag(ctx context.Context, schemaName, tenantID, tagNumber string) (*Cow, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, tag_number, freshen_date, purchase_price, salvage_value,
		       acquisition_type, status, disposition_id, created_at, updated_at
		FROM %s.cows WHERE tenant_id = $1 AND tag_number = $2`, schemaName)
	return scanCow(r.db.QueryRow(ctx, query, tenantID, tagNumber))
}

func scanCow(row pgx.Row) (*Cow, error) {
	var c Cow
	if err := row.Scan(&c.ID, &c.TenantID, &c.TagNumber, &c.FreshenDate, &c.PurchasePrice,
		&c.SalvageValue, &c.AcquisitionType, &c.Status, &c.DispositionID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCowNotFound
		}
		return nil, fmt.Errorf("scan cow: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) CreateCow(ctx context.Context, schemaName string, c *Cow) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create cow: %w", err)
	}
	defer tx.Rollback(ctx)

	if c.TagNumber == "" {
		c.TagNumber, err = nextSequence(ctx, tx, schemaName, "cows", "tag_number", "CM")
		if err != nil {
			return err
		}
	}
	if c.Status == "" {
		c.Status = CowActive
	}
	query := fmt.Sprintf(`
		INSERT INTO %s.cows (id, tenant_id, tag_number, freshen_date, purchase_price, salvage_value,
		                     acquisition_type, status, disposition_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`, schemaName)
	if _, err := tx.Exec(ctx, query, c.ID, c.TenantID, c.TagNumber, c.FreshenDate, c.PurchasePrice,
		c.SalvageValue, c.AcquisitionType, c.Status, c.DispositionID); err != nil {
		return fmt.Errorf("create cow: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListActiveCows(ctx context.Context, schemaName, tenantID string) ([]Cow, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, tag_number, freshen_date, purchase_price, salvage_value,
		       acquisition_type, status, disposition_id, created_at, updated_at
		FROM %s.cows WHERE tenant_id = $1 AND status = 'active'`, schemaName)
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active cows: %w", err)
	}
	defer rows.Close()
	return collectCows(rows)
}

// ListEligibleCows returns cows eligible for monthly depreciation in the
// month ending at eom: freshened on or before eom, and either never disposed
// or disposed after eom. A cow disposed during or before the target month is
// excluded — its depreciation for that period is handled by the disposition
// poster's catch-up and partial-month entry instead.
func (r *PostgresRepository) ListEligibleCows(ctx context.Context, schemaName, tenantID string, eom time.Time) ([]Cow, error) {
	query := fmt.Sprintf(`
		SELECT c.id, c.tenant_id, c.tag_number, c.freshen_date, c.purchase_price, c.salvage_value,
		       c.acquisition_type, c.status, c.disposition_id, c.created_at, c.updated_at
		FROM %s.cows c
		LEFT JOIN %s.dispositions d ON d.cow_id = c.id
		WHERE c.tenant_id = $1
		  AND c.freshen_date <= $2
		  AND (d.id IS NULL OR d.disposition_date > $2)`,
		schemaName, schemaName)
	rows, err := r.db.Query(ctx, query, tenantID, eom)
	if err != nil {
		return nil, fmt.Errorf("list eligible cows: %w", err)
	}
	defer rows.Close()
	return collectCows(rows)
}

func collectCows(rows pgx.Rows) ([]Cow, error) {
	var cows []Cow
	for rows.Next() {
		var c Cow
		if err := rows.Scan(&c.ID, &c.TenantID, &c.TagNumber, &c.FreshenDate, &c.PurchasePrice,
			&c.SalvageValue, &c.AcquisitionType, &c.Status, &c.DispositionID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cow row: %w", err)
		}
		cows = append(cows, c)
	}
	return cows, rows.Err()
}

func (r *PostgresRepository) UpdateCowStatus(ctx context.Context, schemaName string, cowID string, status CowStatus, dispositionID *string) error {
	query := fmt.Sprintf(`UPDATE %s.cows SET status = $1, disposition_id = $2, updated_at = NOW() WHERE id = $3`, schemaName)
	tag, err := r.db.Exec(ctx, query, status, dispositionID, cowID)
	if err != nil {
		return fmt.Errorf("update cow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCowNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateCowSalvageValue(ctx context.Context, schemaName, cowID string, salvageValue decimal.Decimal) error {
	query := fmt.Sprintf(`UPDATE %s.cows SET salvage_value = $1, updated_at = NOW() WHERE id = $2`, schemaName)
	tag, err := r.db.Exec(ctx, query, salvageValue, cowID)
	if err != nil {
		return fmt.Errorf("update cow salvage value: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCowNotFound
	}
	return nil
}

func (r *PostgresRepository) GetDisposition(ctx context.Context, schemaName, dispositionID string) (*Disposition, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, cow_id, disposition_date, type, sale_amount, final_book_value,
		       gain_loss, journal_entry_id, created_at, updated_at
		FROM %s.dispositions WHERE id = $1`, schemaName)
	return scanDisposition(r.db.QueryRow(ctx, query, dispositionID))
}

func (r *PostgresRepository) GetDispositionByCow(ctx context.Context, schemaName, cowID string) (*Disposition, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, cow_id, disposition_date, type, sale_amount, final_book_value,
		       gain_loss, journal_entry_id, created_at, updated_at
		FROM %s.dispositions WHERE cow_id = $1`, schemaName)
	return scanDisposition(r.db.QueryRow(ctx, query, cowID))
}

func scanDisposition(row pgx.Row) (*Disposition, error) {
	var d Disposition
	if err := row.Scan(&d.ID, &d.TenantID, &d.CowID, &d.DispositionDate, &d.Type, &d.SaleAmount,
		&d.FinalBookValue, &d.GainLoss, &d.JournalEntryID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDispositionNotFound
		}
		return nil, fmt.Errorf("scan disposition: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) CreateDisposition(ctx context.Context, schemaName string, d *Disposition) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s.dispositions (id, tenant_id, cow_id, disposition_date, type, sale_amount,
		                              final_book_value, gain_loss, journal_entry_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (cow_id) DO UPDATE SET
		  disposition_date = EXCLUDED.disposition_date,
		  type = EXCLUDED.type,
		  sale_amount = EXCLUDED.sale_amount,
		  updated_at = NOW()`, schemaName)
	_, err := r.db.Exec(ctx, query, d.ID, d.TenantID, d.CowID, d.DispositionDate, d.Type,
		d.SaleAmount, d.FinalBookValue, d.GainLoss, d.JournalEntryID)
	if err != nil {
		return fmt.Errorf("create disposition: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateDispositionResult(ctx context.Context, schemaName string, dispositionID string, entryID string, finalBookValue, gainLoss decimal.Decimal) error {
	query := fmt.Sprintf(`
		UPDATE %s.dispositions
		SET journal_entry_id = $1, final_book_value = $2, gain_loss = $3, updated_at = NOW()
		WHERE id = $4`, schemaName)
	_, err := r.db.Exec(ctx, query, entryID, finalBookValue, gainLoss, dispositionID)
	if err != nil {
		return fmt.Errorf("update disposition result: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetEntry(ctx context.Context, schemaName, entryID string) (*JournalEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, entry_date, month, year, type, description, total_amount, status, created_at
		FROM %s.journal_entries WHERE id = $1`, schemaName)
	e, err := scanEntry(r.db.QueryRow(ctx, query, entryID))
	if err != nil {
		return nil, err
	}
	lines, err := r.loadLines(ctx, schemaName, e.ID)
	if err != nil {
		return nil, err
	}
	e.Lines = lines
	return e, nil
}

func (r *PostgresRepository) FindEntry(ctx context.Context, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*JournalEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, entry_date, month, year, type, description, total_amount, status, created_at
		FROM %s.journal_entries WHERE tenant_id = $1 AND month = $2 AND year = $3 AND type = $4`, schemaName)
	e, err := scanEntry(r.db.QueryRow(ctx, query, tenantID, month, year, entryType))
	if err != nil {
		return nil, err
	}
	lines, err := r.loadLines(ctx, schemaName, e.ID)
	if err != nil {
		return nil, err
	}
	e.Lines = lines
	return e, nil
}

func scanEntry(row pgx.Row) (*JournalEntry, error) {
	var e JournalEntry
	if err := row.Scan(&e.ID, &e.TenantID, &e.EntryDate, &e.Month, &e.Year, &e.Type,
		&e.Description, &e.TotalAmount, &e.Status, &e.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("scan journal entry: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) loadLines(ctx context.Context, schemaName, entryID string) ([]JournalLine, error) {
	query := fmt.Sprintf(`
		SELECT id, entry_id, cow_id, account_code, account_name, description, debit_amount, credit_amount, line_type
		FROM %s.journal_lines WHERE entry_id = $1`, schemaName)
	rows, err := r.db.Query(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("load journal lines: %w", err)
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.CowID, &l.AccountCode, &l.AccountName,
			&l.Description, &l.DebitAmount, &l.CreditAmount, &l.LineType); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) FindDepreciationLinesForCowAfter(ctx context.Context, schemaName, tenantID, cowID string, after time.Time) ([]JournalLine, error) {
	query := fmt.Sprintf(`
		SELECT l.id, l.entry_id, l.cow_id, l.account_code, l.account_name, l.description, l.debit_amount, l.credit_amount, l.line_type
		FROM %s.journal_lines l
		JOIN %s.journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND e.type = 'depreciation' AND l.cow_id = $2 AND e.entry_date > $3`,
		schemaName, schemaName)
	rows, err := r.db.Query(ctx, query, tenantID, cowID, after)
	if err != nil {
		return nil, fmt.Errorf("find depreciation lines for cow: %w", err)
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.CowID, &l.AccountCode, &l.AccountName,
			&l.Description, &l.DebitAmount, &l.CreditAmount, &l.LineType); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// LastDepreciationMonth returns the latest entry_date among cow's posted
// depreciation credits, used by the catch-up poster to find its cursor.
func (r *PostgresRepository) LastDepreciationMonth(ctx context.Context, schemaName, tenantID, cowID string) (*time.Time, error) {
	query := fmt.Sprintf(`
		SELECT MAX(e.entry_date)
		FROM %s.journal_lines l
		JOIN %s.journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND e.type = 'depreciation' AND l.cow_id = $2 AND l.line_type = 'credit'`,
		schemaName, schemaName)
	var t *time.Time
	if err := r.db.QueryRow(ctx, query, tenantID, cowID).Scan(&t); err != nil {
		return nil, fmt.Errorf("last depreciation month: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) AccumulatedDepreciation(ctx context.Context, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(l.credit_amount), 0)
		FROM %s.journal_lines l
		JOIN %s.journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND e.type = 'depreciation' AND l.cow_id = $2 AND l.line_type = 'credit' AND e.entry_date <= $3`,
		schemaName, schemaName)
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantID, cowID, through).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("accumulated depreciation: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) AccumulatedDepreciationTx(ctx context.Context, txh Tx, schemaName, tenantID, cowID string, through time.Time) (decimal.Decimal, error) {
	tx := unwrap(txh)
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(l.credit_amount), 0)
		FROM %s.journal_lines l
		JOIN %s.journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND e.type = 'depreciation' AND l.cow_id = $2 AND l.line_type = 'credit' AND e.entry_date <= $3`,
		schemaName, schemaName)
	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, tenantID, cowID, through).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("accumulated depreciation (tx): %w", err)
	}
	return total, nil
}

// nextSequence mirrors the teacher's FA-%05d / JE-%05d sequential
// numbering pattern: SUBSTRING the numeric suffix out of the highest
// existing number and add one.
func nextSequence(ctx context.Context, tx pgx.Tx, schemaName, table, column, prefix string) (string, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(CAST(SUBSTRING(%s FROM '%s-([0-9]+)') AS INTEGER)), 0) + 1
		FROM %s.%s`, column, prefix, schemaName, table)
	var seq int
	if err := tx.QueryRow(ctx, query).Scan(&seq); err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", table, err)
	}
	return fmt.Sprintf("%s-%05d", prefix, seq), nil
}

func (r *PostgresRepository) CreateEntry(ctx context.Context, txh Tx, schemaName string, e *JournalEntry) error {
	tx := unwrap(txh)
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s.journal_entries (id, tenant_id, entry_date, month, year, type, description, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`, schemaName)
	if _, err := tx.Exec(ctx, query, e.ID, e.TenantID, e.EntryDate, e.Month, e.Year, e.Type,
		e.Description, e.TotalAmount, e.Status); err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}

	lineQuery := fmt.Sprintf(`
		INSERT INTO %s.journal_lines (id, entry_id, cow_id, account_code, account_name, description, debit_amount, credit_amount, line_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, schemaName)
	for i := range e.Lines {
		l := &e.Lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.EntryID = e.ID
		if _, err := tx.Exec(ctx, lineQuery, l.ID, l.EntryID, l.CowID, l.AccountCode, l.AccountName,
			l.Description, l.DebitAmount, l.CreditAmount, l.LineType); err != nil {
			return fmt.Errorf("create journal line: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) DeleteEntry(ctx context.Context, txh Tx, schemaName string, entryID string) error {
	tx := unwrap(txh)
	query := fmt.Sprintf(`DELETE FROM %s.journal_entries WHERE id = $1`, schemaName)
	if _, err := tx.Exec(ctx, query, entryID); err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	return nil
}

// DeleteLinesForCowAfter removes depreciation lines for cowID dated after
// `after` (the invariant enforcer's cascade cleanup, spec §4.7), returning
// how many were removed.
func (r *PostgresRepository) DeleteLinesForCowAfter(ctx context.Context, txh Tx, schemaName, cowID string, after time.Time) (int, error) {
	tx := unwrap(txh)
	query := fmt.Sprintf(`
		DELETE FROM %s.journal_lines l
		USING %s.journal_entries e
		WHERE l.entry_id = e.id AND e.type = 'depreciation' AND l.cow_id = $1 AND e.entry_date > $2`,
		schemaName, schemaName)
	tag, err := tx.Exec(ctx, query, cowID, after)
	if err != nil {
		return 0, fmt.Errorf("delete lines for cow after: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) DeleteEmptyEntries(ctx context.Context, txh Tx, schemaName, tenantID string) (int, error) {
	tx := unwrap(txh)
	query := fmt.Sprintf(`
		DELETE FROM %s.journal_entries e
		WHERE e.tenant_id = $1 AND NOT EXISTS (SELECT 1 FROM %s.journal_lines l WHERE l.entry_id = e.id)`,
		schemaName, schemaName)
	tag, err := tx.Exec(ctx, query, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete empty entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) ReplaceCowLinesInEntry(ctx context.Context, txh Tx, schemaName, entryID, cowID string, newLines []JournalLine) error {
	tx := unwrap(txh)
	delQuery := fmt.Sprintf(`DELETE FROM %s.journal_lines WHERE entry_id = $1 AND cow_id = $2`, schemaName)
	if _, err := tx.Exec(ctx, delQuery, entryID, cowID); err != nil {
		return fmt.Errorf("delete cow lines: %w", err)
	}
	insQuery := fmt.Sprintf(`
		INSERT INTO %s.journal_lines (id, entry_id, cow_id, account_code, account_name, description, debit_amount, credit_amount, line_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, schemaName)
	for i := range newLines {
		l := &newLines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.EntryID = entryID
		if _, err := tx.Exec(ctx, insQuery, l.ID, entryID, cowID, l.AccountCode, l.AccountName,
			l.Description, l.DebitAmount, l.CreditAmount, l.LineType); err != nil {
			return fmt.Errorf("insert replacement line: %w", err)
		}
	}
	total := fmt.Sprintf(`
		UPDATE %s.journal_entries SET total_amount = (
			SELECT COALESCE(SUM(debit_amount), 0) FROM %s.journal_lines WHERE entry_id = $1
		) WHERE id = $1`, schemaName, schemaName)
	if _, err := tx.Exec(ctx, total, entryID); err != nil {
		return fmt.Errorf("recompute entry total: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOrCreateEntryTx(ctx context.Context, txh Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType, defaultDate time.Time) (*JournalEntry, bool, error) {
	tx := unwrap(txh)
	query := fmt.Sprintf(`
		SELECT id, tenant_id, entry_date, month, year, type, description, total_amount, status, created_at
		FROM %s.journal_entries WHERE tenant_id = $1 AND month = $2 AND year = $3 AND type = $4`, schemaName)
	e, err := scanEntry(tx.QueryRow(ctx, query, tenantID, month, year, entryType))
	if err == nil {
		lines, lerr := r.loadLinesTx(ctx, tx, schemaName, e.ID)
		if lerr != nil {
			return nil, false, lerr
		}
		e.Lines = lines
		return e, false, nil
	}
	if err != ErrEntryNotFound {
		return nil, false, err
	}

	e = &JournalEntry{
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
	insert := fmt.Sprintf(`
		INSERT INTO %s.journal_entries (id, tenant_id, entry_date, month, year, type, description, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`, schemaName)
	if _, err := tx.Exec(ctx, insert, e.ID, e.TenantID, e.EntryDate, e.Month, e.Year, e.Type,
		e.Description, e.TotalAmount, e.Status); err != nil {
		return nil, false, fmt.Errorf("create monthly entry: %w", err)
	}
	return e, true, nil
}

func (r *PostgresRepository) loadLinesTx(ctx context.Context, tx pgx.Tx, schemaName, entryID string) ([]JournalLine, error) {
	query := fmt.Sprintf(`
		SELECT id, entry_id, cow_id, account_code, account_name, description, debit_amount, credit_amount, line_type
		FROM %s.journal_lines WHERE entry_id = $1`, schemaName)
	rows, err := tx.Query(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("load journal lines: %w", err)
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.CowID, &l.AccountCode, &l.AccountName,
			&l.Description, &l.DebitAmount, &l.CreditAmount, &l.LineType); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) EntryHasCowLines(ctx context.Context, txh Tx, schemaName, entryID, cowID string) (bool, error) {
	tx := unwrap(txh)
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s.journal_lines WHERE entry_id = $1 AND cow_id = $2)`, schemaName)
	var exists bool
	if err := tx.QueryRow(ctx, query, entryID, cowID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing cow lines: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) AppendLines(ctx context.Context, txh Tx, schemaName, entryID string, lines []JournalLine) error {
	tx := unwrap(txh)
	insert := fmt.Sprintf(`
		INSERT INTO %s.journal_lines (id, entry_id, cow_id, account_code, account_name, description, debit_amount, credit_amount, line_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, schemaName)
	for i := range lines {
		l := &lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.EntryID = entryID
		if _, err := tx.Exec(ctx, insert, l.ID, entryID, l.CowID, l.AccountCode, l.AccountName,
			l.Description, l.DebitAmount, l.CreditAmount, l.LineType); err != nil {
			return fmt.Errorf("append journal line: %w", err)
		}
	}
	total := fmt.Sprintf(`
		UPDATE %s.journal_entries SET total_amount = (
			SELECT COALESCE(SUM(debit_amount), 0) FROM %s.journal_lines WHERE entry_id = $1
		) WHERE id = $1`, schemaName, schemaName)
	if _, err := tx.Exec(ctx, total, entryID); err != nil {
		return fmt.Errorf("recompute entry total after append: %w", err)
	}
	return nil
}

// AcquireProcessingLease upserts a ProcessingLog row and transitions it to
// 'processing', guarded so two concurrent callers for the same
// (tenant, month, year, type) cannot both proceed — the per-tenant
// mutual-exclusion lease of spec §5.
func (r *PostgresRepository) AcquireProcessingLease(ctx context.Context, txh Tx, schemaName, tenantID string, month, year int, entryType JournalEntryType) (*ProcessingLog, error) {
	tx := unwrap(txh)
	upsert := fmt.Sprintf(`
		INSERT INTO %s.processing_log (id, tenant_id, month, year, type, status, cows_processed, total_amount, started_at)
		VALUES ($1, $2, $3, $4, $5, 'processing', 0, 0, NOW())
		ON CONFLICT (tenant_id, month, year, type) DO UPDATE SET
		  status = 'processing', error_message = '', started_at = NOW(), completed_at = NULL
		WHERE %s.processing_log.status != 'processing'
		RETURNING id, tenant_id, month, year, type, status, cows_processed, total_amount, error_message, started_at, completed_at`,
		schemaName, schemaName)
	var log ProcessingLog
	err := tx.QueryRow(ctx, upsert, uuid.NewString(), tenantID, month, year, entryType).Scan(
		&log.ID, &log.TenantID, &log.Month, &log.Year, &log.Type, &log.Status,
		&log.CowsProcessed, &log.TotalAmount, &log.ErrorMessage, &log.StartedAt, &log.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("tenant %s period %d-%d is already being processed", tenantID, year, month)
		}
		return nil, fmt.Errorf("acquire processing lease: %w", err)
	}
	return &log, nil
}

func (r *PostgresRepository) CompleteProcessingLease(ctx context.Context, txh Tx, schemaName string, logID string, cowsProcessed int, totalAmount decimal.Decimal) error {
	tx := unwrap(txh)
	query := fmt.Sprintf(`
		UPDATE %s.processing_log
		SET status = 'completed', cows_processed = $1, total_amount = $2, completed_at = NOW()
		WHERE id = $3`, schemaName)
	if _, err := tx.Exec(ctx, query, cowsProcessed, totalAmount, logID); err != nil {
		return fmt.Errorf("complete processing lease: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FailProcessingLease(ctx context.Context, schemaName string, logID string, errMsg string) error {
	query := fmt.Sprintf(`
		UPDATE %s.processing_log SET status = 'failed', error_message = $1, completed_at = NOW() WHERE id = $2`, schemaName)
	if _, err := r.db.Exec(ctx, query, errMsg, logID); err != nil {
		return fmt.Errorf("fail processing lease: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ActiveCowStats(ctx context.Context, schemaName, tenantID string) (int, decimal.Decimal, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(purchase_price), 0) FROM %s.cows WHERE tenant_id = $1 AND status = 'active'`, schemaName)
	var count int
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&count, &total); err != nil {
		return 0, decimal.Zero, fmt.Errorf("active cow stats: %w", err)
	}
	return count, total, nil
}

// LedgerBalance returns total debits and credits posted to accountCode for
// a tenant, the basis for dashboard_stats' asset_value/accum_depr (§4.6).
func (r *PostgresRepository) LedgerBalance(ctx context.Context, schemaName, tenantID, accountCode string) (decimal.Decimal, decimal.Decimal, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(l.debit_amount), 0), COALESCE(SUM(l.credit_amount), 0)
		FROM %s.journal_lines l
		JOIN %s.journal_entries e ON e.id = l.entry_id
		WHERE e.tenant_id = $1 AND l.account_code = $2 AND e.status = 'posted'`, schemaName, schemaName)
	var debits, credits decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantID, accountCode).Scan(&debits, &credits); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ledger balance: %w", err)
	}
	return debits, credits, nil
}

func (r *PostgresRepository) MonthlyAdditions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.cows
		WHERE tenant_id = $1 AND EXTRACT(YEAR FROM freshen_date) = $2 AND EXTRACT(MONTH FROM freshen_date) = $3`, schemaName)
	var count int
	if err := r.db.QueryRow(ctx, query, tenantID, year, month).Scan(&count); err != nil {
		return 0, fmt.Errorf("monthly additions: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) MonthlyDispositions(ctx context.Context, schemaName, tenantID string, year, month int) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.dispositions
		WHERE tenant_id = $1 AND EXTRACT(YEAR FROM disposition_date) = $2 AND EXTRACT(MONTH FROM disposition_date) = $3`, schemaName)
	var count int
	if err := r.db.QueryRow(ctx, query, tenantID, year, month).Scan(&count); err != nil {
		return 0, fmt.Errorf("monthly dispositions: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) ActiveCountAt(ctx context.Context, schemaName, tenantID string, at time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.cows c
		LEFT JOIN %s.dispositions d ON d.cow_id = c.id
		WHERE c.tenant_id = $1 AND c.freshen_date <= $2 AND (d.id IS NULL OR d.disposition_date > $2)`,
		schemaName, schemaName)
	var count int
	if err := r.db.QueryRow(ctx, query, tenantID, at).Scan(&count); err != nil {
		return 0, fmt.Errorf("active count at: %w", err)
	}
	return count, nil
}
