package tenantcfg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository directly against the
// tenant_configs table using pgx; this is the default repository cmd/engine
// wires up. GORMRepository (//go:build gorm) is the alternate, grounded the
// same way the teacher keeps both a pgx tenant.PostgresRepository and a
// build-tagged tenant.GORMRepository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (*TenantConfig, error) {
	var cfg TenantConfig
	var settingsJSON, overrideJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id, schema_name, is_active, depreciation_settings, chart_override,
		       journal_processing_day, created_at, updated_at
		FROM tenant_configs
		WHERE tenant_id = $1`, tenantID).Scan(
		&cfg.TenantID, &cfg.SchemaName, &cfg.IsActive, &settingsJSON, &overrideJSON,
		&cfg.JournalProcessingDay, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant config: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &cfg.DepreciationSettings); err != nil {
		cfg.DepreciationSettings = DefaultDepreciationSettings()
	}
	if len(overrideJSON) > 0 {
		_ = json.Unmarshal(overrideJSON, &cfg.ChartOverride)
	}
	return &cfg, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, cfg *TenantConfig) error {
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	settingsJSON, err := json.Marshal(cfg.DepreciationSettings)
	if err != nil {
		return fmt.Errorf("marshal depreciation settings: %w", err)
	}
	overrideJSON, err := json.Marshal(cfg.ChartOverride)
	if err != nil {
		return fmt.Errorf("marshal chart override: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO tenant_configs (tenant_id, schema_name, is_active, depreciation_settings,
		                            chart_override, journal_processing_day, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id) DO UPDATE SET
		  schema_name = EXCLUDED.schema_name,
		  is_active = EXCLUDED.is_active,
		  depreciation_settings = EXCLUDED.depreciation_settings,
		  chart_override = EXCLUDED.chart_override,
		  journal_processing_day = EXCLUDED.journal_processing_day,
		  updated_at = EXCLUDED.updated_at`,
		cfg.TenantID, cfg.SchemaName, cfg.IsActive, settingsJSON, overrideJSON,
		cfg.JournalProcessingDay, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert tenant config: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListProcessingDay(ctx context.Context, day int) ([]TenantRef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tenant_id, schema_name FROM tenant_configs
		WHERE journal_processing_day = $1 AND is_active = true`, day)
	if err != nil {
		return nil, fmt.Errorf("list tenants for processing day %d: %w", day, err)
	}
	defer rows.Close()

	var refs []TenantRef
	for rows.Next() {
		var ref TenantRef
		if err := rows.Scan(&ref.TenantID, &ref.SchemaName); err != nil {
			return nil, fmt.Errorf("scan tenant ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

var _ Repository = (*PostgresRepository)(nil)
