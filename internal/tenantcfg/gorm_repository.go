//go:build gorm

package tenantcfg

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GORMRepository implements Repository using GORM, grounded on the
// teacher's internal/tenant.GORMRepository (same build tag, same
// with-context/transaction idioms).
type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) Get(ctx context.Context, tenantID string) (*TenantConfig, error) {
	var m tenantConfigModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tenant config: %w", err)
	}
	return modelToConfig(&m), nil
}

func (r *GORMRepository) Upsert(ctx context.Context, cfg *TenantConfig) error {
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	m := tenantConfigModel{
		TenantID:             cfg.TenantID,
		SchemaName:           cfg.SchemaName,
		IsActive:             cfg.IsActive,
		DepreciationSettings: cfg.DepreciationSettings,
		ChartOverride:        cfg.ChartOverride,
		JournalProcessingDay: cfg.JournalProcessingDay,
		CreatedAt:            cfg.CreatedAt,
		UpdatedAt:            cfg.UpdatedAt,
	}

	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", cfg.TenantID).
		Assign(map[string]interface{}{
			"schema_name":            m.SchemaName,
			"is_active":              m.IsActive,
			"depreciation_settings":  m.DepreciationSettings,
			"chart_override":         m.ChartOverride,
			"journal_processing_day": m.JournalProcessingDay,
			"updated_at":             m.UpdatedAt,
		}).
		FirstOrCreate(&m).Error
	if err != nil {
		return fmt.Errorf("upsert tenant config: %w", err)
	}
	return nil
}

func (r *GORMRepository) ListProcessingDay(ctx context.Context, day int) ([]TenantRef, error) {
	var models []tenantConfigModel
	if err := r.db.WithContext(ctx).
		Where("journal_processing_day = ? AND is_active = true", day).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list tenants for processing day %d: %w", day, err)
	}
	refs := make([]TenantRef, len(models))
	for i, m := range models {
		refs[i] = TenantRef{TenantID: m.TenantID, SchemaName: m.SchemaName}
	}
	return refs, nil
}

var _ Repository = (*GORMRepository)(nil)
