//go:build gorm

package tenantcfg

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/sethnicholsaz/herdledger/internal/database"
)

// tenantConfigModel is the GORM row for tenant_configs, mirroring the
// teacher's models.Tenant: jsonb columns scanned through the package's own
// Scanner types rather than generic json.RawMessage, since the posters
// consume DepreciationSettings/ChartOfAccountsOverride directly.
type tenantConfigModel struct {
	TenantID             string                  `gorm:"column:tenant_id;type:uuid;primaryKey" json:"tenant_id"`
	SchemaName           string                  `gorm:"column:schema_name;size:100;not null;uniqueIndex" json:"schema_name"`
	IsActive             bool                    `gorm:"column:is_active;not null;default:true" json:"is_active"`
	DepreciationSettings DepreciationSettings    `gorm:"column:depreciation_settings;type:jsonb;not null;default:'{}'" json:"depreciation_settings"`
	ChartOverride        ChartOfAccountsOverride `gorm:"column:chart_override;type:jsonb;not null;default:'{}'" json:"chart_override"`
	JournalProcessingDay int                     `gorm:"column:journal_processing_day;not null;default:1" json:"journal_processing_day"`
	CreatedAt            time.Time               `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time               `gorm:"not null;default:now()" json:"updated_at"`
}

func (tenantConfigModel) TableName() string {
	return "tenant_configs"
}

// Value implements driver.Valuer for DepreciationSettings so GORM can
// marshal it back into the jsonb column on insert/update, wrapping the
// marshaled bytes in database.JSONBRaw.
func (s DepreciationSettings) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return database.JSONBRaw(b).Value()
}

// Value implements driver.Valuer for ChartOfAccountsOverride.
func (o ChartOfAccountsOverride) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return database.JSONBRaw(b).Value()
}

func modelToConfig(m *tenantConfigModel) *TenantConfig {
	return &TenantConfig{
		TenantID:             m.TenantID,
		SchemaName:           m.SchemaName,
		IsActive:             m.IsActive,
		DepreciationSettings: m.DepreciationSettings,
		ChartOverride:        m.ChartOverride,
		JournalProcessingDay: m.JournalProcessingDay,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
