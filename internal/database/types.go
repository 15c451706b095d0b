package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONBRaw represents a raw JSONB column that preserves the original JSON
// bytes as written, rather than round-tripping them through a Go map the
// way a generic JSONB type would. internal/tenantcfg's GORM-backed
// configuration rows build their Scan/Value on top of this, since they
// already have their own typed Go shape (DepreciationSettings,
// ChartOfAccountsOverride) to unmarshal into/from.
type JSONBRaw json.RawMessage

// Scan implements sql.Scanner interface
func (j *JSONBRaw) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = make([]byte, len(v))
		copy(*j, v)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONBRaw: %T", value)
	}
	return nil
}

// Value implements driver.Valuer interface
func (j JSONBRaw) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// GormDataType returns the GORM data type for this field
func (JSONBRaw) GormDataType() string {
	return "JSONB"
}

// GormDBDataType returns the database data type based on dialect
func (JSONBRaw) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	case "sqlite":
		return "TEXT"
	default:
		return "JSONB"
	}
}

// MarshalJSON implements json.Marshaler
func (j JSONBRaw) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONBRaw) UnmarshalJSON(data []byte) error {
	*j = make([]byte, len(data))
	copy(*j, data)
	return nil
}
