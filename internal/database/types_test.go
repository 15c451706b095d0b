package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

func TestJSONBRaw_Scan(t *testing.T) {
	tests := []struct {
		name        string
		input       interface{}
		expected    JSONBRaw
		expectError bool
	}{
		{
			name:     "nil value",
			input:    nil,
			expected: nil,
		},
		{
			name:     "bytes value",
			input:    []byte(`{"raw": true}`),
			expected: JSONBRaw(`{"raw": true}`),
		},
		{
			name:     "string value",
			input:    `{"str": "val"}`,
			expected: JSONBRaw(`{"str": "val"}`),
		},
		{
			name:        "unsupported type",
			input:       123,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j JSONBRaw
			err := j.Scan(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, j)
			}
		})
	}
}

func TestJSONBRaw_Value(t *testing.T) {
	t.Run("nil value", func(t *testing.T) {
		var j JSONBRaw
		val, err := j.Value()
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("with data", func(t *testing.T) {
		j := JSONBRaw(`{"test": 123}`)
		val, err := j.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"test": 123}`), val)
	})
}

func TestJSONBRaw_GormDataType(t *testing.T) {
	var j JSONBRaw
	assert.Equal(t, "JSONB", j.GormDataType())
}

func TestJSONBRaw_MarshalJSON(t *testing.T) {
	t.Run("nil value", func(t *testing.T) {
		var j JSONBRaw
		data, err := j.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, []byte("null"), data)
	})

	t.Run("with data", func(t *testing.T) {
		j := JSONBRaw(`{"test": true}`)
		data, err := j.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"test": true}`), data)
	})
}

func TestJSONBRaw_UnmarshalJSON(t *testing.T) {
	var j JSONBRaw
	err := j.UnmarshalJSON([]byte(`{"unmarshal": "test"}`))
	require.NoError(t, err)
	assert.Equal(t, JSONBRaw(`{"unmarshal": "test"}`), j)
}

// mockDialector is a minimal gorm.Dialector for exercising GormDBDataType
// against each supported backend name without a live connection.
type mockDialector struct {
	name string
}

func (m mockDialector) Name() string {
	return m.name
}

func (m mockDialector) Initialize(*gorm.DB) error {
	return nil
}

func (m mockDialector) Migrator(*gorm.DB) gorm.Migrator {
	return nil
}

func (m mockDialector) DataTypeOf(*schema.Field) string {
	return ""
}

func (m mockDialector) DefaultValueOf(*schema.Field) clause.Expression {
	return nil
}

func (m mockDialector) BindVarTo(writer clause.Writer, stmt *gorm.Statement, v interface{}) {}

func (m mockDialector) QuoteTo(writer clause.Writer, str string) {}

func (m mockDialector) Explain(sql string, vars ...interface{}) string {
	return sql
}

func TestJSONBRaw_GormDBDataType(t *testing.T) {
	tests := []struct {
		dialect  string
		expected string
	}{
		{"postgres", "JSONB"},
		{"mysql", "JSON"},
		{"sqlite", "TEXT"},
		{"unknown", "JSONB"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			db := &gorm.DB{Config: &gorm.Config{}}
			db.Config.Dialector = mockDialector{name: tt.dialect}

			var j JSONBRaw
			result := j.GormDBDataType(db, nil)
			assert.Equal(t, tt.expected, result)
		})
	}
}
