// Package tenantcfg persists the per-tenant configuration referenced by
// internal/ledger's posters: depreciation settings (useful life, rounding,
// partial-month policy) and chart-of-accounts overrides. It lives in the
// shared (non-schema-scoped) tables alongside the tenant registry itself,
// mirroring how the teacher keeps tenants.settings in a global table while
// the accounting data lives per-schema.
package tenantcfg

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sethnicholsaz/herdledger/internal/database"
	"github.com/sethnicholsaz/herdledger/internal/ledger"
)

// DepreciationSettings is the JSONB-backed configuration row for one
// tenant's straight-line depreciation policy (spec §3, §6 configuration
// keys). ProcessingMode/HistoricalProcessingCompleted/FiscalYearStartMonth
// are operational, not math, knobs, but §6 lists them as the same per-tenant
// configuration surface, so they ride along in the same jsonb column.
type DepreciationSettings struct {
	Years                 int                   `json:"useful_life_years"`
	RoundToNearestDollar  bool                  `json:"round_to_nearest_dollar"`
	IncludePartialMonths  bool                  `json:"include_partial_months"`
	DefaultSalvagePercent decimal.Decimal       `json:"default_salvage_percent"` // 0-50, used when a cow omits salvage_value
	ProcessingMode        ledger.ProcessingMode `json:"processing_mode"`
	// HistoricalProcessingCompleted is stored with the rest of the settings;
	// ProcessHistorical does not set it and the scheduler does not read it.
	HistoricalProcessingCompleted bool `json:"historical_processing_completed"`
	// FiscalYearStartMonth (1-12) shifts MonthlyReconciliation's year
	// window; it affects reporting only, never the posting math.
	FiscalYearStartMonth int `json:"fiscal_year_start_month"`
}

// DefaultDepreciationSettings mirrors ledger.DefaultSettings with the
// salvage default spec §9 open question (a) resolves to zero.
func DefaultDepreciationSettings() DepreciationSettings {
	return DepreciationSettings{
		Years:                 5,
		RoundToNearestDollar:  false,
		IncludePartialMonths:  true,
		DefaultSalvagePercent: decimal.Zero,
		ProcessingMode:        ledger.ModeHistorical,
		FiscalYearStartMonth:  1,
	}
}

// ToLedgerSettings projects the persisted settings onto ledger.Settings,
// the shape the posters actually consume.
func (s DepreciationSettings) ToLedgerSettings() ledger.Settings {
	return ledger.Settings{
		Years:                 s.Years,
		RoundToNearestDollar:  s.RoundToNearestDollar,
		IncludePartialMonths:  s.IncludePartialMonths,
		DefaultSalvagePercent: s.DefaultSalvagePercent,
	}
}

// Scan implements sql.Scanner so GORM can load the jsonb column directly
// into a DepreciationSettings value; the byte/string driver-type handling is
// shared with internal/database's own JSONB columns via JSONBRaw.
func (s *DepreciationSettings) Scan(src interface{}) error {
	var raw database.JSONBRaw
	if err := raw.Scan(src); err != nil {
		return err
	}
	if len(raw) == 0 {
		*s = DefaultDepreciationSettings()
		return nil
	}
	return json.Unmarshal(raw, s)
}

// ChartOfAccountsOverride is the JSONB-backed map of account-role overrides
// for one tenant, layered onto ledger.DefaultChartOfAccounts (spec §6).
type ChartOfAccountsOverride struct {
	Overrides map[ledger.AccountRole]ledger.Account `json:"overrides"`
}

// ToChartOfAccounts builds the resolver the posters use.
func (o ChartOfAccountsOverride) ToChartOfAccounts() *ledger.ChartOfAccounts {
	return ledger.NewChartOfAccounts(o.Overrides)
}

// Scan implements sql.Scanner for the jsonb overrides column.
func (o *ChartOfAccountsOverride) Scan(src interface{}) error {
	var raw database.JSONBRaw
	if err := raw.Scan(src); err != nil {
		return err
	}
	if len(raw) == 0 {
		o.Overrides = nil
		return nil
	}
	return json.Unmarshal(raw, o)
}

// TenantConfig is one tenant's full configuration row.
type TenantConfig struct {
	TenantID             string
	SchemaName           string
	IsActive             bool
	DepreciationSettings DepreciationSettings
	ChartOverride        ChartOfAccountsOverride
	JournalProcessingDay int // day-of-month the scheduler runs this tenant's monthly posting (spec §5)
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TenantRef is the minimal identity the scheduler needs to address a
// tenant's schema without loading its full configuration.
type TenantRef struct {
	TenantID   string
	SchemaName string
}
