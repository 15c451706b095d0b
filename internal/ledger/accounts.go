package ledger

// AccountRole is a semantic role the poster resolves to a concrete
// (code, name) pair, so a tenant can override the code/name without the
// posting logic changing (spec §6 "Chart of accounts").
type AccountRole string

const (
	RoleCash               AccountRole = "cash"
	RoleAsset              AccountRole = "asset"
	RoleAccumDepr          AccountRole = "accum_depr"
	RoleDeprExpense        AccountRole = "depr_expense"
	RoleGainOnSale         AccountRole = "gain_on_sale"
	RoleLossOnSale         AccountRole = "loss_on_sale"
	RoleHeifers            AccountRole = "heifers"
	RoleLossOnDeath        AccountRole = "loss_on_death"
	RoleLossOnCulled       AccountRole = "loss_on_culled"
	RoleLossOnSaleFallback AccountRole = "loss_on_sale_fallback"
)

// Account is a resolved (code, name) pair for a role.
type Account struct {
	Code string
	Name string
}

// DefaultChartOfAccounts is the built-in mapping from spec §6.
var DefaultChartOfAccounts = map[AccountRole]Account{
	RoleCash:               {Code: "1000", Name: "Cash"},
	RoleHeifers:            {Code: "1400", Name: "Heifers"},
	RoleAsset:              {Code: "1500", Name: "Dairy Cows"},
	RoleAccumDepr:          {Code: "1500.1", Name: "Accumulated Depreciation - Dairy Cows"},
	RoleDeprExpense:        {Code: "6100", Name: "Depreciation Expense"},
	RoleGainOnSale:         {Code: "8000", Name: "Gain on Sale of Cows"},
	RoleLossOnDeath:        {Code: "9001", Name: "Loss on Dead Cows"},
	RoleLossOnSale:         {Code: "9002", Name: "Loss on Sale of Cows"},
	RoleLossOnCulled:       {Code: "9003", Name: "Loss on Culled Cows"},
	RoleLossOnSaleFallback: {Code: "9000", Name: "Loss on Sale of Assets"},
}

// ChartOfAccounts resolves roles to accounts for one tenant, applying any
// per-role overrides (internal/tenantcfg.ChartOfAccountsOverride) on top of
// the built-in defaults.
type ChartOfAccounts struct {
	overrides map[AccountRole]Account
}

// NewChartOfAccounts builds a resolver from a tenant's overrides. A nil or
// empty map resolves every role to the built-in default.
func NewChartOfAccounts(overrides map[AccountRole]Account) *ChartOfAccounts {
	return &ChartOfAccounts{overrides: overrides}
}

// Resolve returns the account a tenant currently uses for role, falling
// back to the built-in default when no override is configured.
func (c *ChartOfAccounts) Resolve(role AccountRole) Account {
	if c != nil {
		if a, ok := c.overrides[role]; ok {
			return a
		}
	}
	return DefaultChartOfAccounts[role]
}

// LossRoleFor maps a disposition type to the role its loss line (if any)
// should post to (spec §4.5 step 7).
func LossRoleFor(t DispositionType) AccountRole {
	switch t {
	case DispositionDeath:
		return RoleLossOnDeath
	case DispositionCulled:
		return RoleLossOnCulled
	default:
		return RoleLossOnSale
	}
}
