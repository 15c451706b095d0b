package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings carries the per-tenant depreciation knobs the math in this file
// is parameterized on (spec §3 DepreciationSettings, §6 configuration keys).
type Settings struct {
	Years                 int             // default_depreciation_years, [1,20]
	RoundToNearestDollar  bool            // round_to_nearest_dollar
	IncludePartialMonths  bool            // include_partial_months
	DefaultSalvagePercent decimal.Decimal // default_salvage_percentage, [0,50]; applied to a cow ingested with salvage_value unset
}

// DefaultSettings returns the spec's stated defaults (§6): 5 years,
// two-decimal rounding, partial months included, zero salvage.
func DefaultSettings() Settings {
	return Settings{Years: 5, RoundToNearestDollar: false, IncludePartialMonths: true, DefaultSalvagePercent: decimal.Zero}
}

// DefaultSalvageValue applies DefaultSalvagePercent to a cow's purchase
// price (spec §6 default_salvage_percentage), used when the cow was
// ingested with salvage_value left at zero.
func (s Settings) DefaultSalvageValue(purchasePrice decimal.Decimal) decimal.Decimal {
	if s.DefaultSalvagePercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return s.round(purchasePrice.Mul(s.DefaultSalvagePercent).Div(decimal.NewFromInt(100)))
}

func (s Settings) round(d decimal.Decimal) decimal.Decimal {
	if s.RoundToNearestDollar {
		return d.Round(0)
	}
	return d.Round(2)
}

func (s Settings) usefulLifeMonths() int64 {
	return int64(s.Years) * 12
}

// MonthlyRate is monthly_rate(p, s, years) = round((p-s) / (years*12)),
// spec §4.1.
func MonthlyRate(purchasePrice, salvageValue decimal.Decimal, settings Settings) decimal.Decimal {
	depreciable := purchasePrice.Sub(salvageValue)
	if depreciable.LessThanOrEqual(decimal.Zero) || settings.usefulLifeMonths() <= 0 {
		return decimal.Zero
	}
	return settings.round(depreciable.Div(decimal.NewFromInt(settings.usefulLifeMonths())))
}

// MonthsElapsed is months_elapsed(freshen, target) = max(0, 12*Δyears +
// Δmonths); fractional days are not counted (spec §4.1).
func MonthsElapsed(freshen, target time.Time) int {
	years := target.Year() - freshen.Year()
	months := int(target.Month()) - int(freshen.Month())
	total := years*12 + months
	if total < 0 {
		return 0
	}
	return total
}

// MonthlyDepreciation is monthly_depreciation(p, s, freshen, target): the
// monthly rate if the cow is still within its useful life and hasn't fully
// depreciated, else zero (spec §4.1).
func MonthlyDepreciation(purchasePrice, salvageValue decimal.Decimal, freshen, target time.Time, accumulatedSoFar decimal.Decimal, settings Settings) decimal.Decimal {
	if MonthsElapsed(freshen, target) >= int(settings.usefulLifeMonths()) {
		return decimal.Zero
	}
	depreciable := purchasePrice.Sub(salvageValue)
	if accumulatedSoFar.GreaterThanOrEqual(depreciable) {
		return decimal.Zero
	}
	rate := MonthlyRate(purchasePrice, salvageValue, settings)
	if accumulatedSoFar.Add(rate).GreaterThan(depreciable) {
		return depreciable.Sub(accumulatedSoFar)
	}
	return rate
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	firstOfNextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.AddDate(0, 0, -1)
	return lastDay.Day()
}

// EndOfMonth returns the last calendar day of the month containing t, at
// midnight UTC-normalized to t's own location, matching the catch-up
// poster's "entry dated the last day of the month" rule (spec §4.2).
func EndOfMonth(t time.Time) time.Time {
	firstOfNextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNextMonth.AddDate(0, 0, -1)
}

// PartialMonthDepreciation is partial_month_depreciation(p, s, through) =
// round(monthly_rate * day_of_month(through) / days_in_month(through)),
// used only when a disposition falls mid-month (spec §4.1, §4.5 step 3).
func PartialMonthDepreciation(purchasePrice, salvageValue decimal.Decimal, through time.Time, settings Settings) decimal.Decimal {
	rate := MonthlyRate(purchasePrice, salvageValue, settings)
	days := DaysInMonth(through)
	if days == 0 {
		return decimal.Zero
	}
	fraction := decimal.NewFromInt(int64(through.Day())).Div(decimal.NewFromInt(int64(days)))
	return settings.round(rate.Mul(fraction))
}
