package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestMonthlyRate(t *testing.T) {
	tests := []struct {
		name     string
		price    decimal.Decimal
		salvage  decimal.Decimal
		settings Settings
		expected decimal.Decimal
	}{
		{
			name:     "straight line - no salvage",
			price:    decimal.NewFromInt(1200),
			salvage:  decimal.Zero,
			settings: Settings{Years: 5, IncludePartialMonths: true},
			expected: d("20"),
		},
		{
			name:     "straight line - with salvage",
			price:    decimal.NewFromInt(1200),
			salvage:  decimal.NewFromInt(200),
			settings: Settings{Years: 5, IncludePartialMonths: true},
			expected: d("16.67"),
		},
		{
			name:     "salvage equals price",
			price:    decimal.NewFromInt(1200),
			salvage:  decimal.NewFromInt(1200),
			settings: Settings{Years: 5},
			expected: decimal.Zero,
		},
		{
			name:     "salvage exceeds price",
			price:    decimal.NewFromInt(1000),
			salvage:  decimal.NewFromInt(1200),
			settings: Settings{Years: 5},
			expected: decimal.Zero,
		},
		{
			name:     "zero useful life",
			price:    decimal.NewFromInt(1200),
			salvage:  decimal.Zero,
			settings: Settings{Years: 0},
			expected: decimal.Zero,
		},
		{
			name:     "round to nearest dollar",
			price:    decimal.NewFromInt(1200),
			salvage:  decimal.NewFromInt(200),
			settings: Settings{Years: 5, RoundToNearestDollar: true},
			expected: d("17"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MonthlyRate(tt.price, tt.salvage, tt.settings)
			assert.True(t, tt.expected.Equal(result), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestMonthsElapsed(t *testing.T) {
	tests := []struct {
		name     string
		freshen  time.Time
		target   time.Time
		expected int
	}{
		{
			name:     "same month",
			freshen:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
		{
			name:     "one month later",
			freshen:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
			expected: 1,
		},
		{
			name:     "crosses a year boundary",
			freshen:  time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			expected: 3,
		},
		{
			name:     "target before freshen clamps to zero",
			freshen:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			target:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MonthsElapsed(tt.freshen, tt.target))
		})
	}
}

func TestMonthlyDepreciation(t *testing.T) {
	settings := Settings{Years: 5, IncludePartialMonths: true}
	price := decimal.NewFromInt(1200)
	salvage := decimal.Zero
	freshen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("within useful life, not yet fully depreciated", func(t *testing.T) {
		target := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		result := MonthlyDepreciation(price, salvage, freshen, target, decimal.Zero, settings)
		assert.True(t, d("20").Equal(result))
	})

	t.Run("past useful life returns zero", func(t *testing.T) {
		target := freshen.AddDate(6, 0, 0)
		result := MonthlyDepreciation(price, salvage, freshen, target, decimal.Zero, settings)
		assert.True(t, decimal.Zero.Equal(result))
	})

	t.Run("already fully depreciated returns zero", func(t *testing.T) {
		target := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		result := MonthlyDepreciation(price, salvage, freshen, target, price, settings)
		assert.True(t, decimal.Zero.Equal(result))
	})

	t.Run("last month clamps to remaining depreciable basis", func(t *testing.T) {
		target := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		accumulated := price.Sub(d("10"))
		result := MonthlyDepreciation(price, salvage, freshen, target, accumulated, settings)
		assert.True(t, d("10").Equal(result))
	})
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 29, DaysInMonth(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))) // leap year
	assert.Equal(t, 28, DaysInMonth(time.Date(2023, 2, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30, DaysInMonth(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEndOfMonth(t *testing.T) {
	result := EndOfMonth(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2024, result.Year())
	assert.Equal(t, time.February, result.Month())
	assert.Equal(t, 29, result.Day())
}

func TestPartialMonthDepreciation(t *testing.T) {
	settings := Settings{Years: 5, IncludePartialMonths: true}
	price := decimal.NewFromInt(1200)
	salvage := decimal.Zero

	t.Run("mid-month disposition", func(t *testing.T) {
		through := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC) // 30 day month, day 15
		result := PartialMonthDepreciation(price, salvage, through, settings)
		// monthly rate 20, 15/30 of month elapsed -> 10
		assert.True(t, d("10").Equal(result))
	})

	t.Run("last day of month equals full monthly rate", func(t *testing.T) {
		through := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
		result := PartialMonthDepreciation(price, salvage, through, settings)
		assert.True(t, d("20").Equal(result))
	})
}
