package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sethnicholsaz/herdledger/internal/apierr"
)

func TestCheckBalance(t *testing.T) {
	t.Run("balanced lines pass", func(t *testing.T) {
		lines := []JournalLine{
			{DebitAmount: decimal.NewFromInt(100), LineType: LineDebit},
			{CreditAmount: decimal.NewFromInt(100), LineType: LineCredit},
		}
		assert.NoError(t, checkBalance(lines))
	})

	t.Run("unbalanced lines are rejected as a balance failure", func(t *testing.T) {
		lines := []JournalLine{
			{DebitAmount: decimal.NewFromInt(100), LineType: LineDebit},
			{CreditAmount: decimal.NewFromInt(90), LineType: LineCredit},
		}
		err := checkBalance(lines)
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.ClassBalanceFailure))
	})
}

func TestEnforcer_CheckNoPostDispositionDepreciation(t *testing.T) {
	repo := newMemoryRepository()
	e := &enforcer{repo: repo}

	cow := &Cow{TenantID: "t1", FreshenDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateCow(context.Background(), testSchema, cow))

	t.Run("no disposition yet - always allowed", func(t *testing.T) {
		err := e.checkNoPostDispositionDepreciation(context.Background(), testSchema, cow.ID, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		assert.NoError(t, err)
	})

	require.NoError(t, repo.CreateDisposition(context.Background(), testSchema, &Disposition{
		TenantID:        "t1",
		CowID:           cow.ID,
		DispositionDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Type:            DispositionSale,
	}))

	t.Run("entry dated before disposition is allowed", func(t *testing.T) {
		err := e.checkNoPostDispositionDepreciation(context.Background(), testSchema, cow.ID, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		assert.NoError(t, err)
	})

	t.Run("entry dated after disposition is rejected", func(t *testing.T) {
		err := e.checkNoPostDispositionDepreciation(context.Background(), testSchema, cow.ID, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.ClassInvariantViolation))
	})
}

func TestEnforcer_CheckAtMostOneDisposition(t *testing.T) {
	repo := newMemoryRepository()
	e := &enforcer{repo: repo}

	cow := &Cow{TenantID: "t1", FreshenDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateCow(context.Background(), testSchema, cow))

	assert.NoError(t, e.checkAtMostOneDisposition(context.Background(), testSchema, cow.ID))

	require.NoError(t, repo.CreateDisposition(context.Background(), testSchema, &Disposition{
		TenantID:        "t1",
		CowID:           cow.ID,
		DispositionDate: time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Type:            DispositionSale,
	}))

	err := e.checkAtMostOneDisposition(context.Background(), testSchema, cow.ID)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.ClassInvariantViolation))
}

func TestEnforcer_SweepPostDispositionDepreciation(t *testing.T) {
	repo := newMemoryRepository()
	e := &enforcer{repo: repo}

	cowID := "cow-1"
	entry := &JournalEntry{
		TenantID:  "t1",
		EntryDate: time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
		Month:     8, Year: 2024,
		Type: EntryDepreciation,
		Lines: []JournalLine{
			{CowID: &cowID, AccountCode: "6100", DebitAmount: decimal.NewFromInt(20), LineType: LineDebit},
			{CowID: &cowID, AccountCode: "1500.1", CreditAmount: decimal.NewFromInt(20), LineType: LineCredit},
		},
	}
	require.NoError(t, repo.CreateEntry(context.Background(), memoryTx{}, testSchema, entry))

	disposedAt := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	deleted, err := e.sweepPostDispositionDepreciation(context.Background(), memoryTx{}, testSchema, "t1", cowID, disposedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.GetEntry(context.Background(), testSchema, entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
