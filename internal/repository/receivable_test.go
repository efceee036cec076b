package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/repository"
	"github.com/fleetpay/receivables/internal/testutil"
)

func TestNextCode_ZeroPaddedAndMonotonic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewReceivableRepository(db)
	ctx := context.Background()

	want := []string{"ADV-001", "ADV-002", "ADV-003"}
	for _, expected := range want {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)

		code, err := repo.NextCode(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, expected, code)

		require.NoError(t, tx.Commit())
	}
}

func TestNextCode_RolledBackAllocationIsReused(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewReceivableRepository(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = repo.NextCode(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	// The increment happens inside the creating transaction, so a rollback
	// returns the number to the pool instead of leaving a gap.
	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	code, err := repo.NextCode(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "ADV-001", code)
}

func TestUpdateBalances_StaleVersionConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewReceivableRepository(db)
	ctx := context.Background()

	rec := testutil.SeedReceivable(t, db, &domain.Receivable{
		Code:              "ADV-001",
		OriginalAmount:    decimal.NewFromInt(800),
		DiscountedAmount:  decimal.Zero,
		OutstandingAmount: decimal.NewFromInt(800),
		DueDate:           time.Now().AddDate(0, 0, 30),
	})

	stale := *rec
	stale.DiscountedAmount = decimal.NewFromInt(100)
	stale.OutstandingAmount = decimal.NewFromInt(700)
	stale.Status = domain.StatusPartial
	stale.UpdatedAt = time.Now().UTC()
	// Claims to supersede a version that was never written.
	stale.Version = rec.Version + 2

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.UpdateBalances(ctx, tx, &stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}
