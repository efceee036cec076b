package receivable_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/repository"
	"github.com/fleetpay/receivables/internal/service/receivable"
	"github.com/fleetpay/receivables/internal/testutil"
)

func setupService(t *testing.T, db *sql.DB) *receivable.Service {
	t.Helper()
	return receivable.NewService(
		repository.NewReceivableRepository(db),
		repository.NewHistoryRepository(db),
		nil,
		db,
	)
}

func createRequest(amount string, dueDate time.Time) receivable.CreateRequest {
	return receivable.CreateRequest{
		EmployeeID:   uuid.New(),
		EmployeeName: "Carlos Lima",
		Amount:       decimal.RequireFromString(amount),
		DueDate:      dueDate,
		Description:  "adiantamento salarial",
		Actor:        "Ana Souza",
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestCreate_FirstEntry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	assert.Equal(t, "ADV-001", rec.Code)
	assertDecimal(t, "800", rec.OriginalAmount)
	assertDecimal(t, "800", rec.OutstandingAmount)
	assertDecimal(t, "0", rec.DiscountedAmount)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.Nil(t, rec.DiscountDate)

	require.Len(t, rec.History, 1)
	assert.Equal(t, domain.HistoryActionCreation, rec.History[0].Action)
	assert.Equal(t, "Ana Souza", rec.History[0].Actor)
}

func TestCreate_SequentialCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	want := []string{"ADV-001", "ADV-002", "ADV-003"}
	for _, code := range want {
		rec, err := svc.Create(ctx, createRequest("100", time.Now().AddDate(0, 0, 30)))
		require.NoError(t, err)
		assert.Equal(t, code, rec.Code)
	}
}

func TestCreate_ConcurrentCodesAreUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	const workers = 10
	codes := make(chan string, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Create(ctx, createRequest("50", time.Now().AddDate(0, 0, 30)))
			if err != nil {
				t.Errorf("concurrent create: %v", err)
				return
			}
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for code := range codes {
		assert.False(t, seen[code], "duplicate business code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, workers)
}

func TestCreate_PastDueDateIsOverdueImmediately(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("300", time.Now().AddDate(0, 0, -1)))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOverdue, rec.Status)
	assertDecimal(t, "300", rec.OutstandingAmount)
}

func TestRepayment_PartialThenSettled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	rec, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID:     rec.ID,
		Amount: decimal.NewFromInt(400),
		Actor:  "Ana Souza",
	})
	require.NoError(t, err)
	assertDecimal(t, "400", rec.OutstandingAmount)
	assertDecimal(t, "400", rec.DiscountedAmount)
	assert.Equal(t, domain.StatusPartial, rec.Status)
	require.NotNil(t, rec.DiscountDate)

	// Sum invariant holds after every application.
	assert.True(t, rec.DiscountedAmount.Add(rec.OutstandingAmount).Equal(rec.OriginalAmount))

	rec, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID:     rec.ID,
		Amount: decimal.NewFromInt(400),
		Actor:  "Ana Souza",
	})
	require.NoError(t, err)
	assertDecimal(t, "0", rec.OutstandingAmount)
	assertDecimal(t, "800", rec.DiscountedAmount)
	assert.Equal(t, domain.StatusSettled, rec.Status)
	assert.True(t, rec.DiscountedAmount.Add(rec.OutstandingAmount).Equal(rec.OriginalAmount))

	// creation + two repayments
	assert.Equal(t, 3, testutil.CountHistory(t, db, rec.ID))
}

func TestRepayment_ExceedingOutstandingIsRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("300", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	_, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID:     rec.ID,
		Amount: decimal.NewFromInt(500),
		Actor:  "Ana Souza",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	// Entry is untouched: balances, status, and audit trail.
	unchanged, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assertDecimal(t, "300", unchanged.OutstandingAmount)
	assertDecimal(t, "0", unchanged.DiscountedAmount)
	assert.Equal(t, domain.StatusPending, unchanged.Status)
	assert.Len(t, unchanged.History, 1)
}

func TestRepayment_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)

	_, err := svc.ApplyRepayment(context.Background(), receivable.RepaymentRequest{
		ID:     uuid.New(),
		Amount: decimal.NewFromInt(100),
		Actor:  "Ana Souza",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepayment_TracksInstallments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	req := createRequest("900", time.Now().AddDate(0, 0, 30))
	total := 3
	req.InstallmentsTotal = &total

	rec, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.InstallmentsApplied)

	for i := 1; i <= 3; i++ {
		rec, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
			ID:     rec.ID,
			Amount: decimal.NewFromInt(300),
			Actor:  "Ana Souza",
		})
		require.NoError(t, err)
		assert.Equal(t, i, rec.InstallmentsApplied)
	}
	assert.Equal(t, domain.StatusSettled, rec.Status)
}

func TestRepayment_DiscountedAmountIsMonotonic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("500", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	previous := rec.DiscountedAmount
	for _, amount := range []string{"100", "50", "200", "150"} {
		rec, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
			ID:     rec.ID,
			Amount: decimal.RequireFromString(amount),
			Actor:  "Ana Souza",
		})
		require.NoError(t, err)
		assert.True(t, rec.DiscountedAmount.GreaterThan(previous),
			"discounted amount must only grow: %s -> %s", previous, rec.DiscountedAmount)
		previous = rec.DiscountedAmount
	}
}

func TestUpdate_NonFinancialFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	description := "adiantamento para manutencao"
	notes := "aprovado pela diretoria"
	rec, err = svc.Update(ctx, receivable.UpdateRequest{
		ID:          rec.ID,
		Description: &description,
		Notes:       &notes,
		Actor:       "Ana Souza",
	})
	require.NoError(t, err)

	assert.Equal(t, description, rec.Description)
	assert.Equal(t, notes, rec.Notes)

	// Financial and identity fields are untouched.
	assert.Equal(t, "ADV-001", rec.Code)
	assertDecimal(t, "800", rec.OutstandingAmount)
	assertDecimal(t, "0", rec.DiscountedAmount)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 2)
	assert.Equal(t, domain.HistoryActionUpdate, got.History[1].Action)
	assert.Contains(t, got.History[1].Description, "descricao")
	assert.Contains(t, got.History[1].Description, "observacoes")
}

func TestUpdate_DueDateRederivesStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, rec.Status)

	pastDue := time.Now().AddDate(0, 0, -5)
	rec, err = svc.Update(ctx, receivable.UpdateRequest{
		ID:      rec.ID,
		DueDate: &pastDue,
		Actor:   "Ana Souza",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, rec.Status)
}

func TestUpdate_NoChangesAppendsNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	same := rec.Description
	updated, err := svc.Update(ctx, receivable.UpdateRequest{
		ID:          rec.ID,
		Description: &same,
		Actor:       "Ana Souza",
	})
	require.NoError(t, err)
	assert.Equal(t, rec.Version, updated.Version)
	assert.Equal(t, 1, testutil.CountHistory(t, db, rec.ID))
}

func TestDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, rec.ID, "Ana Souza"))

	_, err = svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.Delete(ctx, rec.ID, "Ana Souza")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	a, err := svc.Create(ctx, createRequest("800", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)
	b, err := svc.Create(ctx, createRequest("500", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, createRequest("300", time.Now().AddDate(0, 0, -1)))
	require.NoError(t, err)

	_, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID: a.ID, Amount: decimal.NewFromInt(200), Actor: "Ana Souza",
	})
	require.NoError(t, err)
	_, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID: b.ID, Amount: decimal.NewFromInt(500), Actor: "Ana Souza",
	})
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)

	// 600 + 0 + 300 outstanding; 800+500+300 original; 200+500 discounted.
	assertDecimal(t, "900", stats.TotalOutstanding)
	assertDecimal(t, "1600", stats.TotalOriginal)
	assertDecimal(t, "700", stats.TotalDiscounted)

	assert.Equal(t, 0, stats.CountByStatus.Pending)
	assert.Equal(t, 1, stats.CountByStatus.Partial)
	assert.Equal(t, 1, stats.CountByStatus.Settled)
	assert.Equal(t, 1, stats.CountByStatus.Overdue)
}

func TestStatistics_EmptyLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)

	stats, err := svc.Statistics(context.Background())
	require.NoError(t, err)

	assertDecimal(t, "0", stats.TotalOutstanding)
	assertDecimal(t, "0", stats.TotalOriginal)
	assertDecimal(t, "0", stats.TotalDiscounted)
	assert.Equal(t, domain.StatusCounts{}, stats.CountByStatus)
}

func TestOverdue_UsesDatePredicateNotStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	// Partially repaid and past due: status stays partial, but the entry
	// still needs attention.
	partial := testutil.SeedReceivable(t, db, &domain.Receivable{
		Code:              "ADV-900",
		OriginalAmount:    decimal.NewFromInt(800),
		DiscountedAmount:  decimal.NewFromInt(400),
		OutstandingAmount: decimal.NewFromInt(400),
		DueDate:           time.Now().AddDate(0, 0, -3),
		Status:            domain.StatusPartial,
	})

	// Settled past due: nothing owed, never overdue.
	testutil.SeedReceivable(t, db, &domain.Receivable{
		Code:              "ADV-901",
		OriginalAmount:    decimal.NewFromInt(500),
		DiscountedAmount:  decimal.NewFromInt(500),
		OutstandingAmount: decimal.Zero,
		DueDate:           time.Now().AddDate(0, 0, -3),
		Status:            domain.StatusSettled,
	})

	// Pending, due next month.
	testutil.SeedReceivable(t, db, &domain.Receivable{
		Code:              "ADV-902",
		OriginalAmount:    decimal.NewFromInt(300),
		DiscountedAmount:  decimal.Zero,
		OutstandingAmount: decimal.NewFromInt(300),
		DueDate:           time.Now().AddDate(0, 1, 0),
		Status:            domain.StatusPending,
	})

	overdue, err := svc.Overdue(ctx)
	require.NoError(t, err)

	require.Len(t, overdue, 1)
	assert.Equal(t, partial.ID, overdue[0].ID)
	assert.Equal(t, domain.StatusPartial, overdue[0].Status)
}

func TestList_FiltersAndPagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	employee := uuid.New()
	for i := 0; i < 3; i++ {
		req := createRequest("100", time.Now().AddDate(0, 0, 30))
		req.EmployeeID = employee
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}
	other, err := svc.Create(ctx, createRequest("200", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)
	_, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
		ID: other.ID, Amount: decimal.NewFromInt(50), Actor: "Ana Souza",
	})
	require.NoError(t, err)

	byEmployee, total, err := svc.List(ctx, receivable.ListRequest{EmployeeID: &employee, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, byEmployee, 3)

	partial := domain.StatusPartial
	byStatus, total, err := svc.List(ctx, receivable.ListRequest{Status: &partial, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, byStatus, 1)
	assert.Equal(t, other.ID, byStatus[0].ID)

	paged, total, err := svc.List(ctx, receivable.ListRequest{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, paged, 1)
}

func TestGet_HistoryIsChronological(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupService(t, db)
	ctx := context.Background()

	rec, err := svc.Create(ctx, createRequest("600", time.Now().AddDate(0, 0, 30)))
	require.NoError(t, err)

	for _, amount := range []int64{100, 200} {
		_, err = svc.ApplyRepayment(ctx, receivable.RepaymentRequest{
			ID: rec.ID, Amount: decimal.NewFromInt(amount), Actor: "Ana Souza",
		})
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)

	require.Len(t, got.History, 3)
	assert.Equal(t, domain.HistoryActionCreation, got.History[0].Action)
	assert.Equal(t, domain.HistoryActionRepayment, got.History[1].Action)
	assert.Equal(t, domain.HistoryActionRepayment, got.History[2].Action)
	for i := 1; i < len(got.History); i++ {
		assert.False(t, got.History[i].OccurredAt.Before(got.History[i-1].OccurredAt))
	}
}
