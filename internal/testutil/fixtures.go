package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/domain"
)

// SeedReceivable inserts an entry directly, bypassing the service. Used to
// arrange states the create path refuses to produce, like aged entries whose
// stored status has drifted from the date predicate.
func SeedReceivable(t *testing.T, db *sql.DB, rec *domain.Receivable) *domain.Receivable {
	t.Helper()

	now := time.Now().UTC()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.EmployeeID == uuid.Nil {
		rec.EmployeeID = uuid.New()
	}
	if rec.EmployeeName == "" {
		rec.EmployeeName = "Funcionario Teste"
	}
	if rec.Description == "" {
		rec.Description = "adiantamento de teste"
	}
	if rec.Status == "" {
		rec.Status = domain.DeriveStatus(rec, now)
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.AdvanceDate.IsZero() {
		rec.AdvanceDate = now
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err := db.Exec(
		`INSERT INTO receivables (
			id, employee_id, employee_name, code,
			original_amount, discounted_amount, outstanding_amount,
			advance_date, due_date, discount_date, status, description, notes,
			installments_total, installments_applied, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.EmployeeID, rec.EmployeeName, rec.Code,
		rec.OriginalAmount, rec.DiscountedAmount, rec.OutstandingAmount,
		rec.AdvanceDate, rec.DueDate, rec.DiscountDate, rec.Status, rec.Description, rec.Notes,
		rec.InstallmentsTotal, rec.InstallmentsApplied, rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed receivable: %v", err)
	}
	return rec
}

func GetOutstanding(t *testing.T, db *sql.DB, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var amount decimal.Decimal
	err := db.QueryRow(`SELECT outstanding_amount FROM receivables WHERE id = $1`, id).Scan(&amount)
	if err != nil {
		t.Fatalf("get outstanding amount: %v", err)
	}
	return amount
}

func CountHistory(t *testing.T, db *sql.DB, id uuid.UUID) int {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM receivable_history WHERE receivable_id = $1`, id).Scan(&count)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	return count
}
