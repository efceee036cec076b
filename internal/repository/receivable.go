package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/domain"
)

const receivableColumns = `id, employee_id, employee_name, code,
	original_amount, discounted_amount, outstanding_amount,
	advance_date, due_date, discount_date, status, description, notes,
	installments_total, installments_applied, version, created_at, updated_at`

// codeSequence is the single row in receivable_sequences backing ADV-### codes.
const codeSequence = "receivable_code"

type ReceivableRepository struct {
	db *sql.DB
}

func NewReceivableRepository(db *sql.DB) *ReceivableRepository {
	return &ReceivableRepository{db: db}
}

// NextCode allocates the next sequential business code atomically. The upsert
// increments a single counter row, so two concurrent creations can never
// observe the same value.
func (r *ReceivableRepository) NextCode(ctx context.Context, tx *sql.Tx) (string, error) {
	var value int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO receivable_sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = receivable_sequences.value + 1
		RETURNING value`,
		codeSequence,
	).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("NextCode: %w", err)
	}
	return fmt.Sprintf("ADV-%03d", value), nil
}

func (r *ReceivableRepository) Create(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error {
	_, err := tx.ExecContext(ctx,
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
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ReceivableRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Receivable, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+receivableColumns+` FROM receivables WHERE id = $1`, id,
	)
	rec, err := scanReceivable(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return rec, nil
}

func (r *ReceivableRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Receivable, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+receivableColumns+` FROM receivables WHERE id = $1 FOR UPDATE`, id,
	)
	rec, err := scanReceivable(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return rec, nil
}

// UpdateBalances persists the financial outcome of a repayment. The entry's
// Version must already be incremented; the conditional WHERE rejects writes
// over a snapshot another transaction has replaced.
func (r *ReceivableRepository) UpdateBalances(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE receivables SET
			discounted_amount = $1, outstanding_amount = $2, discount_date = $3,
			installments_applied = $4, status = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9`,
		rec.DiscountedAmount, rec.OutstandingAmount, rec.DiscountDate,
		rec.InstallmentsApplied, rec.Status, rec.Version, rec.UpdatedAt,
		rec.ID, rec.Version-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalances: %w", err)
	}
	return checkVersionedUpdate(res, "UpdateBalances")
}

// UpdateDetails persists an administrative edit of non-financial fields. The
// balance columns, code, and identity are deliberately absent from the SET
// list; status is included because a due-date edit can re-derive it.
func (r *ReceivableRepository) UpdateDetails(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE receivables SET
			employee_name = $1, description = $2, notes = $3, due_date = $4,
			installments_total = $5, status = $6, version = $7, updated_at = $8
		WHERE id = $9 AND version = $10`,
		rec.EmployeeName, rec.Description, rec.Notes, rec.DueDate,
		rec.InstallmentsTotal, rec.Status, rec.Version, rec.UpdatedAt,
		rec.ID, rec.Version-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateDetails: %w", err)
	}
	return checkVersionedUpdate(res, "UpdateDetails")
}

func checkVersionedUpdate(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrVersionConflict)
	}
	return nil
}

func (r *ReceivableRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM receivables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrNotFound)
	}
	return nil
}

type ListFilter struct {
	Status     *domain.ReceivableStatus
	EmployeeID *uuid.UUID
	Limit      int
	Offset     int
}

func (r *ReceivableRepository) List(ctx context.Context, f ListFilter) ([]domain.Receivable, int, error) {
	var conds []string
	var args []any

	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.EmployeeID != nil {
		args = append(args, *f.EmployeeID)
		conds = append(conds, fmt.Sprintf("employee_id = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM receivables`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receivableColumns+` FROM receivables`+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	entries, err := collectReceivables(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return entries, total, nil
}

// Overdue returns entries past due with money still owed, by date predicate
// alone. It intentionally ignores the status column.
func (r *ReceivableRepository) Overdue(ctx context.Context, now time.Time) ([]domain.Receivable, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receivableColumns+` FROM receivables
		WHERE due_date < $1 AND outstanding_amount > 0
		ORDER BY due_date`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("Overdue: %w", err)
	}
	defer rows.Close()

	entries, err := collectReceivables(rows)
	if err != nil {
		return nil, fmt.Errorf("Overdue: %w", err)
	}
	return entries, nil
}

// Statistics recomputes the portfolio aggregate from scratch on every call.
func (r *ReceivableRepository) Statistics(ctx context.Context) (*domain.Statistics, error) {
	stats := &domain.Statistics{
		TotalOutstanding: decimal.Zero,
		TotalOriginal:    decimal.Zero,
		TotalDiscounted:  decimal.Zero,
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(outstanding_amount), 0),
			COALESCE(SUM(original_amount), 0),
			COALESCE(SUM(discounted_amount), 0)
		FROM receivables`,
	).Scan(&stats.TotalOutstanding, &stats.TotalOriginal, &stats.TotalDiscounted)
	if err != nil {
		return nil, fmt.Errorf("Statistics: totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM receivables GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("Statistics: counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.ReceivableStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("Statistics: scan: %w", err)
		}
		switch status {
		case domain.StatusPending:
			stats.CountByStatus.Pending = count
		case domain.StatusPartial:
			stats.CountByStatus.Partial = count
		case domain.StatusSettled:
			stats.CountByStatus.Settled = count
		case domain.StatusOverdue:
			stats.CountByStatus.Overdue = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Statistics: rows: %w", err)
	}
	return stats, nil
}

func collectReceivables(rows *sql.Rows) ([]domain.Receivable, error) {
	var entries []domain.Receivable
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanReceivable(s scanner) (*domain.Receivable, error) {
	var rec domain.Receivable
	err := s.Scan(
		&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &rec.Code,
		&rec.OriginalAmount, &rec.DiscountedAmount, &rec.OutstandingAmount,
		&rec.AdvanceDate, &rec.DueDate, &rec.DiscountDate, &rec.Status,
		&rec.Description, &rec.Notes,
		&rec.InstallmentsTotal, &rec.InstallmentsApplied,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
