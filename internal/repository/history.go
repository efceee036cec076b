package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/domain"
)

const historyColumns = `id, receivable_id, occurred_at, action, amount, description, actor`

// HistoryRepository persists the append-only audit trail. There is no update
// or delete path, only inserts and ordered reads.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, tx *sql.Tx, record *domain.HistoryRecord) error {
	amount := decimal.NullDecimal{}
	if record.Amount != nil {
		amount = decimal.NewNullDecimal(*record.Amount)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO receivable_history (
			id, receivable_id, occurred_at, action, amount, description, actor
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.ReceivableID, record.OccurredAt, record.Action,
		amount, record.Description, record.Actor,
	)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ListByReceivable(ctx context.Context, receivableID uuid.UUID) ([]domain.HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM receivable_history
		WHERE receivable_id = $1 ORDER BY occurred_at, id`, receivableID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByReceivable: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		rec, err := scanHistoryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByReceivable: scan: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByReceivable: rows: %w", err)
	}
	return records, nil
}

func scanHistoryRecord(s scanner) (*domain.HistoryRecord, error) {
	var rec domain.HistoryRecord
	var amount decimal.NullDecimal
	err := s.Scan(
		&rec.ID, &rec.ReceivableID, &rec.OccurredAt, &rec.Action,
		&amount, &rec.Description, &rec.Actor,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		rec.Amount = &amount.Decimal
	}
	return &rec, nil
}
