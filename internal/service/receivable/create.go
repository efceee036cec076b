package receivable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/events"
	"github.com/fleetpay/receivables/internal/logging"
)

// minAmount is the smallest advance the ledger accepts, one cent.
var minAmount = decimal.NewFromFloat(0.01)

type CreateRequest struct {
	EmployeeID        uuid.UUID
	EmployeeName      string
	Amount            decimal.Decimal
	AdvanceDate       *time.Time
	DueDate           time.Time
	Description       string
	Notes             string
	InstallmentsTotal *int
	Actor             string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Receivable, error) {
	if err := validateCreate(req); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := time.Now().UTC()
	advanceDate := now
	if req.AdvanceDate != nil {
		advanceDate = req.AdvanceDate.UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	code, err := s.receivables.NextCode(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	rec := &domain.Receivable{
		ID:                uuid.New(),
		EmployeeID:        req.EmployeeID,
		EmployeeName:      strings.TrimSpace(req.EmployeeName),
		Code:              code,
		OriginalAmount:    req.Amount,
		DiscountedAmount:  decimal.Zero,
		OutstandingAmount: req.Amount,
		AdvanceDate:       advanceDate,
		DueDate:           req.DueDate.UTC(),
		Description:       strings.TrimSpace(req.Description),
		Notes:             req.Notes,
		InstallmentsTotal: req.InstallmentsTotal,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	rec.Status = domain.DeriveStatus(rec, now)

	if err := s.receivables.Create(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	created := &domain.HistoryRecord{
		ID:           uuid.New(),
		ReceivableID: rec.ID,
		OccurredAt:   now,
		Action:       domain.HistoryActionCreation,
		Amount:       &rec.OriginalAmount,
		Description:  "Adiantamento registrado",
		Actor:        req.Actor,
	}
	if err := s.history.Append(ctx, tx, created); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	rec.History = []domain.HistoryRecord{*created}

	logging.FromContext(ctx).Info("receivable created",
		"receivable_id", rec.ID,
		"code", rec.Code,
		"employee_id", rec.EmployeeID,
		"amount", rec.OriginalAmount,
	)
	s.publish(ctx, events.TypeReceivableCreated, rec, req.Actor)

	return rec, nil
}

func validateCreate(req CreateRequest) error {
	if req.EmployeeID == uuid.Nil {
		return fmt.Errorf("%w: employee reference is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.EmployeeName) == "" {
		return fmt.Errorf("%w: employee name is required", domain.ErrValidation)
	}
	if strings.TrimSpace(req.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if req.Amount.LessThan(minAmount) {
		return fmt.Errorf("%w: amount must be at least %s", domain.ErrValidation, minAmount)
	}
	if req.DueDate.IsZero() {
		return fmt.Errorf("%w: due date is required", domain.ErrValidation)
	}
	if req.InstallmentsTotal != nil && *req.InstallmentsTotal < 1 {
		return fmt.Errorf("%w: installments total must be at least 1", domain.ErrValidation)
	}
	return nil
}
