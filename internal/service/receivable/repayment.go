package receivable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/events"
	"github.com/fleetpay/receivables/internal/logging"
)

// maxRepaymentAttempts bounds the retry loop on optimistic-lock conflicts.
const maxRepaymentAttempts = 3

type RepaymentRequest struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	Description string
	Actor       string
}

// ApplyRepayment records money recovered from the employee against the
// entry's outstanding balance. The read-modify-write runs under a row lock
// and a version-conditional update; conflicts retry a bounded number of
// times before surfacing.
func (s *Service) ApplyRepayment(ctx context.Context, req RepaymentRequest) (*domain.Receivable, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("ApplyRepayment: %w: amount must be greater than zero", domain.ErrValidation)
	}

	var rec *domain.Receivable
	var err error
	for attempt := 1; attempt <= maxRepaymentAttempts; attempt++ {
		rec, err = s.applyRepaymentOnce(ctx, req)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) {
			break
		}
		logging.FromContext(ctx).Warn("repayment conflicted, retrying",
			"receivable_id", req.ID,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("ApplyRepayment: %w", err)
	}

	logging.FromContext(ctx).Info("repayment applied",
		"receivable_id", rec.ID,
		"code", rec.Code,
		"amount", req.Amount,
		"outstanding", rec.OutstandingAmount,
		"status", rec.Status,
	)
	s.publish(ctx, events.TypeReceivableRepayment, rec, req.Actor)

	return rec, nil
}

func (s *Service) applyRepaymentOnce(ctx context.Context, req RepaymentRequest) (*domain.Receivable, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.receivables.GetForUpdate(ctx, tx, req.ID)
	if err != nil {
		return nil, err
	}

	// Reject, never clamp: a repayment above what remains owed is a caller
	// bug that must not be hidden.
	if req.Amount.GreaterThan(rec.OutstandingAmount) {
		return nil, fmt.Errorf("%w: %s exceeds outstanding %s",
			domain.ErrInvalidAmount, req.Amount, rec.OutstandingAmount)
	}

	now := time.Now().UTC()
	rec.DiscountedAmount = rec.DiscountedAmount.Add(req.Amount)
	rec.OutstandingAmount = rec.OutstandingAmount.Sub(req.Amount)
	rec.DiscountDate = &now
	if rec.InstallmentsTotal != nil {
		rec.InstallmentsApplied++
	}
	rec.Status = domain.DeriveStatus(rec, now)
	rec.Version++
	rec.UpdatedAt = now

	if err := s.receivables.UpdateBalances(ctx, tx, rec); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Desconto aplicado"
	}
	amount := req.Amount
	record := &domain.HistoryRecord{
		ID:           uuid.New(),
		ReceivableID: rec.ID,
		OccurredAt:   now,
		Action:       domain.HistoryActionRepayment,
		Amount:       &amount,
		Description:  description,
		Actor:        req.Actor,
	}
	if err := s.history.Append(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}
