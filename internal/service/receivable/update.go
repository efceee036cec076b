package receivable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/events"
)

// UpdateRequest carries an administrative edit. Only non-financial fields
// exist here: balances, status, and the business code have no corresponding
// field, so they cannot be targeted by construction.
type UpdateRequest struct {
	ID                uuid.UUID
	EmployeeName      *string
	Description       *string
	Notes             *string
	DueDate           *time.Time
	InstallmentsTotal *int
	Actor             string
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*domain.Receivable, error) {
	if err := validateUpdate(req); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Update: begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.receivables.GetForUpdate(ctx, tx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	var changed []string
	if req.EmployeeName != nil && strings.TrimSpace(*req.EmployeeName) != rec.EmployeeName {
		rec.EmployeeName = strings.TrimSpace(*req.EmployeeName)
		changed = append(changed, "funcionarioNome")
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) != rec.Description {
		rec.Description = strings.TrimSpace(*req.Description)
		changed = append(changed, "descricao")
	}
	if req.Notes != nil && *req.Notes != rec.Notes {
		rec.Notes = *req.Notes
		changed = append(changed, "observacoes")
	}
	if req.DueDate != nil && !req.DueDate.UTC().Equal(rec.DueDate) {
		rec.DueDate = req.DueDate.UTC()
		changed = append(changed, "dataVencimento")
	}
	if req.InstallmentsTotal != nil && (rec.InstallmentsTotal == nil || *req.InstallmentsTotal != *rec.InstallmentsTotal) {
		total := *req.InstallmentsTotal
		rec.InstallmentsTotal = &total
		changed = append(changed, "parcelasTotal")
	}

	if len(changed) == 0 {
		return rec, nil
	}

	// A due-date edit can move an entry between pending and overdue.
	now := time.Now().UTC()
	rec.Status = domain.DeriveStatus(rec, now)
	rec.Version++
	rec.UpdatedAt = now

	if err := s.receivables.UpdateDetails(ctx, tx, rec); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	record := &domain.HistoryRecord{
		ID:           uuid.New(),
		ReceivableID: rec.ID,
		OccurredAt:   now,
		Action:       domain.HistoryActionUpdate,
		Description:  "Dados atualizados: " + strings.Join(changed, ", "),
		Actor:        req.Actor,
	}
	if err := s.history.Append(ctx, tx, record); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Update: commit: %w", err)
	}

	s.publish(ctx, events.TypeReceivableUpdated, rec, req.Actor)
	return rec, nil
}

func validateUpdate(req UpdateRequest) error {
	if req.EmployeeName != nil && strings.TrimSpace(*req.EmployeeName) == "" {
		return fmt.Errorf("%w: employee name cannot be blank", domain.ErrValidation)
	}
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		return fmt.Errorf("%w: description cannot be blank", domain.ErrValidation)
	}
	if req.DueDate != nil && req.DueDate.IsZero() {
		return fmt.Errorf("%w: due date cannot be zero", domain.ErrValidation)
	}
	if req.InstallmentsTotal != nil && *req.InstallmentsTotal < 1 {
		return fmt.Errorf("%w: installments total must be at least 1", domain.ErrValidation)
	}
	return nil
}
