package receivable

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/events"
	"github.com/fleetpay/receivables/internal/logging"
	"github.com/fleetpay/receivables/internal/repository"
)

type receivableRepo interface {
	NextCode(ctx context.Context, tx *sql.Tx) (string, error)
	Create(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Receivable, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Receivable, error)
	UpdateBalances(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error
	UpdateDetails(ctx context.Context, tx *sql.Tx, rec *domain.Receivable) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f repository.ListFilter) ([]domain.Receivable, int, error)
	Overdue(ctx context.Context, now time.Time) ([]domain.Receivable, error)
	Statistics(ctx context.Context) (*domain.Statistics, error)
}

type historyRepo interface {
	Append(ctx context.Context, tx *sql.Tx, record *domain.HistoryRecord) error
	ListByReceivable(ctx context.Context, receivableID uuid.UUID) ([]domain.HistoryRecord, error)
}

type Service struct {
	receivables receivableRepo
	history     historyRepo
	publisher   events.Publisher
	db          *sql.DB
}

func NewService(receivables receivableRepo, history historyRepo, publisher events.Publisher, db *sql.DB) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		receivables: receivables,
		history:     history,
		publisher:   publisher,
		db:          db,
	}
}

// Get returns the entry with its full audit trail attached.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Receivable, error) {
	rec, err := s.receivables.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	history, err := s.history.ListByReceivable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	rec.History = history
	return rec, nil
}

type ListRequest struct {
	Status     *domain.ReceivableStatus
	EmployeeID *uuid.UUID
	Page       int
	Limit      int
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]domain.Receivable, int, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	entries, total, err := s.receivables.List(ctx, repository.ListFilter{
		Status:     req.Status,
		EmployeeID: req.EmployeeID,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return entries, total, nil
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Delete removes an entry and its history. This is an administrative
// override, not a ledger operation: nothing is appended, the entry is gone.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.receivables.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	if err := s.receivables.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	s.publish(ctx, events.TypeReceivableDeleted, rec, actor)
	return nil
}

// Statistics returns a complete portfolio snapshot or an error, never a
// partial result.
func (s *Service) Statistics(ctx context.Context) (*domain.Statistics, error) {
	stats, err := s.receivables.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("Statistics: %w", err)
	}
	return stats, nil
}

// Overdue lists entries past due with an outstanding balance, selected by
// date predicate alone so that partially repaid entries are included even
// though their status stays partial.
func (s *Service) Overdue(ctx context.Context) ([]domain.Receivable, error) {
	entries, err := s.receivables.Overdue(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("Overdue: %w", err)
	}
	return entries, nil
}

// publish notifies listeners of a mutation. Failures are logged and
// swallowed: event delivery must never fail a committed ledger operation.
func (s *Service) publish(ctx context.Context, eventType string, rec *domain.Receivable, actor string) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:         eventType,
		ReceivableID: rec.ID,
		Code:         rec.Code,
		Actor:        actor,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		logging.FromContext(ctx).Warn("event publish failed",
			"type", eventType,
			"receivable_id", rec.ID,
			"error", err,
		)
	}
}
