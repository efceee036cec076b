package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReceivableStatus string

const (
	StatusPending ReceivableStatus = "pending"
	StatusPartial ReceivableStatus = "partial"
	StatusSettled ReceivableStatus = "settled"
	StatusOverdue ReceivableStatus = "overdue"
)

func (s ReceivableStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusSettled, StatusOverdue:
		return true
	}
	return false
}

// Receivable is one salary advance to be recovered from an employee.
// OutstandingAmount is always OriginalAmount minus DiscountedAmount; both
// balance fields are mutated only by the repayment path.
type Receivable struct {
	ID                  uuid.UUID
	EmployeeID          uuid.UUID
	EmployeeName        string
	Code                string // human-facing sequential code, ADV-###
	OriginalAmount      decimal.Decimal
	DiscountedAmount    decimal.Decimal
	OutstandingAmount   decimal.Decimal
	AdvanceDate         time.Time
	DueDate             time.Time
	DiscountDate        *time.Time
	Status              ReceivableStatus
	Description         string
	Notes               string
	InstallmentsTotal   *int
	InstallmentsApplied int
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time

	History []HistoryRecord
}

type HistoryAction string

const (
	HistoryActionCreation  HistoryAction = "creation"
	HistoryActionRepayment HistoryAction = "repayment"
	HistoryActionUpdate    HistoryAction = "update"
)

// HistoryRecord is one entry of a receivable's append-only audit trail.
// Records are only ever inserted, never edited or removed.
type HistoryRecord struct {
	ID           uuid.UUID
	ReceivableID uuid.UUID
	OccurredAt   time.Time
	Action       HistoryAction
	Amount       *decimal.Decimal
	Description  string
	Actor        string
}

type StatusCounts struct {
	Pending int
	Partial int
	Settled int
	Overdue int
}

// Statistics is a portfolio-wide snapshot, always recomputed from the
// stored entries at call time.
type Statistics struct {
	TotalOutstanding decimal.Decimal
	TotalOriginal    decimal.Decimal
	TotalDiscounted  decimal.Decimal
	CountByStatus    StatusCounts
}
