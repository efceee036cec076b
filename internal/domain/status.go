package domain

import "time"

// DeriveStatus maps an entry's balance and due-date state to its lifecycle
// status. First match wins, and the order is load-bearing: a partially repaid
// entry that is past its due date stays partial, not overdue. Callers that
// need the date-only signal use IsOverdue instead.
func DeriveStatus(r *Receivable, now time.Time) ReceivableStatus {
	switch {
	case r.OutstandingAmount.IsZero():
		return StatusSettled
	case r.DiscountedAmount.IsPositive() && r.OutstandingAmount.IsPositive():
		return StatusPartial
	case now.After(r.DueDate) && r.OutstandingAmount.IsPositive():
		return StatusOverdue
	default:
		return StatusPending
	}
}

// IsOverdue reports whether the entry is past due with money still owed,
// regardless of what the status field currently says.
func IsOverdue(r *Receivable, now time.Time) bool {
	return r.DueDate.Before(now) && r.OutstandingAmount.IsPositive()
}
