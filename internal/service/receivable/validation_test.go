package receivable

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpay/receivables/internal/domain"
)

func validCreateRequest() CreateRequest {
	return CreateRequest{
		EmployeeID:   uuid.New(),
		EmployeeName: "Carlos Lima",
		Amount:       decimal.NewFromInt(800),
		DueDate:      time.Now().AddDate(0, 1, 0),
		Description:  "adiantamento salarial",
		Actor:        "Ana Souza",
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateRequest)
		wantErr bool
	}{
		{"valid request", func(r *CreateRequest) {}, false},
		{"missing employee ref", func(r *CreateRequest) { r.EmployeeID = uuid.Nil }, true},
		{"blank employee name", func(r *CreateRequest) { r.EmployeeName = "   " }, true},
		{"blank description", func(r *CreateRequest) { r.Description = "" }, true},
		{"zero amount", func(r *CreateRequest) { r.Amount = decimal.Zero }, true},
		{"negative amount", func(r *CreateRequest) { r.Amount = decimal.NewFromInt(-10) }, true},
		{"sub-cent amount", func(r *CreateRequest) { r.Amount = decimal.RequireFromString("0.009") }, true},
		{"one cent is accepted", func(r *CreateRequest) { r.Amount = decimal.RequireFromString("0.01") }, false},
		{"zero due date", func(r *CreateRequest) { r.DueDate = time.Time{} }, true},
		{"zero installments", func(r *CreateRequest) { total := 0; r.InstallmentsTotal = &total }, true},
		{"positive installments", func(r *CreateRequest) { total := 4; r.InstallmentsTotal = &total }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)

			err := validateCreate(req)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	blank := "  "
	name := "Novo Nome"
	zero := 0

	tests := []struct {
		name    string
		req     UpdateRequest
		wantErr bool
	}{
		{"empty update is valid", UpdateRequest{ID: uuid.New()}, false},
		{"new name", UpdateRequest{ID: uuid.New(), EmployeeName: &name}, false},
		{"blank name", UpdateRequest{ID: uuid.New(), EmployeeName: &blank}, true},
		{"blank description", UpdateRequest{ID: uuid.New(), Description: &blank}, true},
		{"zero installments", UpdateRequest{ID: uuid.New(), InstallmentsTotal: &zero}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUpdate(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyRepayment_RejectsNonPositiveAmount(t *testing.T) {
	// Amount validation runs before any persistence access, so a zero-value
	// service is enough here.
	svc := &Service{}

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-50)} {
		_, err := svc.ApplyRepayment(context.Background(), RepaymentRequest{
			ID:     uuid.New(),
			Amount: amount,
			Actor:  "Ana Souza",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}
