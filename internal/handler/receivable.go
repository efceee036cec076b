package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetpay/receivables/internal/auth"
	"github.com/fleetpay/receivables/internal/domain"
	"github.com/fleetpay/receivables/internal/logging"
	"github.com/fleetpay/receivables/internal/service/receivable"
)

type receivableService interface {
	Create(ctx context.Context, req receivable.CreateRequest) (*domain.Receivable, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Receivable, error)
	List(ctx context.Context, req receivable.ListRequest) ([]domain.Receivable, int, error)
	ApplyRepayment(ctx context.Context, req receivable.RepaymentRequest) (*domain.Receivable, error)
	Update(ctx context.Context, req receivable.UpdateRequest) (*domain.Receivable, error)
	Delete(ctx context.Context, id uuid.UUID, actor string) error
	Statistics(ctx context.Context) (*domain.Statistics, error)
	Overdue(ctx context.Context) ([]domain.Receivable, error)
}

type ReceivableHandler struct {
	receivables receivableService
}

func NewReceivableHandler(receivables receivableService) *ReceivableHandler {
	return &ReceivableHandler{receivables: receivables}
}

type createReceivableRequest struct {
	FuncionarioID    string          `json:"funcionarioId"`
	FuncionarioNome  string          `json:"funcionarioNome"`
	Valor            decimal.Decimal `json:"valor"`
	DataAdiantamento *time.Time      `json:"dataAdiantamento"`
	DataVencimento   time.Time       `json:"dataVencimento"`
	Descricao        string          `json:"descricao"`
	Observacoes      string          `json:"observacoes"`
	ParcelasTotal    *int            `json:"parcelasTotal"`
}

func (r createReceivableRequest) Validate() []FieldError {
	var errs []FieldError

	if r.FuncionarioID == "" {
		errs = append(errs, FieldError{Field: "funcionarioId", Message: "required"})
	} else if _, err := uuid.Parse(r.FuncionarioID); err != nil {
		errs = append(errs, FieldError{Field: "funcionarioId", Message: "must be a valid id"})
	}

	if r.FuncionarioNome == "" {
		errs = append(errs, FieldError{Field: "funcionarioNome", Message: "required"})
	}

	if !r.Valor.IsPositive() {
		errs = append(errs, FieldError{Field: "valor", Message: "must be greater than 0"})
	}

	if r.DataVencimento.IsZero() {
		errs = append(errs, FieldError{Field: "dataVencimento", Message: "required"})
	}

	if r.Descricao == "" {
		errs = append(errs, FieldError{Field: "descricao", Message: "required"})
	}

	if r.ParcelasTotal != nil && *r.ParcelasTotal < 1 {
		errs = append(errs, FieldError{Field: "parcelasTotal", Message: "must be at least 1"})
	}

	return errs
}

type descontoRequest struct {
	Valor     decimal.Decimal `json:"valor"`
	Descricao string          `json:"descricao"`
}

func (r descontoRequest) Validate() []FieldError {
	var errs []FieldError
	if !r.Valor.IsPositive() {
		errs = append(errs, FieldError{Field: "valor", Message: "must be greater than 0"})
	}
	return errs
}

// updateReceivableRequest deliberately has no balance, status, or code
// fields: a payload carrying them is silently stripped at decode time, so the
// derived and identity fields can never be edited directly.
type updateReceivableRequest struct {
	FuncionarioNome *string    `json:"funcionarioNome"`
	Descricao       *string    `json:"descricao"`
	Observacoes     *string    `json:"observacoes"`
	DataVencimento  *time.Time `json:"dataVencimento"`
	ParcelasTotal   *int       `json:"parcelasTotal"`
}

func (r updateReceivableRequest) Validate() []FieldError {
	var errs []FieldError

	if r.FuncionarioNome != nil && *r.FuncionarioNome == "" {
		errs = append(errs, FieldError{Field: "funcionarioNome", Message: "cannot be blank"})
	}
	if r.Descricao != nil && *r.Descricao == "" {
		errs = append(errs, FieldError{Field: "descricao", Message: "cannot be blank"})
	}
	if r.ParcelasTotal != nil && *r.ParcelasTotal < 1 {
		errs = append(errs, FieldError{Field: "parcelasTotal", Message: "must be at least 1"})
	}

	return errs
}

type historyDTO struct {
	Data      time.Time        `json:"data"`
	Acao      string           `json:"acao"`
	Valor     *decimal.Decimal `json:"valor,omitempty"`
	Descricao string           `json:"descricao"`
	Usuario   string           `json:"usuario,omitempty"`
}

type receivableDTO struct {
	ID                uuid.UUID       `json:"id"`
	Codigo            string          `json:"codigo"`
	FuncionarioID     uuid.UUID       `json:"funcionarioId"`
	FuncionarioNome   string          `json:"funcionarioNome"`
	ValorOriginal     decimal.Decimal `json:"valorOriginal"`
	ValorDescontado   decimal.Decimal `json:"valorDescontado"`
	ValorPendente     decimal.Decimal `json:"valorPendente"`
	DataAdiantamento  time.Time       `json:"dataAdiantamento"`
	DataVencimento    time.Time       `json:"dataVencimento"`
	DataDesconto      *time.Time      `json:"dataDesconto,omitempty"`
	Status            string          `json:"status"`
	Vencida           bool            `json:"vencida"`
	Descricao         string          `json:"descricao"`
	Observacoes       string          `json:"observacoes,omitempty"`
	ParcelasTotal     *int            `json:"parcelasTotal,omitempty"`
	ParcelasAplicadas int             `json:"parcelasAplicadas"`
	Historico         []historyDTO    `json:"historico,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func toReceivableDTO(rec *domain.Receivable) receivableDTO {
	dto := receivableDTO{
		ID:                rec.ID,
		Codigo:            rec.Code,
		FuncionarioID:     rec.EmployeeID,
		FuncionarioNome:   rec.EmployeeName,
		ValorOriginal:     rec.OriginalAmount,
		ValorDescontado:   rec.DiscountedAmount,
		ValorPendente:     rec.OutstandingAmount,
		DataAdiantamento:  rec.AdvanceDate,
		DataVencimento:    rec.DueDate,
		DataDesconto:      rec.DiscountDate,
		Status:            string(rec.Status),
		Vencida:           domain.IsOverdue(rec, time.Now().UTC()),
		Descricao:         rec.Description,
		Observacoes:       rec.Notes,
		ParcelasTotal:     rec.InstallmentsTotal,
		ParcelasAplicadas: rec.InstallmentsApplied,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
	for _, h := range rec.History {
		dto.Historico = append(dto.Historico, historyDTO{
			Data:      h.OccurredAt,
			Acao:      string(h.Action),
			Valor:     h.Amount,
			Descricao: h.Description,
			Usuario:   h.Actor,
		})
	}
	return dto
}

type listResponse struct {
	Items []receivableDTO `json:"items"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Total int             `json:"total"`
	Pages int             `json:"pages"`
}

type statisticsDTO struct {
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	TotalOriginal    decimal.Decimal `json:"totalOriginal"`
	TotalDiscounted  decimal.Decimal `json:"totalDiscounted"`
	CountByStatus    map[string]int  `json:"countByStatus"`
}

func toStatisticsDTO(s *domain.Statistics) statisticsDTO {
	return statisticsDTO{
		TotalOutstanding: s.TotalOutstanding,
		TotalOriginal:    s.TotalOriginal,
		TotalDiscounted:  s.TotalDiscounted,
		CountByStatus: map[string]int{
			string(domain.StatusPending): s.CountByStatus.Pending,
			string(domain.StatusPartial): s.CountByStatus.Partial,
			string(domain.StatusSettled): s.CountByStatus.Settled,
			string(domain.StatusOverdue): s.CountByStatus.Overdue,
		},
	}
}

func (h *ReceivableHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createReceivableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	employeeID, _ := uuid.Parse(req.FuncionarioID)
	rec, err := h.receivables.Create(r.Context(), receivable.CreateRequest{
		EmployeeID:        employeeID,
		EmployeeName:      req.FuncionarioNome,
		Amount:            req.Valor,
		AdvanceDate:       req.DataAdiantamento,
		DueDate:           req.DataVencimento,
		Description:       req.Descricao,
		Notes:             req.Observacoes,
		InstallmentsTotal: req.ParcelasTotal,
		Actor:             actor.AuditName(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("receivable creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/contas-a-receber/%s", rec.ID))
	RespondSuccess(w, http.StatusCreated, toReceivableDTO(rec))
}

func (h *ReceivableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	rec, err := h.receivables.Get(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("receivable lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toReceivableDTO(rec))
}

func (h *ReceivableHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields []FieldError

	var status *domain.ReceivableStatus
	if raw := q.Get("status"); raw != "" && raw != "todos" {
		s := domain.ReceivableStatus(raw)
		if !s.IsValid() {
			fields = append(fields, FieldError{Field: "status", Message: "must be pending, partial, settled, overdue, or todos"})
		} else {
			status = &s
		}
	}

	var employeeID *uuid.UUID
	if raw := q.Get("funcionarioId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fields = append(fields, FieldError{Field: "funcionarioId", Message: "must be a valid id"})
		} else {
			employeeID = &id
		}
	}

	page := parsePositiveInt(q.Get("page"), 1)
	limit := parsePositiveInt(q.Get("limit"), 10)
	if limit > 100 {
		limit = 100
	}

	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, total, err := h.receivables.List(r.Context(), receivable.ListRequest{
		Status:     status,
		EmployeeID: employeeID,
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		logging.FromContext(r.Context()).Error("receivable list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := listResponse{
		Items: make([]receivableDTO, 0, len(entries)),
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}
	for i := range entries {
		resp.Items = append(resp.Items, toReceivableDTO(&entries[i]))
	}

	RespondSuccess(w, http.StatusOK, resp)
}

func (h *ReceivableHandler) ApplyDesconto(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req descontoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	rec, err := h.receivables.ApplyRepayment(r.Context(), receivable.RepaymentRequest{
		ID:          id,
		Amount:      req.Valor,
		Description: req.Descricao,
		Actor:       actor.AuditName(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("repayment failed", "receivable_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toReceivableDTO(rec))
}

func (h *ReceivableHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req updateReceivableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	rec, err := h.receivables.Update(r.Context(), receivable.UpdateRequest{
		ID:                id,
		EmployeeName:      req.FuncionarioNome,
		Description:       req.Descricao,
		Notes:             req.Observacoes,
		DueDate:           req.DataVencimento,
		InstallmentsTotal: req.ParcelasTotal,
		Actor:             actor.AuditName(),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("receivable update failed", "receivable_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toReceivableDTO(rec))
}

func (h *ReceivableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	if err := h.receivables.Delete(r.Context(), id, actor.AuditName()); err != nil {
		logging.FromContext(r.Context()).Warn("receivable delete failed", "receivable_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]string{"message": "conta a receber removida"})
}

func (h *ReceivableHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.receivables.Statistics(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("statistics failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toStatisticsDTO(stats))
}

func (h *ReceivableHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.receivables.Overdue(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("overdue list failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]receivableDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, toReceivableDTO(&entries[i]))
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
