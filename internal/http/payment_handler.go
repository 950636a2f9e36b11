package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/idempotency"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/internal/service"
	"github.com/go-chi/render"
)

type Confirmer interface {
	Confirm(ctx context.Context, id *auth.Identity, req domain.ConfirmRequest) (*service.ConfirmResult, error)
}

type PaymentHandler struct {
	confirmer Confirmer
	authn     auth.Authenticator
	logger    *slog.Logger
	timeout   time.Duration
}

func NewPaymentHandler(confirmer Confirmer, authn auth.Authenticator, logger *slog.Logger, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		confirmer: confirmer,
		authn:     authn,
		logger:    logger,
		timeout:   timeout,
	}
}

// ConfirmRequestDTO accepts both the storefront's names and the processor's
// redirect parameter names.
type ConfirmRequestDTO struct {
	PaymentReference string       `json:"paymentReference"`
	OrderReference   string       `json:"orderReference"`
	PaymentKey       string       `json:"paymentKey"`
	OrderID          string       `json:"orderId"`
	Amount           *json.Number `json:"amount"`
	ItemID           *int64       `json:"itemId"`
}

type PaymentDTO struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	OrderName  string `json:"orderName,omitempty"`
	Amount     int64  `json:"amount"`
	Method     string `json:"method,omitempty"`
	ApprovedAt string `json:"approvedAt,omitempty"`
}

type OrderSummaryDTO struct {
	OrderID     string `json:"orderId"`
	ProductName string `json:"productName"`
	Amount      int64  `json:"amount"`
	ItemID      *int64 `json:"itemId,omitempty"`
}

type ConfirmResponseDTO struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Duplicate bool            `json:"duplicate,omitempty"`
	Payment   PaymentDTO      `json:"payment"`
	Order     OrderSummaryDTO `json:"order"`
}

// POST /api/v1/payments/confirm
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var body ConfirmRequestDTO
	if err := render.DecodeJSON(r.Body, &body); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   msgInvalidBody,
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return
	}

	req, presence, ok := body.toDomain()
	if !ok {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   msgMissingParams,
			Code:    "missing_parameters",
			Details: presence,
		})
		return
	}

	id, err := authenticate(r, h.authn)
	if err != nil {
		respondAuthError(w, r, h.logger, err)
		return
	}

	res, err := h.confirmer.Confirm(ctx, id, req)
	if err != nil {
		h.respondConfirmError(w, r, req, err)
		return
	}

	message := msgApproved
	if res.Duplicate {
		message = msgAlreadyApproved
	}
	respondJSON(w, r, http.StatusOK, ConfirmResponseDTO{
		Success:   true,
		Message:   message,
		Duplicate: res.Duplicate,
		Payment: PaymentDTO{
			PaymentKey: res.Payment.PaymentKey,
			OrderID:    res.Payment.OrderID,
			OrderName:  res.Payment.OrderName,
			Amount:     res.Payment.TotalAmount,
			Method:     res.Payment.Method,
			ApprovedAt: res.Payment.ApprovedAt,
		},
		Order: OrderSummaryDTO{
			OrderID:     res.Order.OrderReference,
			ProductName: res.Order.ProductName,
			Amount:      res.Order.Amount,
			ItemID:      res.Order.ItemID,
		},
	})
}

func (h *PaymentHandler) respondConfirmError(w http.ResponseWriter, r *http.Request, req domain.ConfirmRequest, err error) {
	ctx := r.Context()

	var rejection *payment.RejectionError
	switch {
	case errors.As(err, &rejection):
		h.logger.WarnContext(ctx, "payment rejected by processor",
			"order_reference", req.OrderReference,
			"status", rejection.StatusCode,
			"processor_status", rejection.Status,
			"processor_code", rejection.Code,
			"processor_message", rejection.Message,
			"processor_body", string(rejection.Raw))

		status := rejection.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadRequest
		}
		respondJSON(w, r, status, GatewayErrorResponse{
			Error:        msgApprovalFailed,
			Code:         rejection.Code,
			Message:      rejection.Message,
			Details:      rejection.Detail(),
			GatewayError: rejection.Raw,
		})

	case errors.Is(err, payment.ErrMissingSecret):
		h.logger.ErrorContext(ctx, "payment gateway is not configured: TOSS_SECRET_KEY is empty",
			"order_reference", req.OrderReference)
		respondError(w, r, http.StatusInternalServerError, "configuration_error", msgConfiguration)

	case errors.Is(err, idempotency.ErrClaimHeld):
		respondError(w, r, http.StatusConflict, "confirmation_in_progress", msgInProgress)

	case errors.Is(err, service.ErrReferenceConflict):
		h.logger.WarnContext(ctx, "order reference reused by another user", "order_reference", req.OrderReference)
		respondError(w, r, http.StatusConflict, "order_reference_conflict", msgReferenceInUse)

	default:
		h.logger.ErrorContext(ctx, "payment confirmation failed",
			"order_reference", req.OrderReference,
			"error", err)
		details := err.Error()
		if details == "" {
			details = msgUnknown
		}
		respondJSON(w, r, http.StatusInternalServerError, ErrorResponse{
			Error:   msgUnexpected,
			Code:    "internal_error",
			Details: details,
		})
	}
}

// respondAuthError keeps the missing and rejected token cases distinct.
// Anything else means the identity provider could not answer.
func respondAuthError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		respondError(w, r, http.StatusUnauthorized, "missing_token", msgMissingToken)
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, r, http.StatusUnauthorized, "invalid_token", msgInvalidToken)
	default:
		log.ErrorContext(r.Context(), "identity provider unavailable", "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
	}
}

// toDomain validates the body. presence reports, per required field, whether
// a usable value was sent.
func (d ConfirmRequestDTO) toDomain() (domain.ConfirmRequest, map[string]bool, bool) {
	paymentRef := firstNonEmpty(d.PaymentReference, d.PaymentKey)
	orderRef := firstNonEmpty(d.OrderReference, d.OrderID)

	var amount int64
	if d.Amount != nil {
		if v, err := strconv.ParseInt(d.Amount.String(), 10, 64); err == nil && v > 0 {
			amount = v
		}
	}

	presence := map[string]bool{
		"paymentReference": paymentRef != "",
		"orderReference":   orderRef != "",
		"amount":           amount > 0,
	}
	ok := presence["paymentReference"] && presence["orderReference"] && presence["amount"]

	return domain.ConfirmRequest{
		PaymentReference: paymentRef,
		OrderReference:   orderRef,
		Amount:           amount,
		ItemID:           d.ItemID,
	}, presence, ok
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
