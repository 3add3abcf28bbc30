package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
)

// claimsName returns the authenticated staff member's name, or "" when the
// request carries no claims.
func claimsName(r *http.Request) string {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Name
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps known service errors onto HTTP statuses:
// bad input 400, missing resources 404, state conflicts 409, the rest 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isNotFoundError(err):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case isConflictError(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrUserNotFound) ||
		errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrItemNotFound) ||
		errors.Is(err, service.ErrPrintJobNotFound)
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrInvalidTableID) ||
		errors.Is(err, service.ErrInvalidUserID) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidPaymentMethod)
}

func isConflictError(err error) bool {
	return errors.Is(err, service.ErrProductUnavailable) ||
		errors.Is(err, service.ErrOutOfStock) ||
		errors.Is(err, service.ErrInsufficientStock) ||
		errors.Is(err, service.ErrOrderNotEditable) ||
		errors.Is(err, service.ErrOrderFinalized) ||
		errors.Is(err, service.ErrItemAlreadyCanceled) ||
		errors.Is(err, service.ErrItemAlreadyPrepared) ||
		errors.Is(err, service.ErrNoNewItems) ||
		errors.Is(err, service.ErrNoItems) ||
		errors.Is(err, service.ErrKitchenPending) ||
		errors.Is(err, service.ErrNotWaitingPayment) ||
		errors.Is(err, service.ErrInvalidTransition) ||
		errors.Is(err, service.ErrCodeSpaceExhausted)
}

// --- Shared response types ---

type orderResponse struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	TableID        uuid.UUID  `json:"table_id"`
	UserID         *string    `json:"user_id"`
	Status         string     `json:"status"`
	ServiceEnabled bool       `json:"service_enabled"`
	ServiceRateBps int32      `json:"service_rate_bps"`
	SubtotalCents  int64      `json:"subtotal_cents"`
	ServiceCents   int64      `json:"service_cents"`
	TotalCents     int64      `json:"total_cents"`
	PaymentMethod  *string    `json:"payment_method"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at"`
}

type orderItemResponse struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       uuid.UUID  `json:"product_id"`
	ProductName     string     `json:"product_name,omitempty"`
	UnitPriceCents  int64      `json:"unit_price_cents,omitempty"`
	Qty             int32      `json:"qty"`
	Note            *string    `json:"note"`
	SentToKitchenAt *time.Time `json:"sent_to_kitchen_at"`
	PreparedAt      *time.Time `json:"prepared_at"`
	CanceledAt      *time.Time `json:"canceled_at"`
	CanceledReason  *string    `json:"canceled_reason"`
	CreatedAt       time.Time  `json:"created_at"`
}

type printJobResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"order_id"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	PrintedAt *time.Time `json:"printed_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		Code:           o.Code,
		TableID:        o.TableID,
		Status:         o.Status,
		ServiceEnabled: o.ServiceEnabled,
		ServiceRateBps: o.ServiceRateBps,
		SubtotalCents:  o.SubtotalCents,
		ServiceCents:   o.ServiceCents,
		TotalCents:     o.TotalCents,
		CreatedAt:      o.CreatedAt,
	}
	if o.UserID.Valid {
		s := uuid.UUID(o.UserID.Bytes).String()
		resp.UserID = &s
	}
	resp.PaymentMethod = nullText(o.PaymentMethod)
	if o.ClosedAt.Valid {
		resp.ClosedAt = &o.ClosedAt.Time
	}
	return resp
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Qty:       item.Qty,
		CreatedAt: item.CreatedAt,
	}
	resp.Note = nullText(item.Note)
	if item.SentToKitchenAt.Valid {
		resp.SentToKitchenAt = &item.SentToKitchenAt.Time
	}
	if item.PreparedAt.Valid {
		resp.PreparedAt = &item.PreparedAt.Time
	}
	if item.CanceledAt.Valid {
		resp.CanceledAt = &item.CanceledAt.Time
	}
	resp.CanceledReason = nullText(item.CanceledReason)
	return resp
}

func toOrderItemWithProductResponse(item database.OrderItemWithProduct) orderItemResponse {
	resp := toOrderItemResponse(item.OrderItem)
	resp.ProductName = item.ProductName
	resp.UnitPriceCents = item.ProductPriceCents
	return resp
}

func toPrintJobResponse(j database.PrintJob) printJobResponse {
	resp := printJobResponse{
		ID:        j.ID,
		OrderID:   j.OrderID,
		Type:      j.Type,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
	if j.PrintedAt.Valid {
		resp.PrintedAt = &j.PrintedAt.Time
	}
	return resp
}

func nullText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}
