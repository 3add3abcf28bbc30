package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/tenant"
	"github.com/comanda-pos/api/internal/ws"
)

// OrderServicer defines the service methods the order handlers need.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Open(ctx context.Context, companyID uuid.UUID, req service.OpenOrderRequest) (database.Order, error)
	AddItem(ctx context.Context, companyID, orderID uuid.UUID, req service.AddItemRequest) (database.OrderItem, error)
	CancelItem(ctx context.Context, companyID, orderID, itemID uuid.UUID, reason, actor string) error
	SendToKitchen(ctx context.Context, companyID, orderID uuid.UUID) (database.Order, error)
	UpdateStatus(ctx context.Context, companyID, orderID uuid.UUID, status string) (database.Order, error)
	SetService(ctx context.Context, companyID, orderID uuid.UUID, enabled bool) (database.Order, error)
	SetPaymentMethod(ctx context.Context, companyID, orderID uuid.UUID, method string) (database.Order, error)
	RequestCheckout(ctx context.Context, companyID, orderID uuid.UUID) (database.PrintJob, error)
	Close(ctx context.Context, companyID, orderID uuid.UUID) (service.SettlementResult, error)
}

// OrderReader defines the database methods the order read endpoints need.
// Satisfied by *database.Queries.
type OrderReader interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListKitchenOrders(ctx context.Context, companyID uuid.UUID) ([]database.Order, error)
	ListOrderItemsWithProduct(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemWithProduct, error)
}

// Broadcaster pushes order events to connected clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastEvent(companyID uuid.UUID, eventType string, payload interface{})
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReader
	hub   Broadcaster
}

func NewOrderHandler(svc OrderServicer, store OrderReader, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Mounted inside the tenant-scoped group: /orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/kitchen", h.Kitchen)
	r.Post("/open", h.Open)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Delete("/{id}/items/{itemID}", h.CancelItem)
	r.Post("/{id}/kitchen", h.SendToKitchen)
	// Status transitions (READY, CANCELED) belong to the kitchen screen and
	// the manager, not the floor staff.
	r.With(middleware.RequireRole(enum.UserRoleKitchen, enum.UserRoleAdmin)).
		Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/service", h.SetService)
	r.Patch("/{id}/payment", h.SetPaymentMethod)
	r.Post("/{id}/checkout", h.Checkout)
	r.Post("/{id}/close", h.Close)
}

// --- Request / Response types ---

type openOrderRequest struct {
	TableID string `json:"table_id"`
	UserID  string `json:"user_id"`
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int32  `json:"qty"`
	Note      string `json:"note"`
}

type cancelItemRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type setServiceRequest struct {
	Enabled *bool `json:"enabled"`
}

type setPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type orderDetailResponse struct {
	orderResponse
	Items []orderItemResponse `json:"items"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type closeOrderResponse struct {
	orderResponse
	PrintJob printJobResponse `json:"print_job"`
}

// --- Handlers ---

// Open handles POST /orders/open. Idempotent per table: a table with a live
// order gets that order back instead of a new one.
func (h *OrderHandler) Open(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	var req openOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TableID == "" {
		writeError(w, http.StatusBadRequest, "table_id is required")
		return
	}

	order, err := h.svc.Open(r.Context(), company.Company.ID, service.OpenOrderRequest{
		TableID: req.TableID,
		UserID:  req.UserID,
	})
	if err != nil {
		writeServiceError(w, "open order", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderOpened, toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		CompanyID: company.Company.ID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Kitchen handles GET /orders/kitchen: the orders the kitchen still has work
// on, oldest first.
func (h *OrderHandler) Kitchen(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orders, err := h.store.ListKitchenOrders(r.Context(), company.Company.ID)
	if err != nil {
		log.Printf("ERROR: list kitchen orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderDetailResponse, len(orders))
	for i, o := range orders {
		items, err := h.store.ListOrderItemsWithProduct(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list kitchen order items: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp[i] = orderDetailResponse{
			orderResponse: toOrderResponse(o),
			Items:         activeItemResponses(items),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:        orderID,
		CompanyID: company.Company.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items, err := h.store.ListOrderItemsWithProduct(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Items:         toItemResponses(items),
	})
}

// AddItem handles POST /orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	item, err := h.svc.AddItem(r.Context(), company.Company.ID, orderID, service.AddItemRequest{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		Note:      req.Note,
	})
	if err != nil {
		writeServiceError(w, "add item", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, map[string]string{"order_id": orderID.String()})
	writeJSON(w, http.StatusCreated, toOrderItemResponse(item))
}

// CancelItem handles DELETE /orders/{id}/items/{itemID}. Items are never
// removed, only marked canceled with a reason and the acting staff name.
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	var req cancelItemRequest
	if r.Body != nil {
		// Body is optional; a bare DELETE cancels without a reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	actor := claimsName(r)

	if err := h.svc.CancelItem(r.Context(), company.Company.ID, orderID, itemID, req.Reason, actor); err != nil {
		writeServiceError(w, "cancel item", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, map[string]string{"order_id": orderID.String()})
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
}

// SendToKitchen handles POST /orders/{id}/kitchen.
func (h *OrderHandler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.SendToKitchen(r.Context(), company.Company.ID, orderID)
	if err != nil {
		writeServiceError(w, "send to kitchen", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), company.Company.ID, orderID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetService handles PATCH /orders/{id}/service: toggles the service fee and
// recomputes totals.
func (h *OrderHandler) SetService(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req setServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	order, err := h.svc.SetService(r.Context(), company.Company.ID, orderID, *req.Enabled)
	if err != nil {
		writeServiceError(w, "set order service", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, toOrderResponse(order))
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// SetPaymentMethod handles PATCH /orders/{id}/payment.
func (h *OrderHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req setPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method is required")
		return
	}

	order, err := h.svc.SetPaymentMethod(r.Context(), company.Company.ID, orderID, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, "set payment method", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Checkout handles POST /orders/{id}/checkout: parks the order for payment
// and queues the receipt print job. Repeating the call returns the same
// pending job.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	job, err := h.svc.RequestCheckout(r.Context(), company.Company.ID, orderID)
	if err != nil {
		writeServiceError(w, "checkout order", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventPrintJobCreated, toPrintJobResponse(job))
	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, map[string]string{"order_id": orderID.String()})
	writeJSON(w, http.StatusOK, toPrintJobResponse(job))
}

// Close handles POST /orders/{id}/close: settles totals, decrements stock and
// closes the order.
func (h *OrderHandler) Close(w http.ResponseWriter, r *http.Request) {
	company := tenant.FromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	result, err := h.svc.Close(r.Context(), company.Company.ID, orderID)
	if err != nil {
		writeServiceError(w, "close order", err)
		return
	}

	h.hub.BroadcastEvent(company.Company.ID, ws.EventOrderUpdated, toOrderResponse(result.Order))
	writeJSON(w, http.StatusOK, closeOrderResponse{
		orderResponse: toOrderResponse(result.Order),
		PrintJob:      toPrintJobResponse(result.PrintJob),
	})
}

// --- Helpers ---

func toItemResponses(items []database.OrderItemWithProduct) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = toOrderItemWithProductResponse(item)
	}
	return resp
}

// activeItemResponses drops canceled items. The kitchen display and the
// receipt printer only ever see live lines; canceled lines stay visible on
// the order detail for the waiter.
func activeItemResponses(items []database.OrderItemWithProduct) []orderItemResponse {
	resp := make([]orderItemResponse, 0, len(items))
	for _, item := range items {
		if item.CanceledAt.Valid {
			continue
		}
		resp = append(resp, toOrderItemWithProductResponse(item))
	}
	return resp
}
