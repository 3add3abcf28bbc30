package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	maxCancelReasonLen = 280
	maxCancelActorLen  = 120
)

// Errors returned by the order service.
var (
	ErrTableNotFound        = errors.New("table not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrInvalidTableID       = errors.New("invalid table_id")
	ErrInvalidUserID        = errors.New("invalid user_id")
	ErrInvalidProductID     = errors.New("invalid product_id")
	ErrInvalidQuantity      = errors.New("qty must be a positive integer")
	ErrProductUnavailable   = errors.New("product is unavailable")
	ErrOutOfStock           = errors.New("product is out of stock")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOrderNotEditable     = errors.New("order is not open for changes")
	ErrOrderFinalized       = errors.New("order is already finalized")
	ErrItemAlreadyCanceled  = errors.New("item is already canceled")
	ErrItemAlreadyPrepared  = errors.New("item is already prepared")
	ErrNoNewItems           = errors.New("no new items to send to the kitchen")
	ErrNoItems              = errors.New("order has no items")
	ErrKitchenPending       = errors.New("kitchen has not finished preparing the order")
	ErrNotWaitingPayment    = errors.New("order can only be closed while waiting for payment")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("status transition not allowed")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrPrintJobNotFound     = errors.New("print job not found")
	ErrCodeSpaceExhausted   = errors.New("unable to generate a unique code")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order pipeline needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetActiveTable(ctx context.Context, arg database.GetActiveTableParams) (database.Table, error)
	GetActiveUser(ctx context.Context, arg database.GetActiveUserParams) (database.User, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	DecrementProductStock(ctx context.Context, arg database.DecrementProductStockParams) (int64, error)
	OrderCodeTaken(ctx context.Context, arg database.OrderCodeTakenParams) (bool, error)
	ProductCodeTaken(ctx context.Context, arg database.ProductCodeTakenParams) (bool, error)

	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	FindOpenOrderByTable(ctx context.Context, arg database.FindOpenOrderByTableParams) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	AssignOrderUser(ctx context.Context, arg database.AssignOrderUserParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	UpdateOrderService(ctx context.Context, arg database.UpdateOrderServiceParams) (database.Order, error)
	SetOrderPaymentMethod(ctx context.Context, arg database.SetOrderPaymentMethodParams) (database.Order, error)
	CloseOrder(ctx context.Context, arg database.CloseOrderParams) (database.Order, error)
	CancelSiblingOrders(ctx context.Context, arg database.CancelSiblingOrdersParams) (int64, error)

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	ListOrderItemsWithProduct(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemWithProduct, error)
	MarkItemsSent(ctx context.Context, orderID uuid.UUID) (int64, error)
	MarkItemsPrepared(ctx context.Context, orderID uuid.UUID) (int64, error)
	CancelOrderItem(ctx context.Context, arg database.CancelOrderItemParams) (database.OrderItem, error)

	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	GetPendingPrintJobByOrder(ctx context.Context, orderID uuid.UUID) (database.PrintJob, error)
	GetPrintJob(ctx context.Context, arg database.GetPrintJobParams) (database.PrintJob, error)
	MarkPrintJobPrinted(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService owns the order lifecycle: opening, item changes, kitchen
// round-trips, checkout and settlement.
type OrderService struct {
	store    OrderStore
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(store OrderStore, pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{store: store, pool: pool, newStore: newStore}
}

// OpenOrderRequest is the validated input for opening a table's order.
type OpenOrderRequest struct {
	TableID string
	UserID  string
}

// Open returns the table's live order, creating one when none exists.
// Opening is idempotent per table: concurrent taps on the same table resolve
// to the same order because the existence check and the insert share one
// transaction. A provided staff user is attached to an existing order only
// when none is assigned yet.
func (s *OrderService) Open(ctx context.Context, companyID uuid.UUID, req OpenOrderRequest) (database.Order, error) {
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		return database.Order{}, ErrInvalidTableID
	}

	var userID uuid.UUID
	if req.UserID != "" {
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			return database.Order{}, ErrInvalidUserID
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetActiveTable(ctx, database.GetActiveTableParams{ID: tableID, CompanyID: companyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrTableNotFound
		}
		return database.Order{}, fmt.Errorf("get table: %w", err)
	}

	if userID != uuid.Nil {
		if _, err := store.GetActiveUser(ctx, database.GetActiveUserParams{ID: userID, CompanyID: companyID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrUserNotFound
			}
			return database.Order{}, fmt.Errorf("get user: %w", err)
		}
	}

	existing, err := store.FindOpenOrderByTable(ctx, database.FindOpenOrderByTableParams{
		TableID:   tableID,
		CompanyID: companyID,
	})
	switch {
	case err == nil:
		order := existing
		if userID != uuid.Nil && !existing.UserID.Valid {
			order, err = store.AssignOrderUser(ctx, database.AssignOrderUserParams{ID: existing.ID, UserID: userID})
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					// Someone got assigned between our read and write; keep theirs.
					order = existing
				} else {
					return database.Order{}, fmt.Errorf("assign order user: %w", err)
				}
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return database.Order{}, fmt.Errorf("commit tx: %w", err)
		}
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		// No live order for the table: fall through and create one.
	default:
		return database.Order{}, fmt.Errorf("find open order: %w", err)
	}

	code, err := s.GenerateOrderCode(ctx, store, companyID)
	if err != nil {
		return database.Order{}, err
	}

	var assigned pgtype.UUID
	if userID != uuid.Nil {
		assigned = pgtype.UUID{Bytes: userID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CompanyID:      companyID,
		Code:           code,
		TableID:        tableID,
		UserID:         assigned,
		ServiceRateBps: enum.DefaultServiceRateBps,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// AddItemRequest is the validated input for adding a line item.
type AddItemRequest struct {
	ProductID string
	Qty       int32
	Note      string
}

// AddItem appends a line item to an editable order. Stock is checked but not
// decremented here; the decrement happens once, at settlement.
func (s *OrderService) AddItem(ctx context.Context, companyID, orderID uuid.UUID, req AddItemRequest) (database.OrderItem, error) {
	if req.Qty <= 0 {
		return database.OrderItem{}, ErrInvalidQuantity
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return database.OrderItem{}, ErrInvalidProductID
	}

	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrOrderNotFound
		}
		return database.OrderItem{}, fmt.Errorf("get order: %w", err)
	}
	if !enum.IsEditableOrderStatus(order.Status) {
		return database.OrderItem{}, ErrOrderNotEditable
	}

	product, err := s.store.GetProduct(ctx, database.GetProductParams{ID: productID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderItem{}, ErrProductUnavailable
		}
		return database.OrderItem{}, fmt.Errorf("get product: %w", err)
	}
	if !product.IsActive {
		return database.OrderItem{}, ErrProductUnavailable
	}
	if product.StockQty <= 0 {
		return database.OrderItem{}, ErrOutOfStock
	}
	if product.StockQty < req.Qty {
		return database.OrderItem{}, ErrInsufficientStock
	}

	var note pgtype.Text
	if req.Note != "" {
		note = pgtype.Text{String: req.Note, Valid: true}
	}

	item, err := s.store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:   orderID,
		ProductID: productID,
		Qty:       req.Qty,
		Note:      note,
	})
	if err != nil {
		return database.OrderItem{}, fmt.Errorf("create order item: %w", err)
	}
	return item, nil
}

// CancelItem voids a line item that the kitchen has not finished yet. The
// item is kept for audit; totals, receipts and kitchen views skip it.
func (s *OrderService) CancelItem(ctx context.Context, companyID, orderID, itemID uuid.UUID, reason, actor string) error {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if !enum.IsEditableOrderStatus(order.Status) {
		return ErrOrderNotEditable
	}

	item, err := s.store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("get order item: %w", err)
	}
	if item.CanceledAt.Valid {
		return ErrItemAlreadyCanceled
	}
	if item.PreparedAt.Valid {
		return ErrItemAlreadyPrepared
	}

	_, err = s.store.CancelOrderItem(ctx, database.CancelOrderItemParams{
		ID:         itemID,
		OrderID:    orderID,
		Reason:     truncatedText(reason, maxCancelReasonLen),
		CanceledBy: truncatedText(actor, maxCancelActorLen),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with the kitchen marking it prepared.
			return ErrItemAlreadyPrepared
		}
		return fmt.Errorf("cancel order item: %w", err)
	}
	return nil
}

// SendToKitchen stamps every not-yet-sent item and advances the order to
// SENT_TO_KITCHEN. Fails with ErrNoNewItems when nothing qualified so a
// no-op send never fires kitchen notifications.
func (s *OrderService) SendToKitchen(ctx context.Context, companyID, orderID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !enum.IsEditableOrderStatus(order.Status) {
		return database.Order{}, ErrOrderNotEditable
	}

	sent, err := store.MarkItemsSent(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("mark items sent: %w", err)
	}
	if sent == 0 {
		return database.Order{}, ErrNoNewItems
	}

	if order.Status != enum.OrderStatusSentToKitchen {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:        orderID,
			CompanyID: companyID,
			Status:    enum.OrderStatusSentToKitchen,
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("update order status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// allowedTransitions are the status changes accepted through UpdateStatus.
// SENT_TO_KITCHEN is reached via SendToKitchen, WAITING_PAYMENT via
// RequestCheckout and CLOSED via Close; they are not settable directly.
var allowedTransitions = map[string][]string{
	enum.OrderStatusOpen:           {enum.OrderStatusCanceled},
	enum.OrderStatusSentToKitchen:  {enum.OrderStatusReady, enum.OrderStatusCanceled},
	enum.OrderStatusReady:          {enum.OrderStatusCanceled},
	enum.OrderStatusWaitingPayment: {enum.OrderStatusCanceled},
}

func transitionAllowed(current, next string) bool {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// UpdateStatus applies a kitchen- or staff-driven status change. Marking an
// order READY also stamps every sent-but-unprepared item as prepared, which
// is what makes readiness observable per item and lets later additions be
// re-sent without disturbing finished ones.
func (s *OrderService) UpdateStatus(ctx context.Context, companyID, orderID uuid.UUID, status string) (database.Order, error) {
	switch status {
	case enum.OrderStatusReady, enum.OrderStatusCanceled:
	case enum.OrderStatusOpen, enum.OrderStatusSentToKitchen,
		enum.OrderStatusWaitingPayment, enum.OrderStatusClosed:
		return database.Order{}, ErrInvalidTransition
	default:
		return database.Order{}, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !transitionAllowed(order.Status, status) {
		return database.Order{}, ErrInvalidTransition
	}

	if status == enum.OrderStatusCanceled {
		order, err = store.CancelOrder(ctx, database.CancelOrderParams{ID: orderID, CompanyID: companyID})
		if err != nil {
			return database.Order{}, fmt.Errorf("cancel order: %w", err)
		}
	} else {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:        orderID,
			CompanyID: companyID,
			Status:    status,
		})
		if err != nil {
			return database.Order{}, fmt.Errorf("update order status: %w", err)
		}
		if _, err := store.MarkItemsPrepared(ctx, orderID); err != nil {
			return database.Order{}, fmt.Errorf("mark items prepared: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// SetService toggles the service fee and recomputes totals immediately from
// the current non-canceled items. Allowed on closed orders too, so the
// cashier can drop the fee after the fact; only canceled orders refuse it.
func (s *OrderService) SetService(ctx context.Context, companyID, orderID uuid.UUID, enabled bool) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusCanceled {
		return database.Order{}, ErrOrderFinalized
	}

	items, err := store.ListOrderItemsWithProduct(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}

	subtotal := activeSubtotalCents(items)
	service, total := calcTotals(subtotal, enabled, order.ServiceRateBps)

	order, err = store.UpdateOrderService(ctx, database.UpdateOrderServiceParams{
		ID:             orderID,
		CompanyID:      companyID,
		ServiceEnabled: enabled,
		SubtotalCents:  subtotal,
		ServiceCents:   service,
		TotalCents:     total,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order service: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// SetPaymentMethod records how the customer intends to pay. There is no
// status guard: the cashier may set it before or after closing.
func (s *OrderService) SetPaymentMethod(ctx context.Context, companyID, orderID uuid.UUID, method string) (database.Order, error) {
	switch method {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodPix:
	default:
		return database.Order{}, ErrInvalidPaymentMethod
	}

	if _, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, CompanyID: companyID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	order, err := s.store.SetOrderPaymentMethod(ctx, database.SetOrderPaymentMethodParams{
		ID:            orderID,
		CompanyID:     companyID,
		PaymentMethod: method,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set payment method: %w", err)
	}
	return order, nil
}

func truncatedText(s string, max int) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	runes := []rune(s)
	if len(runes) > max {
		s = string(runes[:max])
	}
	return pgtype.Text{String: s, Valid: true}
}
