package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// SettlementResult is the outcome of closing an order.
type SettlementResult struct {
	Order    database.Order
	PrintJob database.PrintJob
}

// RequestCheckout moves an order to the cashier in one transaction: it guards
// that the kitchen is done, parks the order in WAITING_PAYMENT, cancels every
// sibling order on the table and issues the PENDING receipt job.
// Retrying is idempotent: an existing PENDING job is returned unchanged.
func (s *OrderService) RequestCheckout(ctx context.Context, companyID, orderID uuid.UUID) (database.PrintJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PrintJob{}, ErrOrderNotFound
		}
		return database.PrintJob{}, fmt.Errorf("get order: %w", err)
	}
	if enum.IsTerminalOrderStatus(order.Status) {
		return database.PrintJob{}, ErrOrderFinalized
	}

	items, err := store.ListOrderItemsWithProduct(ctx, orderID)
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("list order items: %w", err)
	}

	active := activeItems(items)
	if len(active) == 0 {
		return database.PrintJob{}, ErrNoItems
	}
	for _, it := range active {
		if it.SentToKitchenAt.Valid && !it.PreparedAt.Valid {
			return database.PrintJob{}, ErrKitchenPending
		}
	}

	existing, err := store.GetPendingPrintJobByOrder(ctx, orderID)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return database.PrintJob{}, fmt.Errorf("commit tx: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.PrintJob{}, fmt.Errorf("get pending print job: %w", err)
	}

	if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:        orderID,
		CompanyID: companyID,
		Status:    enum.OrderStatusWaitingPayment,
	}); err != nil {
		return database.PrintJob{}, fmt.Errorf("update order status: %w", err)
	}

	if _, err := store.CancelSiblingOrders(ctx, database.CancelSiblingOrdersParams{
		TableID:   order.TableID,
		CompanyID: companyID,
		ExcludeID: orderID,
	}); err != nil {
		return database.PrintJob{}, fmt.Errorf("cancel sibling orders: %w", err)
	}

	job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		OrderID: orderID,
		Type:    enum.PrintJobTypeCustomerReceipt,
	})
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("create print job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.PrintJob{}, fmt.Errorf("commit tx: %w", err)
	}
	return job, nil
}

// Close settles an order waiting at the cashier.
func (s *OrderService) Close(ctx context.Context, companyID, orderID uuid.UUID) (SettlementResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementResult{}, ErrOrderNotFound
		}
		return SettlementResult{}, fmt.Errorf("get order: %w", err)
	}
	if order.Status != enum.OrderStatusWaitingPayment {
		return SettlementResult{}, ErrNotWaitingPayment
	}

	result, err := s.settle(ctx, store, order)
	if err != nil {
		return SettlementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return SettlementResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return result, nil
}

// CompletePrintJob is the printing collaborator's confirmation. When the
// order behind the job is not yet CLOSED the full settlement runs first, so
// both entry paths produce identical final state; then the job is marked
// PRINTED.
func (s *OrderService) CompletePrintJob(ctx context.Context, companyID, printJobID uuid.UUID) (database.PrintJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	job, err := store.GetPrintJob(ctx, database.GetPrintJobParams{ID: printJobID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PrintJob{}, ErrPrintJobNotFound
		}
		return database.PrintJob{}, fmt.Errorf("get print job: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: job.OrderID, CompanyID: companyID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.PrintJob{}, ErrOrderNotFound
		}
		return database.PrintJob{}, fmt.Errorf("get order: %w", err)
	}

	if order.Status != enum.OrderStatusClosed {
		if _, err := s.settle(ctx, store, order); err != nil {
			return database.PrintJob{}, err
		}
	}

	job, err = store.MarkPrintJobPrinted(ctx, printJobID)
	if err != nil {
		return database.PrintJob{}, fmt.Errorf("mark print job printed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.PrintJob{}, fmt.Errorf("commit tx: %w", err)
	}
	return job, nil
}

// settle runs the settlement inside the caller's transaction: totals from
// non-canceled items, conditional stock decrements, CLOSED + timestamps,
// receipt job, sibling cleanup. Any failure rolls the whole transaction back.
func (s *OrderService) settle(ctx context.Context, store OrderStore, order database.Order) (SettlementResult, error) {
	items, err := store.ListOrderItemsWithProduct(ctx, order.ID)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("list order items: %w", err)
	}
	active := activeItems(items)

	subtotal := activeSubtotalCents(items)
	service, total := calcTotals(subtotal, order.ServiceEnabled, order.ServiceRateBps)

	qtyByProduct := make(map[uuid.UUID]int32, len(active))
	for _, it := range active {
		qtyByProduct[it.ProductID] += it.Qty
	}
	// Decrement in a stable order so two settlements touching the same
	// products cannot deadlock each other.
	productIDs := make([]uuid.UUID, 0, len(qtyByProduct))
	for id := range qtyByProduct {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool {
		return productIDs[i].String() < productIDs[j].String()
	})

	for _, productID := range productIDs {
		rows, err := store.DecrementProductStock(ctx, database.DecrementProductStockParams{
			ID:        productID,
			CompanyID: order.CompanyID,
			Qty:       qtyByProduct[productID],
		})
		if err != nil {
			return SettlementResult{}, fmt.Errorf("decrement stock: %w", err)
		}
		if rows == 0 {
			return SettlementResult{}, ErrInsufficientStock
		}
	}

	closed, err := store.CloseOrder(ctx, database.CloseOrderParams{
		ID:            order.ID,
		CompanyID:     order.CompanyID,
		SubtotalCents: subtotal,
		ServiceCents:  service,
		TotalCents:    total,
	})
	if err != nil {
		return SettlementResult{}, fmt.Errorf("close order: %w", err)
	}

	job, err := store.GetPendingPrintJobByOrder(ctx, order.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		job, err = store.CreatePrintJob(ctx, database.CreatePrintJobParams{
			OrderID: order.ID,
			Type:    enum.PrintJobTypeCustomerReceipt,
		})
	}
	if err != nil {
		return SettlementResult{}, fmt.Errorf("print job: %w", err)
	}

	// Normally already done at checkout; repeated here so the invariant
	// holds even when settlement is reached through the print path.
	if _, err := store.CancelSiblingOrders(ctx, database.CancelSiblingOrdersParams{
		TableID:   order.TableID,
		CompanyID: order.CompanyID,
		ExcludeID: order.ID,
	}); err != nil {
		return SettlementResult{}, fmt.Errorf("cancel sibling orders: %w", err)
	}

	return SettlementResult{Order: closed, PrintJob: job}, nil
}

func activeItems(items []database.OrderItemWithProduct) []database.OrderItemWithProduct {
	var active []database.OrderItemWithProduct
	for _, it := range items {
		if !it.CanceledAt.Valid {
			active = append(active, it)
		}
	}
	return active
}

func activeSubtotalCents(items []database.OrderItemWithProduct) int64 {
	var subtotal int64
	for _, it := range items {
		if it.CanceledAt.Valid {
			continue
		}
		subtotal += int64(it.Qty) * it.ProductPriceCents
	}
	return subtotal
}

// calcTotals computes the service fee in basis points, rounded half away
// from zero, and the grand total.
func calcTotals(subtotalCents int64, serviceEnabled bool, rateBps int32) (serviceCents, totalCents int64) {
	if serviceEnabled {
		serviceCents = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(int64(rateBps))).
			Div(decimal.NewFromInt(10000)).
			Round(0).
			IntPart()
	}
	return serviceCents, subtotalCents + serviceCents
}
