package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusOpen           = "OPEN"
	OrderStatusSentToKitchen  = "SENT_TO_KITCHEN"
	OrderStatusReady          = "READY"
	OrderStatusWaitingPayment = "WAITING_PAYMENT"
	OrderStatusClosed         = "CLOSED"
	OrderStatusCanceled       = "CANCELED"
)

// IsTerminalOrderStatus reports whether no further transition is possible.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusClosed || s == OrderStatusCanceled
}

// IsEditableOrderStatus reports whether the order still accepts item changes
// and kitchen sends.
func IsEditableOrderStatus(s string) bool {
	switch s {
	case OrderStatusOpen, OrderStatusSentToKitchen, OrderStatusReady:
		return true
	}
	return false
}

const (
	PrintJobStatusPending = "PENDING"
	PrintJobStatusPrinted = "PRINTED"
)

const (
	PrintJobTypeCustomerReceipt = "CUSTOMER_RECEIPT"
)

// ── Payments and staff (CHECK constrained in DB) ──

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
	PaymentMethodPix  = "PIX"
)

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
	UserRoleCashier = "CASHIER"
)

// Default service fee: 10% expressed in basis points.
const DefaultServiceRateBps = 1000
