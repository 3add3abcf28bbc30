package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Company struct {
	ID        uuid.UUID
	Name      string
	Code      string
	IsActive  bool
	CreatedAt time.Time
}

type User struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Role      string
	PinHash   string
	IsActive  bool
	CreatedAt time.Time
}

type Table struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type Category struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Product struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	Code       string
	Name       string
	PriceCents int64
	IsActive   bool
	StockQty   int32
	StockMin   int32
	CategoryID pgtype.UUID
	CreatedAt  time.Time
}

type Order struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	Code           string
	TableID        uuid.UUID
	UserID         pgtype.UUID
	Status         string
	ServiceEnabled bool
	ServiceRateBps int32
	SubtotalCents  int64
	ServiceCents   int64
	TotalCents     int64
	PaymentMethod  pgtype.Text
	CreatedAt      time.Time
	ClosedAt       pgtype.Timestamptz
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	Qty             int32
	Note            pgtype.Text
	SentToKitchenAt pgtype.Timestamptz
	PreparedAt      pgtype.Timestamptz
	CanceledAt      pgtype.Timestamptz
	CanceledReason  pgtype.Text
	CanceledBy      pgtype.Text
	CreatedAt       time.Time
}

type PrintJob struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Type      string
	Status    string
	PrintedAt pgtype.Timestamptz
	CreatedAt time.Time
}
