package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
	MinStock int             `json:"min_stock"`
}

func (p Product) LowStock() bool {
	return p.Quantity < p.MinStock
}

type ProductCreateRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gte=0"`
	Category string          `json:"category" validate:"required"`
	MinStock *int            `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
}

type StockIncreaseRequest struct {
	Amount int    `json:"amount" validate:"gt=0"`
	Date   string `json:"date,omitempty"`
}

type StockCheckRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
}

type StockAvailability struct {
	Available    bool `json:"available"`
	CurrentStock int  `json:"current_stock"`
	Requested    int  `json:"requested"`
}

type MovementKind string

const (
	MovementInbound        MovementKind = "inbound"
	MovementOutbound       MovementKind = "outbound"
	MovementInitialInbound MovementKind = "initial-inbound"
	MovementDeletion       MovementKind = "deletion"
)

// Movement is an immutable stock ledger entry. Quantity is stored as a
// magnitude; the sign comes from Kind.
type Movement struct {
	ID            int64        `json:"id"`
	ProductID     int64        `json:"product_id"`
	ProductName   string       `json:"product_name"`
	Quantity      int          `json:"quantity"`
	Kind          MovementKind `json:"kind"`
	Actor         string       `json:"actor"`
	Timestamp     time.Time    `json:"timestamp"`
	EffectiveDate *Day         `json:"effective_date,omitempty"`
	Note          string       `json:"note,omitempty"`
}

func (m Movement) SignedQuantity() int {
	switch m.Kind {
	case MovementOutbound, MovementDeletion:
		return -m.Quantity
	default:
		return m.Quantity
	}
}

// StockLine is one product/quantity pair of a reservation batch.
type StockLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type LineItem struct {
	ProductID   int64           `json:"product_id" validate:"required"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type SaleChannel string

const (
	ChannelInPerson SaleChannel = "in-person"
	ChannelOnline   SaleChannel = "online"
)

type Sale struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	LineItems     []LineItem      `json:"line_items"`
	Total         decimal.Decimal `json:"total"`
	ComputedTotal decimal.Decimal `json:"computed_total"`
	TotalMismatch bool            `json:"total_mismatch,omitempty"`
	SellerName    string          `json:"seller_name"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	CustomerID    int64           `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Channel       SaleChannel     `json:"channel"`
}

type PosSaleRequest struct {
	LineItems     []LineItem      `json:"line_items" validate:"required,min=1,dive"`
	CustomerTaxID string          `json:"customer_tax_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
}

type OrderKind string

const (
	OrderImmediate OrderKind = "immediate"
	OrderPreSale   OrderKind = "pre-sale"
)

func (k OrderKind) Valid() bool {
	return k == OrderImmediate || k == OrderPreSale
}

type Order struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	LineItems       []LineItem      `json:"line_items"`
	PaymentMethod   string          `json:"payment_method"`
	Kind            OrderKind       `json:"order_kind"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	PriceMismatch   bool            `json:"price_mismatch,omitempty"`
}

type CustomerOrderRequest struct {
	Kind          OrderKind  `json:"order_kind" validate:"required,oneof=immediate pre-sale"`
	LineItems     []LineItem `json:"line_items" validate:"required,min=1,dive"`
	PaymentMethod string     `json:"payment_method" validate:"required"`
}

type PreSaleWindow struct {
	ID              int64           `json:"id"`
	StartDate       Day             `json:"start_date"`
	EndDate         Day             `json:"end_date"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Active          bool            `json:"active"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Contains reports whether day falls inside the inclusive window. Windows
// with unparsable bounds never match.
func (w PreSaleWindow) Contains(day Day) bool {
	if !w.StartDate.Valid() || !w.EndDate.Valid() || !day.Valid() {
		return false
	}
	return !day.Before(w.StartDate) && !day.After(w.EndDate)
}

type PreSaleCreateRequest struct {
	StartDate       string          `json:"start_date" validate:"required"`
	EndDate         string          `json:"end_date" validate:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type LoyaltyAccount struct {
	CustomerTaxID string `json:"customer_tax_id"`
	Points        int64  `json:"points"`
}

type SummaryReport struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	ProductCount    int             `json:"product_count"`
	UserCount       int             `json:"user_count"`
	OrderCount      int             `json:"order_count"`
	ActiveCustomers int             `json:"active_customers"`
	LowStock        []Product       `json:"low_stock"`
}

type OnlineOrdersReport struct {
	Orders     []Order         `json:"orders"`
	TotalCount int             `json:"total_count"`
	TotalValue decimal.Decimal `json:"total_value"`
	Delivered  int             `json:"delivered"`
	Paid       int             `json:"paid"`
	Completed  int             `json:"completed"`
}
