package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	SaleID        string          `json:"sale_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalQuantity *int            `json:"total_quantity"`
}

type SaleFilters struct {
	CustomerID string
	Page       int
	PageSize   int
}

// SaleRecordedEvent is the payload of the sale.recorded outbox event.
type SaleRecordedEvent struct {
	SaleID      string             `json:"sale_id"`
	CustomerID  string             `json:"customer_id"`
	SaleDate    time.Time          `json:"sale_date"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Lines       []SaleRecordedLine `json:"lines"`
}

type SaleRecordedLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}
