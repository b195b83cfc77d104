package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID          string          `db:"id" json:"id"`
	CustomerID  *string         `db:"customer_id" json:"customer_id"` // Cleared when the customer is deleted
	SaleDate    time.Time       `db:"sale_date" json:"sale_date"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Customer    *Customer       `db:"-" json:"customer"` // Joined data
	Details     []SalesDetail   `db:"-" json:"sale_details"`
}

type SalesDetail struct {
	ID          string          `db:"id" json:"id"`
	SaleID      string          `db:"sale_id" json:"sale_id"`
	LineNo      int             `db:"line_no" json:"line_no"` // Position in the basket, 0-based
	ProductID   string          `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"` // Joined, not stored
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"` // Price at the time of sale
}

func (d SalesDetail) LineTotal() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// MarshalJSON adds the line total as total_price.
func (d SalesDetail) MarshalJSON() ([]byte, error) {
	type detail SalesDetail
	return json.Marshal(struct {
		detail
		TotalPrice decimal.Decimal `json:"total_price"`
	}{detail(d), d.LineTotal()})
}
