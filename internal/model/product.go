package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	CategoryID string          `db:"category_id" json:"category_id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"` // Catalog price, not the price charged on a sale
}
