package dto

import "github.com/shopspring/decimal"

type EnsureProductInput struct {
	CategoryID string
	Name       string
	Price      decimal.Decimal
}
