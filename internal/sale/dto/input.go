package dto

import (
	customerdto "github.com/fekuna/omnipos-sales-service/internal/customer/dto"
	"github.com/shopspring/decimal"
)

type LineInput struct {
	ProductName string
	Quantity    int
	Price       decimal.Decimal
}

type CheckoutInput struct {
	Lines          []LineInput
	TotalAmount    *decimal.Decimal
	TotalQuantity  *int                 // Echoed back, never verified
	Contact        *customerdto.Contact // nil means guest
	IdempotencyKey string
}
