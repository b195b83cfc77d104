package handler

import (
	"errors"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	customerdto "github.com/fekuna/omnipos-sales-service/internal/customer/dto"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/shopspring/decimal"
)

const SuccessMessage = "Sale recorded successfully."

type LineRequest struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type CustomerRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// CheckoutRequest is the body of POST /api/v1/sales and of the gRPC
// Checkout message.
type CheckoutRequest struct {
	Products      []LineRequest    `json:"products"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	TotalQuantity *int             `json:"total_quantity"`
	Customer      *CustomerRequest `json:"customer"`
}

type CheckoutResponse struct {
	Message       string          `json:"message"`
	SaleID        string          `json:"sale_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalQuantity *int            `json:"total_quantity"`
}

func (r *CheckoutRequest) toInput(idempotencyKey string) *dto.CheckoutInput {
	input := &dto.CheckoutInput{
		Lines:          make([]dto.LineInput, 0, len(r.Products)),
		TotalAmount:    r.TotalAmount,
		TotalQuantity:  r.TotalQuantity,
		IdempotencyKey: idempotencyKey,
	}
	for _, p := range r.Products {
		input.Lines = append(input.Lines, dto.LineInput{
			ProductName: p.Name,
			Quantity:    p.Quantity,
			Price:       p.Price,
		})
	}
	if r.Customer != nil {
		input.Contact = &customerdto.Contact{Phone: r.Customer.Phone, Name: r.Customer.Name}
	}
	return input
}

func newCheckoutResponse(receipt *dto.Receipt) CheckoutResponse {
	return CheckoutResponse{
		Message:       SuccessMessage,
		SaleID:        receipt.SaleID,
		TotalAmount:   receipt.TotalAmount,
		TotalQuantity: receipt.TotalQuantity,
	}
}

// errorDetails names the offending line for per-line failures.
func errorDetails(err error) map[string]any {
	var (
		validation *apperror.ValidationError
		notFound   *apperror.ProductNotFoundError
		stock      *apperror.InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		return map[string]any{"field": validation.Field, "reason": validation.Reason}
	case errors.As(err, &notFound):
		return map[string]any{"line": notFound.Line, "product": notFound.Name}
	case errors.As(err, &stock):
		return map[string]any{
			"line":      stock.Line,
			"product":   stock.Product,
			"requested": stock.Requested,
			"available": stock.Available,
		}
	}
	return nil
}
