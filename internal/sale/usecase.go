package sale

import (
	"context"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
)

type UseCase interface {
	// Checkout records one sale atomically: the customer, the sale header,
	// every detail line, the stock decrements and the sale.recorded outbox
	// event commit together or not at all.
	Checkout(ctx context.Context, input *dto.CheckoutInput) (*dto.Receipt, error)

	GetSale(ctx context.Context, id string) (*model.Sale, error)
	ListSales(ctx context.Context, filters *dto.SaleFilters) ([]model.Sale, int, error)
}

// TotalPolicy decides how the caller's total_amount is treated.
type TotalPolicy string

const (
	// TotalTrust stores the caller's total as given.
	TotalTrust TotalPolicy = "trust"
	// TotalVerify rejects a total that differs from the sum of the lines by
	// more than the configured tolerance.
	TotalVerify TotalPolicy = "verify"
)

// CheckoutState tracks how far a checkout got. Only Committed is ever
// visible outside the transaction.
type CheckoutState int

const (
	StateStarted CheckoutState = iota
	StateCustomerResolved
	StateLineProcessing
	StateCommitted
	StateAborted
)

func (s CheckoutState) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateCustomerResolved:
		return "customer_resolved"
	case StateLineProcessing:
		return "line_processing"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}
