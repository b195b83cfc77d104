package apperror

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const unavailableMessage = "service temporarily unavailable, please retry"

// HTTPStatus maps err to a status code, a stable error code and a message
// that is safe to return to callers. Store failures never expose the
// underlying driver error.
func HTTPStatus(err error) (int, string, string) {
	var (
		validation *ValidationError
		notFound   *ProductNotFoundError
		stock      *InsufficientStockError
		store      *StoreUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "invalid_argument", validation.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, "product_not_found", notFound.Error()
	case errors.Is(err, ErrProductUnknown):
		return http.StatusNotFound, "product_not_found", ErrProductUnknown.Error()
	case errors.Is(err, ErrSaleNotFound):
		return http.StatusNotFound, "sale_not_found", ErrSaleNotFound.Error()
	case errors.As(err, &stock):
		return http.StatusConflict, "insufficient_stock", stock.Error()
	case errors.Is(err, ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress", ErrCheckoutInProgress.Error()
	case errors.As(err, &store):
		return http.StatusServiceUnavailable, "service_unavailable", unavailableMessage
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

// GRPCStatus is the gRPC counterpart of HTTPStatus.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	var (
		validation *ValidationError
		notFound   *ProductNotFoundError
		stock      *InsufficientStockError
		store      *StoreUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.Is(err, ErrProductUnknown), errors.Is(err, ErrSaleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &stock):
		return status.Error(codes.FailedPrecondition, stock.Error())
	case errors.Is(err, ErrCheckoutInProgress):
		return status.Error(codes.Aborted, ErrCheckoutInProgress.Error())
	case errors.As(err, &store):
		return status.Error(codes.Unavailable, unavailableMessage)
	}
	return status.Error(codes.Internal, "internal server error")
}
