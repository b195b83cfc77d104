package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/sale"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/httpx"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type SaleHandler struct {
	uc      sale.UseCase
	timeout time.Duration
	logger  logger.ZapLogger
}

func NewSaleHandler(uc sale.UseCase, timeout time.Duration, log logger.ZapLogger) *SaleHandler {
	return &SaleHandler{
		uc:      uc,
		timeout: timeout,
		logger:  log,
	}
}

// Routes mounts under /api/v1/sales.
func (h *SaleHandler) Routes(r chi.Router) {
	r.Post("/", h.Checkout)
	r.Post("/create", h.Checkout)
	r.Get("/", h.ListSales)
	r.Get("/{id}", h.GetSale)
}

type ListSalesResponse struct {
	Items    []model.Sale `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

func (h *SaleHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body", nil)
		return
	}

	receipt, err := h.uc.Checkout(ctx, req.toInput(r.Header.Get(IdempotencyKeyHeader)))
	if err != nil {
		h.respondErr(r, w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, newCheckoutResponse(receipt))
}

func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	s, err := h.uc.GetSale(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.respondErr(r, w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, s)
}

func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	page, pageSize := httpx.Pagination(r, 20)
	sales, total, err := h.uc.ListSales(ctx, &dto.SaleFilters{
		CustomerID: r.URL.Query().Get("customer_id"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		h.respondErr(r, w, err)
		return
	}
	if sales == nil {
		sales = []model.Sale{}
	}

	httpx.RespondJSON(w, http.StatusOK, ListSalesResponse{
		Items:    sales,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *SaleHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *SaleHandler) respondErr(r *http.Request, w http.ResponseWriter, err error) {
	status, code, msg := apperror.HTTPStatus(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("code", code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Sale request failed", fields...)
	} else {
		h.logger.Debug("Sale request rejected", fields...)
	}
	var details any
	if d := errorDetails(err); d != nil {
		details = d
	}
	httpx.RespondError(w, status, code, msg, details)
}
