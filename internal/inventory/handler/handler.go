package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/httpx"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

// Routes mounts under /api/v1/inventory.
func (h *InventoryHandler) Routes(r chi.Router) {
	r.Get("/{product_id}", h.GetProductInventory)
	r.Put("/{product_id}", h.SetStock)
	r.Post("/{product_id}/adjustments", h.AdjustInventory)
	r.Get("/{product_id}/movements", h.ListMovements)
}

type AdjustInventoryRequest struct {
	QuantityChange int    `json:"quantity_change"`
	Reason         string `json:"reason"`
	ReferenceID    string `json:"reference_id"`
	ReferenceType  string `json:"reference_type"`
}

type SetStockRequest struct {
	Quantity      *int   `json:"quantity"`
	Reason        string `json:"reason"`
	ReferenceID   string `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
}

type MovementsResponse struct {
	Items    []model.InventoryMovement `json:"items"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

func (h *InventoryHandler) GetProductInventory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	inv, err := h.uc.GetProductInventory(r.Context(), productID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if inv == nil {
		httpx.RespondError(w, http.StatusNotFound, "not_tracked", "product has no inventory record", nil)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req AdjustInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body", nil)
		return
	}

	refType := req.ReferenceType
	if refType == "" {
		refType = "manual"
	}

	inv, err := h.uc.AdjustInventory(r.Context(), &dto.AdjustInventoryInput{
		ProductID:      chi.URLParam(r, "product_id"),
		QuantityChange: req.QuantityChange,
		Reason:         req.Reason,
		ReferenceID:    req.ReferenceID,
		ReferenceType:  refType,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req SetStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_argument", "invalid JSON body", nil)
		return
	}
	if req.Quantity == nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_argument", "quantity is required", nil)
		return
	}

	refType := req.ReferenceType
	if refType == "" {
		refType = "stocktake"
	}

	inv, err := h.uc.SetStock(r.Context(), &dto.SetStockInput{
		ProductID:     chi.URLParam(r, "product_id"),
		Quantity:      *req.Quantity,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
		ReferenceType: refType,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, pageSize := httpx.Pagination(r, 20)

	items, total, err := h.uc.ListMovements(r.Context(), &dto.MovementFilters{
		ProductID:    chi.URLParam(r, "product_id"),
		MovementType: r.URL.Query().Get("type"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if items == nil {
		items = []model.InventoryMovement{}
	}

	httpx.RespondJSON(w, http.StatusOK, MovementsResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *InventoryHandler) respondErr(w http.ResponseWriter, err error) {
	status, code, msg := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Inventory request failed", zap.Error(err))
	}
	httpx.RespondError(w, status, code, msg, nil)
}
