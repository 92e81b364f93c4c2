package register

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/obs"
)

// ProductFinder resolves products for the register. catalog.Store satisfies it.
type ProductFinder interface {
	ByCode(ctx context.Context, code string) (catalog.Product, error)
	ByID(ctx context.Context, id int64) (catalog.Product, error)
}

// Handler exposes register session endpoints.
type Handler struct {
	manager  *Manager
	products ProductFinder
	logger   zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Manager  *Manager
	Products ProductFinder
	Logger   zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{manager: cfg.Manager, products: cfg.Products, logger: cfg.Logger}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Close)
	r.Post("/{id}/scan", h.Scan)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{productId}", h.SetQuantity)
	r.Delete("/{id}/items", h.Clear)
	r.Put("/{id}/adjustments", h.Adjust)
}

// Open handles POST /api/v1/registers.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.manager.Open()})
}

// Get handles GET /api/v1/registers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, chi.URLParam(r, "id"), func(*Session) error { return nil })
}

// Close handles DELETE /api/v1/registers/{id}.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scanRequest struct {
	Code string `json:"code"`
}

// Scan handles POST /api/v1/registers/{id}/scan, adding the product whose code
// matches. An unknown code leaves the cart unchanged.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	h.respond(w, id, func(s *Session) error {
		p, err := s.Cart.AddByCode(r.Context(), req.Code, h.products.ByCode)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			obs.IncScan("not_found")
			h.logger.Debug().Str("session_id", id).Str("code", req.Code).Msg("scan_not_found")
			return err
		case err != nil:
			obs.IncScan("error")
			return err
		}
		obs.IncScan("added")
		h.logger.Debug().Str("session_id", id).Str("code", p.Code).Msg("scan_added")
		return nil
	})
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
}

// AddItem handles POST /api/v1/registers/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w, chi.URLParam(r, "id"), func(s *Session) error {
		p, err := h.products.ByID(r.Context(), req.ProductID)
		if err != nil {
			return err
		}
		s.Cart.AddProduct(p)
		return nil
	})
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

// SetQuantity handles PATCH /api/v1/registers/{id}/items/{productId}. Setting
// the quantity of a product not in the cart changes nothing.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		common.WriteError(w, common.BadRequest("invalid product id", err))
		return
	}
	var req quantityRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Quantity == nil {
		common.WriteError(w, common.BadRequest("quantity is required", nil))
		return
	}
	var (
		state   State
		changed bool
	)
	err = h.manager.With(chi.URLParam(r, "id"), func(s *Session) error {
		changed = s.Cart.SetQuantity(productID, *req.Quantity)
		state = s.State()
		return nil
	})
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state, "changed": changed})
}

// Clear handles DELETE /api/v1/registers/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.respond(w, chi.URLParam(r, "id"), func(s *Session) error {
		s.Cart.Clear()
		return nil
	})
}

type adjustmentsRequest struct {
	Discount      decimal.Decimal `json:"discount"`
	ExtraDiscount decimal.Decimal `json:"extraDiscount"`
}

// Adjust handles PUT /api/v1/registers/{id}/adjustments.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentsRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w, chi.URLParam(r, "id"), func(s *Session) error {
		return s.SetAdjustments(req.Discount, req.ExtraDiscount)
	})
}

func (h *Handler) respond(w http.ResponseWriter, id string, fn func(*Session) error) {
	var state State
	err := h.manager.With(id, func(s *Session) error {
		if err := fn(s); err != nil {
			return err
		}
		state = s.State()
		return nil
	})
	if err != nil {
		common.WriteError(w, MapError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// MapError translates register and catalog errors to API errors.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrSessionNotFound):
		return common.NotFound("SESSION_NOT_FOUND", "register session not found", err)
	case errors.Is(err, catalog.ErrNotFound):
		return common.NotFound("PRODUCT_NOT_FOUND", "product not found", err)
	case errors.Is(err, ErrInvalidAdjustment):
		return common.NewAppError("INVALID_ADJUSTMENT", err.Error(), http.StatusBadRequest, err)
	default:
		return common.Internal(err)
	}
}
