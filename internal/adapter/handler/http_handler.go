package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/core/service"
	"github.com/davidumoru/shopcore/internal/port"
)

const deviceIDHeader = "X-Device-ID"

// CheckoutRunner is the slice of the checkout service the HTTP layer
// needs.
type CheckoutRunner interface {
	Checkout(ctx context.Context, in service.CheckoutInput) (*service.CheckoutResult, error)
}

type HTTPHandler struct {
	checkout CheckoutRunner
	cache    port.DeviceCacheRepository
}

func NewHTTPHandler(checkout CheckoutRunner, cache port.DeviceCacheRepository) *HTTPHandler {
	return &HTTPHandler{checkout: checkout, cache: cache}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Put("/cart", h.PutCart)
		r.Get("/shipping-address", h.GetShippingAddress)
		r.Put("/shipping-address", h.PutShippingAddress)
		r.Get("/favorites", h.GetFavorites)
		r.Put("/favorites", h.PutFavorites)
		r.Post("/checkout", h.Checkout)
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/cart
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.getBlob(w, r, port.KeyCart, "[]")
}

// PUT /api/cart
func (h *HTTPHandler) PutCart(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var items []domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid cart body")
		return
	}
	if err := h.cache.Set(r.Context(), deviceID, port.KeyCart, items); err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to save cart")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// GET /api/shipping-address
func (h *HTTPHandler) GetShippingAddress(w http.ResponseWriter, r *http.Request) {
	h.getBlob(w, r, port.KeySavedAddress, "{}")
}

// PUT /api/shipping-address
func (h *HTTPHandler) PutShippingAddress(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var addr domain.ShippingAddress
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid address body")
		return
	}
	if err := h.cache.Set(r.Context(), deviceID, port.KeySavedAddress, addr); err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to save address")
		return
	}
	respondJSON(w, http.StatusOK, addr)
}

// GET /api/favorites
func (h *HTTPHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	blob, err := h.cache.Get(r.Context(), deviceID, port.KeyFavorites)
	if err == nil && blob == nil {
		// Older app builds wrote the singular key.
		blob, err = h.cache.Get(r.Context(), deviceID, port.LegacyKeyFavorites)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to load favorites")
		return
	}
	writeRaw(w, blob, "[]")
}

// PUT /api/favorites
func (h *HTTPHandler) PutFavorites(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	var favorites []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&favorites); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid favorites body")
		return
	}
	if err := h.cache.Set(r.Context(), deviceID, port.KeyFavorites, favorites); err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to save favorites")
		return
	}
	respondJSON(w, http.StatusOK, favorites)
}

type CheckoutRequest struct {
	TxRef         string                  `json:"tx_ref"`
	BuyerID       string                  `json:"buyer_id"`
	Amount        decimal.Decimal         `json:"amount"`
	PaymentMethod string                  `json:"payment_method"`
	Attempt       int                     `json:"attempt"`
	Address       *domain.ShippingAddress `json:"shipping_address,omitempty"`
}

type CheckoutResponse struct {
	OrderID       string          `json:"order_id"`
	TxRef         string          `json:"tx_ref"`
	Amount        decimal.Decimal `json:"amount"`
	AlreadyPlaced bool            `json:"already_placed"`
}

// POST /api/checkout
//
// The cart comes from the device cache, not the request body; the app
// keeps the cached cart current and submits the payment reference once
// the gateway round-trip completes.
func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items, err := h.loadCart(r.Context(), deviceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to load cart")
		return
	}

	addr, err := h.resolveAddress(r.Context(), deviceID, req.Address)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to load saved address")
		return
	}

	result, err := h.checkout.Checkout(r.Context(), service.CheckoutInput{
		DeviceID:      deviceID,
		TxRef:         req.TxRef,
		BuyerID:       req.BuyerID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		Address:       addr,
		Attempt:       req.Attempt,
	})
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyPlaced {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponse{
		OrderID:       result.OrderID,
		TxRef:         result.TxRef,
		Amount:        result.Amount,
		AlreadyPlaced: result.AlreadyPlaced,
	})
}

func (h *HTTPHandler) loadCart(ctx context.Context, deviceID string) ([]domain.CartItem, error) {
	blob, err := h.cache.Get(ctx, deviceID, port.KeyCart)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (h *HTTPHandler) resolveAddress(ctx context.Context, deviceID string, fromBody *domain.ShippingAddress) (domain.ShippingAddress, error) {
	if fromBody != nil {
		return *fromBody, nil
	}
	blob, err := h.cache.Get(ctx, deviceID, port.KeySavedAddress)
	if err != nil || blob == nil {
		return domain.ShippingAddress{}, err
	}
	var addr domain.ShippingAddress
	if err := json.Unmarshal(blob, &addr); err != nil {
		return domain.ShippingAddress{}, err
	}
	return addr, nil
}

func (h *HTTPHandler) getBlob(w http.ResponseWriter, r *http.Request, key, emptyDefault string) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	blob, err := h.cache.Get(r.Context(), deviceID, key)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cache_error", "failed to load "+key)
		return
	}
	writeRaw(w, blob, emptyDefault)
}

func (h *HTTPHandler) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID := r.Header.Get(deviceIDHeader)
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "missing_device_id", deviceIDHeader+" header is required")
		return "", false
	}
	return deviceID, true
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	var (
		malformed    *service.MalformedCartItemError
		insufficient *domain.InsufficientStockError
		rejected     *service.VerificationRejectedError
		placement    *service.OrderPlacementError
	)

	switch {
	case errors.As(err, &malformed):
		respondError(w, http.StatusBadRequest, "malformed_cart_item", malformed.Error())
	case errors.Is(err, service.ErrMissingTxRef),
		errors.Is(err, service.ErrMissingBuyer),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "invalid_checkout", err.Error())
	case errors.Is(err, service.ErrCheckoutInFlight):
		respondError(w, http.StatusConflict, "checkout_in_flight", err.Error())
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":     "insufficient_stock",
			"message":   insufficient.Error(),
			"item_id":   insufficient.ItemID,
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, domain.ErrVariantNotFound):
		respondError(w, http.StatusConflict, "variant_not_found", err.Error())
	case errors.Is(err, domain.ErrSupplierUnresolved):
		respondError(w, http.StatusConflict, "supplier_unresolved", err.Error())
	case errors.As(err, &rejected):
		status := http.StatusPaymentRequired
		code := "verification_failed"
		if rejected.Verification.State == domain.VerificationTimedOut {
			status = http.StatusGatewayTimeout
			code = "verification_timeout"
		}
		respondJSON(w, status, map[string]any{
			"error":              code,
			"message":            rejected.Verification.Reason,
			"attempts_remaining": rejected.AttemptsRemaining,
		})
	case errors.As(err, &placement):
		respondError(w, http.StatusBadGateway, "order_placement_failed", placement.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeRaw(w http.ResponseWriter, blob []byte, emptyDefault string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if blob == nil {
		w.Write([]byte(emptyDefault))
		return
	}
	w.Write(blob)
}
