package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
)

const idempotencyHeader = "Idempotency-Key"

type OrderHandler struct {
	service order.Service
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes expects the router to already be behind the authenticator.
// Role gates are applied here; the service checks them again.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders/checkout", h.handleCheckout)
	router.Get("/orders", h.handleHistory)
	router.Get("/orders/{id}", h.handleDetail)

	router.With(auth.Require(auth.AnyRole(auth.RoleSeller, auth.RoleAdmin), writeError)).
		Get("/sales", h.handleSales)
	router.With(auth.Require(auth.AnyRole(auth.RoleAdmin), writeError)).
		Get("/admin/overview", h.handleOverview)
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var requestPayload order.CheckoutRequest
	if !decodeJSON(w, r, &requestPayload) {
		return
	}
	requestPayload.IdempotencyKey = r.Header.Get(idempotencyHeader)

	receipt, err := h.service.Checkout(r.Context(), id, requestPayload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, receipt)
}

func (h *OrderHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	orders, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	orderID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.service.Detail(r.Context(), id, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *OrderHandler) handleSales(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	sales, err := h.service.Sales(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sales)
}

func (h *OrderHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	overview, err := h.service.Overview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, overview)
}
