package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
)

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes expects the router to already be behind the authenticator.
func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleList)
	router.Delete("/cart", h.handleClear)
	router.Post("/cart/items", h.handleAddItem)
	router.Patch("/cart/items/{lineID}", h.handleUpdateQuantity)
	router.Delete("/cart/items/{lineID}", h.handleRemoveItem)
}

func (h *CartHandler) handleList(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	view, err := h.service.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var requestPayload AddItemRequest
	if !decodeJSON(w, r, &requestPayload) {
		return
	}
	if !validateStruct(w, h.validate, requestPayload) {
		return
	}

	line, err := h.service.AddItem(r.Context(), id.UserID, requestPayload.ProductID, requestPayload.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	lineID, ok := parseUUIDParam(w, r, "lineID")
	if !ok {
		return
	}

	var requestPayload UpdateQuantityRequest
	if !decodeJSON(w, r, &requestPayload) {
		return
	}
	if !validateStruct(w, h.validate, requestPayload) {
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), id.UserID, lineID, *requestPayload.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	lineID, ok := parseUUIDParam(w, r, "lineID")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), id.UserID, lineID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	if err := h.service.Clear(r.Context(), id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+" parameter", nil)
		return uuid.Nil, false
	}
	return id, true
}
