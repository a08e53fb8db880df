package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/auth"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cart"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/order"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// respondWithError sends an error body with a machine-readable code.
func respondWithError(w http.ResponseWriter, status int, code, message string, details map[string]string) {
	respondWithJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response","code":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) (int, string) {
	var validationErr *order.ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, order.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, cart.ErrSelfPurchase):
		return http.StatusUnprocessableEntity, "self_purchase"
	case errors.Is(err, order.ErrProductNoLongerAvailable):
		return http.StatusConflict, "product_no_longer_available"
	case errors.Is(err, catalog.ErrProductUnavailable):
		return http.StatusConflict, "product_unavailable"
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, order.ErrPersistence):
		return http.StatusInternalServerError, "persistence_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders a domain error. Internal failures are logged and their
// cause is not shown to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapErrorToStatusCode(err)

	var details map[string]string
	var validationErr *order.ValidationError
	if errors.As(err, &validationErr) {
		details = validationErr.Fields
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("code", code).Msg("Request failed")
		message = "Internal server error"
		if code == "persistence_failure" {
			message = order.ErrPersistence.Error()
		}
	}

	respondWithError(w, status, code, message, details)
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}

// decodeJSON reads a strict JSON body into dst and writes the 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload", nil)
		return false
	}
	return true
}

func validateStruct(w http.ResponseWriter, v *validator.Validate, payload any) bool {
	err := v.Struct(payload)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithError(w, http.StatusBadRequest, "validation_failed", "Validation failed", formatValidationErrors(validationErrors))
		return false
	}

	log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "internal", "Internal validation error", nil)
	return false
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonTagName)
	return v
}

func jsonTagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
