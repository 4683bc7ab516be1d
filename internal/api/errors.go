package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/alxne/storefront/internal/backend"
	"github.com/alxne/storefront/internal/middleware"
	"github.com/alxne/storefront/internal/models"
	"github.com/alxne/storefront/internal/services"
	"github.com/alxne/storefront/internal/store"
)

const genericErrorMessage = "An unexpected error occurred. Please try again later."

// HTTPError carries an explicit status and client-facing message
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

func httpError(status int, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Message: message, Err: err}
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handlerFunc is a handler that reports failure by returning an error
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (a *App) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrCampaignNotFound),
		errors.Is(err, services.ErrCartLineNotFound),
		errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalid),
		errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrInvalidCampaign),
		errors.Is(err, services.ErrInvalidReview),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrCartEmpty),
		errors.Is(err, services.ErrInvalidCart),
		errors.Is(err, backend.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrOutOfStock),
		errors.Is(err, backend.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError is the single place errors become responses. Server errors are
// logged in full and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	message := err.Error()
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		message = httpErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed (request_id=%s): %v", r.Method, r.URL.Path, middleware.RequestID(r.Context()), err)
		message = genericErrorMessage
	}

	respondJSON(w, status, errorResponse{Status: "error", Message: message})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[HTTP] failed to encode response: %v", err)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) error {
	return httpError(http.StatusNotFound, "Not Found", nil)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) error {
	return httpError(http.StatusMethodNotAllowed, "Method Not Allowed", nil)
}
