package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/jobtailor/internal/keypool"
	"github.com/jonathan/jobtailor/internal/llm"
)

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Pool exhaustion maps to 503 so clients know to back off; upstream
// provider failures map to 502.
func HTTPStatus(err error) int {
	var noKeys *keypool.NoKeysAvailableError
	if errors.As(err, &noKeys) {
		return http.StatusServiceUnavailable
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}

	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
