// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/atlas-retail/atlas-erp/internal/shared"
)

// ErrValidation marks malformed input rejected before any state change.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var transition *shared.InvalidTransitionError
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrReferenceNotFound):
		Problem(w, http.StatusUnprocessableEntity, "Reference Not Found", err.Error())
	case errors.Is(err, shared.ErrConcurrentUpdate):
		Problem(w, http.StatusConflict, "Conflict", "document was modified concurrently, reload and retry")
	case errors.As(err, &transition):
		Problem(w, http.StatusConflict, "Invalid State Transition", transition.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
