package api

import (
	"errors"
	"net/http"

	"plura/internal/funding" // Error taxonomy
)

// statusForError maps core errors to HTTP status codes. Anything outside the
// taxonomy is a failed (and fully rolled back) commit.
func statusForError(err error) int {
	switch {
	case errors.Is(err, funding.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, funding.ErrInvalidAmount),
		errors.Is(err, funding.ErrInvalidUser),
		errors.Is(err, funding.ErrInvalidKind),
		errors.Is(err, funding.ErrInsufficientCredits),
		errors.Is(err, funding.ErrProposalClosed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
