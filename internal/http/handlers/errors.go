package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/service"
)

// mapServiceError converts service-layer errors into Huma status errors.
// Unmatched errors become opaque 500s so internal detail never leaks.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		// huma ships no 402 convenience constructor
		return huma.NewError(http.StatusPaymentRequired, "insufficient balance")
	case errors.Is(err, service.ErrInvalidJobID):
		return huma.Error422UnprocessableEntity("job id must be a valid ULID")
	case errors.Is(err, service.ErrEmptyPrompt):
		return huma.Error422UnprocessableEntity("prompt must not be empty")
	case errors.Is(err, service.ErrDuplicateJobID):
		return huma.Error409Conflict("a job with this id already exists")
	case errors.Is(err, service.ErrJobNotFound):
		return huma.Error404NotFound("job not found")
	case errors.Is(err, service.ErrArtifactNotFound):
		return huma.Error404NotFound("artifact not found")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}

// pageBounds clamps limit/offset query values to sane ranges.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
