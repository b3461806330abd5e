package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, upstream_error, decode_error, internal_error...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// writeError maps a service error to its response.
func writeError(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		fe *domain.FetchError
		de *domain.DecodeError
	)
	switch {
	case errors.As(err, &ve):
		return errBadRequest(c, ve.Error())
	case errors.As(err, &fe):
		return newError(c, 502, "upstream_error", fe.Error())
	case errors.As(err, &de):
		return newError(c, 502, "decode_error", de.Error())
	case errors.Is(err, domain.ErrBusy):
		return newError(c, 409, "conflict", err.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, err.Error())
	}
}
