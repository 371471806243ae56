package httpapi

import (
	"errors"
	"fmt"

	"github.com/expensebook/expensebook/internal/common"
	"github.com/gofiber/fiber/v2"
)

const internalErrorMessage = "internal server error"

// envelope is the body of every response, successful or not.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c *fiber.Ctx, status int, data any, message string) error {
	return c.Status(status).JSON(envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < fiber.StatusBadRequest,
	})
}

// statusFor maps an error to the HTTP status and the message shown to the
// client. Internal details never leave the server.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, common.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenMismatch):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, common.ErrTooManyAttempts):
		return fiber.StatusTooManyRequests, err.Error()
	default:
		return fiber.StatusInternalServerError, internalErrorMessage
	}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, message := statusFor(err)

	if status >= fiber.StatusInternalServerError {
		s.logger.Error(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return respond(c, status, nil, message)
}

// parseBody decodes the JSON body into v. Decoding problems are client errors.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}
