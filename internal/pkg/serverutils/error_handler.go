package serverutils

import (
	"errors"

	"ai-coursegen-be/pkg/apperrors"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the error taxonomy onto HTTP statuses. CircuitOpen is
// 503 so load balancers treat it as backpressure, not a client fault.
func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeValidation:
		return fiber.StatusBadRequest
	case apperrors.CodeNotFound:
		return fiber.StatusNotFound
	case apperrors.CodeTimeout:
		return fiber.StatusGatewayTimeout
	case apperrors.CodeCircuitOpen:
		return fiber.StatusServiceUnavailable
	case apperrors.CodeEmbeddingDimension:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware converts errors bubbling out of handlers into
// the response envelope. Internal details never leak to clients; the
// classified code and message do.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return ctx.Status(statusFor(appErr.Code)).
				JSON(ErrorResponse(string(appErr.Code), appErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).
				JSON(ErrorResponse(string(apperrors.CodeInternal), fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).
			JSON(ErrorResponse(string(apperrors.CodeInternal), "internal server error"))
	}
}
