package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"mailsieve/pkg/apperr"
)

// ErrorHandler is fiber's global error handler: every handler in this
// service returns a plain `error`, and this translates apperr.AppError
// (and fiber's own parse errors) into a JSON body with the right status,
// the same centralising idiom the teacher used.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"code":    "BAD_REQUEST",
				"message": fiberErr.Message,
			})
		}

		appErr := apperr.AsAppError(err)
		if appErr.Status >= 500 {
			log.Error().Err(err).Str("code", appErr.Code).Msg("request failed")
		}

		return c.Status(appErr.HTTPStatus()).JSON(fiber.Map{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		})
	}
}
