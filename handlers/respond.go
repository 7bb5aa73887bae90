package handlers

import (
	"errors"
	"log"

	"referral-bridge-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondServiceError maps the typed service denials onto status codes.
// Every expected denial carries its own human-readable reason; anything else
// is an infrastructure fault — logged in full, surfaced generically.
func respondServiceError(c *fiber.Ctx, err error, fallback string) error {
	var quotaErr *services.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":    quotaErr.Error(),
			"limit":    quotaErr.Limit,
			"reset_at": quotaErr.ResetAt,
		})
	}

	var stateErr *services.InvalidStateError
	if errors.As(err, &stateErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":          stateErr.Error(),
			"current_status": stateErr.Current,
		})
	}

	var notFoundErr *services.NotFoundError
	if errors.As(err, &notFoundErr) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFoundErr.Error()})
	}

	var dupErr *services.DuplicateRequestError
	if errors.As(err, &dupErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": dupErr.Error()})
	}

	if errors.Is(err, services.ErrReasonRequired) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("❌ %s: %v", fallback, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
