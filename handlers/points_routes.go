// handlers/points_routes.go
package handlers

import (
	"errors"
	"strconv"

	"referral-bridge-system/middleware"
	"referral-bridge-system/models"
	"referral-bridge-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupPointsRoutes(app *fiber.App, pointsService *services.PointsService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		entries, err := pointsService.TopReferrers(limit)
		if err != nil {
			return respondServiceError(c, err, "Failed to load leaderboard")
		}
		return c.JSON(entries)
	})

	securedGroup.Get("/me/points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var prof models.Profile
		if err := pointsService.DB.Where("id = ?", userID).First(&prof).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching profile"})
		}

		confirmed, err := pointsService.ConfirmedCount(userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to count confirmed referrals")
		}

		return c.JSON(fiber.Map{
			"points":              prof.Points,
			"is_premium_referrer": prof.IsPremiumReferrer,
			"confirmed_count":     confirmed,
		})
	})

	// Viewing a referrer's public profile earns the referrer a small bonus.
	// Missing profiles are a silent no-op inside the service.
	securedGroup.Post("/referrers/:referrer_id/viewed", func(c *fiber.Ctx) error {
		referrerID := c.Params("referrer_id")
		if err := pointsService.AwardAncillary(referrerID, services.ProfileViewPoints, "profile_view"); err != nil {
			return respondServiceError(c, err, "Failed to award profile-view points")
		}
		return c.JSON(fiber.Map{"message": "OK"})
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/points/:referrer_id/reconcile", func(c *fiber.Ctx) error {
		result, err := pointsService.Reconcile(c.Params("referrer_id"))
		if err != nil {
			return respondServiceError(c, err, "Reconcile failed")
		}
		return c.JSON(result)
	})

	// Legacy flat confirm bonus, kept for internal tooling that has not
	// moved to reconcile-driven scoring.
	adminGroup.Post("/points/:referrer_id/simple-confirm", func(c *fiber.Ctx) error {
		referrerID := c.Params("referrer_id")
		if err := pointsService.AwardAncillary(referrerID, services.SimpleConfirmPoints, "simple_confirm"); err != nil {
			return respondServiceError(c, err, "Failed to award confirm bonus")
		}
		return c.JSON(fiber.Map{
			"message":     "OK",
			"referrer_id": referrerID,
			"amount":      services.SimpleConfirmPoints,
		})
	})

	adminGroup.Post("/points/grant", func(c *fiber.Ctx) error {
		type Req struct {
			ReferrerID string `json:"referrer_id"`
			Amount     int64  `json:"amount"`
			Reason     string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.ReferrerID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referrer_id is required"})
		}
		if req.Amount < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
		}

		reason := req.Reason
		if reason == "" {
			reason = "admin_grant"
		}
		if err := pointsService.AwardAncillary(req.ReferrerID, req.Amount, reason); err != nil {
			return respondServiceError(c, err, "Points grant failed")
		}

		return c.JSON(fiber.Map{
			"message":     "Points granted successfully",
			"referrer_id": req.ReferrerID,
			"amount":      req.Amount,
		})
	})
}
