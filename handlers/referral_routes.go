// handlers/referral_routes.go
package handlers

import (
	"errors"
	"log"

	"referral-bridge-system/middleware"
	"referral-bridge-system/models"
	"referral-bridge-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupReferralRoutes(app *fiber.App, referralService *services.ReferralService, quotaService *services.QuotaService) {
	// 🔐 Secured routes — require user context (userID, roles)
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	// Seeker: ask a referrer for a referral. Consumes one unit of the
	// request quota and enforces the one-request-per-pair rule.
	securedGroup.Post("/requests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			ReferrerID string `json:"referrer_id"`
			JobInfo    string `json:"job_info"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.ReferrerID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referrer_id is required"})
		}
		if req.ReferrerID == userID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "you cannot request a referral from yourself"})
		}

		created, err := referralService.CreateRequest(userID, req.ReferrerID, req.JobInfo)
		if err != nil {
			return respondServiceError(c, err, "Failed to create referral request")
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	securedGroup.Get("/requests/outgoing", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reqs, err := referralService.OutgoingForSeeker(userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to list outgoing requests")
		}
		return c.JSON(reqs)
	})

	securedGroup.Get("/requests/incoming", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reqs, err := referralService.IncomingForReferrer(userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to list incoming requests")
		}
		return c.JSON(reqs)
	})

	securedGroup.Get("/requests/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		req, err := referralService.GetRequest(c.Params("id"))
		if err != nil {
			return respondServiceError(c, err, "Failed to load referral request")
		}
		if req.SeekerID != userID && req.ReferrerID != userID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "referral request not found"})
		}
		return c.JSON(req)
	})

	// Referrer: open a candidate's profile. Marking the pair's request as
	// viewed is a side effect and must never fail the profile read.
	securedGroup.Get("/candidates/:seeker_id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		seekerID := c.Params("seeker_id")

		var prof models.Profile
		if err := referralService.DB.Where("id = ?", seekerID).First(&prof).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "candidate profile not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching profile"})
		}

		if err := referralService.MarkViewedForPair(userID, seekerID); err != nil {
			log.Printf("⚠️  Failed to mark request viewed (%s → %s): %v", seekerID, userID, err)
		}
		return c.JSON(prof)
	})

	securedGroup.Post("/requests/:id/refer", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		req, err := referralService.MarkReferred(c.Params("id"), userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to mark request referred")
		}
		return c.JSON(req)
	})

	securedGroup.Post("/requests/:id/confirm", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		req, err := referralService.Confirm(c.Params("id"), userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to confirm referral")
		}
		return c.JSON(req)
	})

	securedGroup.Post("/requests/:id/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var body struct {
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		req, err := referralService.Cancel(c.Params("id"), userID, body.Reason)
		if err != nil {
			return respondServiceError(c, err, "Failed to cancel referral request")
		}
		return c.JSON(req)
	})

	securedGroup.Post("/requests/:id/not-a-fit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		req, err := referralService.MarkNotAFit(c.Params("id"), userID)
		if err != nil {
			return respondServiceError(c, err, "Failed to decline referral request")
		}
		return c.JSON(req)
	})

	// Remaining request quota for the caller.
	securedGroup.Get("/quota/requests", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		remaining, err := quotaService.Remaining(userID, services.CategoryReferralRequest)
		if err != nil {
			return respondServiceError(c, err, "Failed to check request quota")
		}
		return c.JSON(fiber.Map{"requests_remaining": remaining})
	})
}
