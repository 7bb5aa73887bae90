// handlers/resume_routes.go
package handlers

import (
	"referral-bridge-system/middleware"
	"referral-bridge-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupResumeRoutes(app *fiber.App, resumeService *services.ResumeService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/me/resume", resumeService.UploadResume)
	securedGroup.Get("/resumes/:candidate_id/download", resumeService.DownloadResume)
	securedGroup.Get("/quota/downloads", resumeService.RemainingDownloads)
}
