// services/resume_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"referral-bridge-system/models"
	"referral-bridge-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SignedURLExpirySeconds is how long a presigned resume download stays valid.
const SignedURLExpirySeconds = 300

var allowedResumeExts = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

type ResumeService struct {
	DB    *gorm.DB
	Quota *QuotaService
}

func NewResumeService(db *gorm.DB, quota *QuotaService) *ResumeService {
	return &ResumeService{DB: db, Quota: quota}
}

// UploadResume stores the caller's resume in R2 and upserts the pointer row.
func (s *ResumeService) UploadResume(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	fileHeader, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resume file is required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedResumeExts[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resume must be a PDF or Word document"})
	}

	key := fmt.Sprintf("resumes/%s/%s", userID, utils.SafeFileName(fileHeader.Filename))
	if _, err := utils.UploadFileToR2(fileHeader, key); err != nil {
		log.Printf("R2 error uploading resume for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store resume"})
	}

	resume := models.Resume{
		SeekerID:    userID,
		StorageKey:  key,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		UploadedAt:  time.Now(),
	}
	if err := s.DB.Save(&resume).Error; err != nil {
		log.Printf("DB Error saving resume pointer for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save resume"})
	}

	return c.Status(fiber.StatusCreated).JSON(resume)
}

// DownloadResume hands out a short-lived signed URL for a candidate's resume
// after charging the caller's download quota. ?source=candidate|request picks
// the quota category; admins bypass the limit on the privileged category.
func (s *ResumeService) DownloadResume(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	candidateID := c.Params("candidate_id")

	category := CategoryCandidateDownload
	if c.Query("source") == "request" {
		category = CategoryRequestDownload
	}
	if hasRole(c, "admin") {
		category = CategoryAdminDownload
	}

	var resume models.Resume
	if err := s.DB.Where("seeker_id = ?", candidateID).First(&resume).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "candidate has not uploaded a resume"})
		}
		log.Printf("DB Error loading resume for %s: %v", candidateID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	err := s.Quota.TryConsume(userID, category, ConsumeMeta{
		CandidateID: candidateID,
		FileName:    resume.FileName,
	})
	var quotaErr *QuotaExceededError
	if errors.As(err, &quotaErr) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":    quotaErr.Error(),
			"limit":    quotaErr.Limit,
			"reset_at": quotaErr.ResetAt,
		})
	}
	if err != nil {
		log.Printf("Quota check failed for %s/%s: %v", userID, category, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check download quota"})
	}

	exists, err := utils.ObjectExists(resume.StorageKey)
	if err != nil {
		log.Printf("R2 error checking resume %s: %v", resume.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Storage error"})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "resume file is missing from storage"})
	}

	url, err := utils.SignDownloadURL(resume.StorageKey, SignedURLExpirySeconds, utils.SafeFileName(resume.FileName))
	if err != nil {
		log.Printf("R2 error signing resume URL %s: %v", resume.StorageKey, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign download URL"})
	}

	return c.JSON(fiber.Map{
		"url":        url,
		"file_name":  resume.FileName,
		"expires_in": SignedURLExpirySeconds,
	})
}

// RemainingDownloads reports the caller's remaining quota for both download
// categories.
func (s *ResumeService) RemainingDownloads(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	if hasRole(c, "admin") {
		return c.JSON(fiber.Map{"unlimited": true})
	}

	candidate, err := s.Quota.Remaining(userID, CategoryCandidateDownload)
	if err != nil {
		log.Printf("Quota check failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check quota"})
	}
	request, err := s.Quota.Remaining(userID, CategoryRequestDownload)
	if err != nil {
		log.Printf("Quota check failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check quota"})
	}

	return c.JSON(fiber.Map{
		"candidate_downloads_remaining": candidate,
		"request_downloads_remaining":   request,
	})
}

func hasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
