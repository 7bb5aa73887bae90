package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"referral-bridge-system/handlers"
	"referral-bridge-system/middleware"
	"referral-bridge-system/models"
	"referral-bridge-system/services"
	"referral-bridge-system/utils"
	"referral-bridge-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // 25MB is generous for a resume upload
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.ReferralRequest{},
		&models.RequestActivity{},
		&models.DownloadActivity{},
		&models.Profile{},
		&models.Resume{},
		&models.LeaderboardEntry{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	quotaService := services.NewQuotaService(db, services.LoadQuotaConfig())
	pointsService := services.NewPointsService(db)
	notifier, err := services.NewNotifier(db)
	if err != nil {
		log.Fatal("failed to initialize SES notifier:", err)
	}
	referralService := services.NewReferralService(db, quotaService, pointsService, notifier)
	resumeService := services.NewResumeService(db, quotaService)

	// --- CONFIGURE Profile Service details for the email mirror ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("REFERRAL_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("REFERRAL_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	emailSyncWorker := workers.NewEmailSyncWorker(db, profileServiceURL, "/api/v1/internal/users/lookup", serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("Starting Email Sync Worker...")
		emailSyncWorker.Start(ctx)
	}()

	referralService.StartAutoConfirmSweep()

	// ✅ Setup routes — enforced Gateway auth globally
	handlers.SetupReferralRoutes(app, referralService, quotaService)
	handlers.SetupPointsRoutes(app, pointsService)
	handlers.SetupResumeRoutes(app, resumeService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Email Sync Worker running")
	log.Println("✅ Auto-confirm sweep running (every 10m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
