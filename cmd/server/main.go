package main

import (
	"database/sql"
	"flag"
	"log"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	httpapi "storhub-backend/internal/api/http"
	"storhub-backend/internal/config"
	"storhub-backend/internal/domain"
	"storhub-backend/internal/logger"
	"storhub-backend/internal/payments"
	"storhub-backend/internal/repository/postgres"
	"storhub-backend/internal/security"
	"storhub-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting StorHub Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	// Initialize Payment Gateway
	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey)

	// Initialize Email Service
	emailSvc := service.NewEmailService(
		cfg.SendGrid.APIKey,
		cfg.SendGrid.FromEmail,
		cfg.SendGrid.FromName,
	)

	// Initialize Services
	overstaySvc := service.NewOverstayService(
		store.OverstayRepository,
		store.HistoryRepository,
		store.BookingRepository,
		store.BillingEntryRepository,
		store.NotificationRepository,
		gateway,
		emailSvc,
		buildOverstayConfig(cfg),
	)

	notificationSvc := service.NewNotificationService(store.NotificationRepository)

	// Set up HTTP server
	router := httpapi.NewRouter(overstaySvc, notificationSvc, tokenManager, cfg.Stripe.WebhookSecret)

	logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
	if err := http.ListenAndServe(cfg.GetServerAddress(), router); err != nil {
		logger.Error("HTTP server error", "error", err)
		log.Fatalf("Failed to serve: %v", err)
	}
}

// buildOverstayConfig resolves platform penalty defaults from validated
// application config. Validate guarantees the decimal fields parse.
func buildOverstayConfig(cfg *config.Config) service.OverstayConfig {
	return service.OverstayConfig{
		Defaults: domain.EffectivePenaltyConfig{
			GracePeriodDays: cfg.Overstay.GracePeriodDays,
			PenaltyRate:     decimal.RequireFromString(cfg.Overstay.PenaltyRate),
			MaxPenaltyDays:  cfg.Overstay.MaxPenaltyDays,
			PolicyText:      cfg.Overstay.PolicyText,
		},
		Currency:           cfg.Overstay.Currency,
		ProcessingFeePct:   decimal.RequireFromString(cfg.Overstay.ProcessingFeePercent),
		ProcessingFeeFixed: cfg.Overstay.ProcessingFeeFixedCents,
		CheckoutLinkTTL:    cfg.Overstay.CheckoutLinkTTL(),
		CheckoutSuccessURL: cfg.Overstay.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.Overstay.CheckoutCancelURL,
	}
}
