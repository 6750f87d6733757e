package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/app"
	"collegestar/notes-portal/notes-portal-backend/internal/auth"
	"collegestar/notes-portal/notes-portal-backend/internal/config"
	"collegestar/notes-portal/notes-portal-backend/internal/donations"
	"collegestar/notes-portal/notes-portal-backend/internal/maintenance"
	"collegestar/notes-portal/notes-portal-backend/internal/middleware"
	"collegestar/notes-portal/notes-portal-backend/internal/notes"
	"collegestar/notes-portal/notes-portal-backend/internal/profiles"
	"collegestar/notes-portal/notes-portal-backend/pkg/pdf"
	"collegestar/notes-portal/notes-portal-backend/pkg/token"
	"collegestar/notes-portal/notes-portal-backend/pkg/upi"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	awsCfg, err := app.LoadAWS(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	// Connect to database
	repos, err := app.OpenRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer repos.Close()

	store, err := app.OpenStorage(cfg, awsCfg)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}

	tokens := token.NewManager(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTExpiration)
	requireAuth := middleware.RequireAuth(tokens)

	profileService := profiles.NewService(repos.Profiles, logger)
	noteService := notes.NewService(repos.Notes, store, profileService, logger)
	authService := auth.NewService(profileService, tokens, logger)
	donationService := donations.NewService(
		profileService,
		buildNotifier(cfg, awsCfg, logger),
		pdf.NewGenerator(cfg.Donations.PayeeName),
		upi.Payee{
			VPA:      cfg.Donations.PayeeVPA,
			Name:     cfg.Donations.PayeeName,
			Note:     cfg.Donations.PaymentNote,
			Currency: cfg.Donations.Currency,
		},
		cfg.Donations.Tiers,
		logger,
	)

	// Deployments that run cmd/workers set maintenance.sweep_schedule to "" here.
	sweeper := maintenance.NewSweeper(store, repos.Notes, cfg.Maintenance.OrphanGrace, logger)
	if cfg.Maintenance.SweepSchedule != "" {
		if err := sweeper.Start(cfg.Maintenance.SweepSchedule); err != nil {
			logger.Fatal("Failed to start orphan sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	// Setup Router
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())

	// Register Routes
	api := router.Group("/api")
	{
		auth.RegisterRoutes(api, auth.NewHandler(authService, logger), requireAuth)
		profiles.NewHandler(profileService, logger).RegisterRoutes(api, requireAuth)
		notes.NewHandler(noteService, logger, cfg.Server.MaxUploadBytes).RegisterRoutes(api, requireAuth)
		donations.NewHandler(donationService, logger).RegisterRoutes(api, requireAuth)
	}

	if cfg.Storage.Driver == "local" && strings.HasPrefix(cfg.Storage.PublicURL, "/") {
		router.Static(cfg.Storage.PublicURL, cfg.Storage.UploadDir)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("database", cfg.Database.Driver),
		zap.String("storage", cfg.Storage.Driver))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func buildNotifier(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) donations.Notifier {
	var notifiers []donations.Notifier
	if cfg.Donations.SNSTopicARN != "" {
		notifiers = append(notifiers, donations.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.Donations.SNSTopicARN))
	}
	if cfg.Donations.SESFrom != "" {
		notifiers = append(notifiers, donations.NewSESNotifier(sesv2.NewFromConfig(awsCfg), cfg.Donations.SESFrom, cfg.Donations.AdminEmails))
	}
	if len(notifiers) == 0 {
		logger.Info("Donation notifications disabled")
		return donations.NopNotifier()
	}
	return donations.MultiNotifier(notifiers...)
}
