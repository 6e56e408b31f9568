// @title Event Settlement API
// @version 1.0
// @description Event registration, payment settlement and reminder notifications.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"eventsettlement/config"
	_ "eventsettlement/docs"
	"eventsettlement/internal/adapters/auth"
	"eventsettlement/internal/adapters/email"
	"eventsettlement/internal/adapters/payment"
	razorpaygw "eventsettlement/internal/adapters/payment/razorpay"
	stripegw "eventsettlement/internal/adapters/payment/stripe"
	deliveryhttp "eventsettlement/internal/delivery/http"
	"eventsettlement/internal/delivery/http/controllers"
	"eventsettlement/internal/repository/postgres"
	"eventsettlement/internal/scheduler"
	"eventsettlement/internal/services"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	eventRepo := postgres.NewEventRepository(db)
	regRepo := postgres.NewRegistrationRepository(db)

	gateways := payment.NewRegistry()
	if cfg.StripeSecretKey != "" {
		gateways.Register(stripegw.New(stripegw.Config{
			SecretKey:   cfg.StripeSecretKey,
			FrontendURL: cfg.FrontendURL,
			Timeout:     cfg.GatewayTimeout,
			SessionTTL:  cfg.PendingTTL,
		}))
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, stripe payments disabled")
	}
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateways.Register(razorpaygw.New(razorpaygw.Config{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			Timeout:   cfg.GatewayTimeout,
		}))
	} else {
		logger.Warn("RAZORPAY_KEY_ID or RAZORPAY_KEY_SECRET not set, razorpay payments disabled")
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Provider,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("email templates: %w", err)
	}

	emailService := services.NewEmailService(logger, mailer, renderer)
	eventService := services.NewEventService(logger, eventRepo, cfg.RequestTimeout)
	registrationService := services.NewRegistrationService(logger, eventRepo, regRepo, gateways, emailService, cfg.Currency, cfg.RequestTimeout)
	notificationService := services.NewNotificationService(logger, regRepo, emailService, cfg.ReminderLookahead, cfg.RequestTimeout)

	jobs, err := scheduler.New(logger, notificationService, registrationService, scheduler.Config{
		ReminderSchedule: cfg.ReminderSchedule,
		SweepSchedule:    cfg.PendingSweepSchedule,
		PendingTTL:       cfg.PendingTTL,
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	mux := deliveryhttp.NewRouter(deliveryhttp.Controllers{
		Registrations: controllers.NewRegistrationController(logger, registrationService),
		Events:        controllers.NewEventController(logger, eventService),
		Jobs:          controllers.NewJobController(logger, jobs),
	}, auth.NewJWTVerifier(cfg.JWTSecret), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deliveryhttp.NewHandler(mux, cfg.AllowedOrigins(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		jobs.Start()
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		httpErr := srv.Shutdown(shutdownCtx)
		jobsErr := jobs.Stop(shutdownCtx)
		return errors.Join(httpErr, jobsErr)
	})
	return g.Wait()
}
