package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/urbanwoods/api/internal/handlers"
	"github.com/urbanwoods/api/internal/notify"
	"github.com/urbanwoods/api/internal/payments"
	"github.com/urbanwoods/api/internal/platform/auth"
	"github.com/urbanwoods/api/internal/platform/config"
	fs "github.com/urbanwoods/api/internal/platform/firestore"
	"github.com/urbanwoods/api/internal/platform/jobs"
	"github.com/urbanwoods/api/internal/platform/observability"
	"github.com/urbanwoods/api/internal/platform/secrets"
	fsrepo "github.com/urbanwoods/api/internal/repositories/firestore"
	"github.com/urbanwoods/api/internal/services"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loadOpts []config.Option
	if fetcher, err := secrets.NewFetcher(ctx); err == nil {
		defer func() { _ = fetcher.Close() }()
		loadOpts = append(loadOpts, config.WithSecretResolver(fetcher))
	} else {
		logger.Warn("secret manager unavailable, sm:// references will fail", zap.Error(err))
	}

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider := fs.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("close firestore", zap.Error(err))
		}
	}()

	productRepo := fsrepo.NewProductRepository(provider)
	orderRepo := fsrepo.NewOrderRepository(provider)
	userRepo := fsrepo.NewUserRepository(provider)

	var events services.OrderEventPublisher
	if projectID := strings.TrimSpace(cfg.Events.ProjectID); projectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			logger.Warn("pubsub unavailable, order events disabled", zap.Error(err))
		} else {
			defer func() { _ = pubsubClient.Close() }()
			publisher, err := jobs.NewPubSubEventPublisher(pubsubClient.Topic(cfg.Events.Topic))
			if err != nil {
				logger.Warn("event publisher init failed", zap.Error(err))
			} else {
				events = publisher
			}
		}
	}

	notifications := notify.NewNotificationStore(provider)
	smsSender := notify.NewSMSSender(cfg.SMS)
	emailSender := notify.NewEmailSender(cfg.SMTP)

	var sms services.SMSSender
	if smsSender.Enabled() {
		sms = smsSender
	}
	var email services.EmailSender
	if emailSender.Enabled() {
		email = emailSender
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		UnitOfWork:    provider,
		Products:      productRepo,
		Orders:        orderRepo,
		LegacyOrders:  userRepo,
		Users:         userRepo,
		Events:        events,
		Notifications: notifications,
		SMS:           sms,
		Email:         email,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initialise order service: %w", err)
	}

	var paymentService services.PaymentService
	if gateway, err := payments.NewRazorpayClient(cfg.Razorpay); err != nil {
		logger.Warn("payment gateway not configured, online checkout disabled", zap.Error(err))
	} else {
		paymentService, err = services.NewPaymentService(services.PaymentServiceDeps{
			Gateway:       gateway,
			GatewayKeyID:  cfg.Razorpay.KeyID,
			Products:      productRepo,
			Orders:        orderService,
			Email:         email,
			Notifications: notifications,
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("initialise payment service: %w", err)
		}
	}

	trackingService, err := services.NewTrackingService(services.TrackingServiceDeps{
		Orders:        orderRepo,
		LegacyOrders:  userRepo,
		Finder:        orderService,
		Events:        events,
		Notifications: notifications,
		SMS:           sms,
		Email:         email,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("initialise tracking service: %w", err)
	}

	salesService, err := services.NewSalesService(services.SalesServiceDeps{
		Orders:       orderRepo,
		LegacyOrders: userRepo,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("initialise sales service: %w", err)
	}

	var authenticator *auth.Authenticator
	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return fmt.Errorf("initialise firebase auth: %w", err)
		}
		adminCheck := auth.AdminCheckerFunc(func(ctx context.Context, identity *auth.Identity) (bool, error) {
			if identity == nil || identity.Email == "" {
				return false, nil
			}
			return userRepo.IsAdminEmail(ctx, identity.Email)
		})
		authenticator = auth.NewAuthenticator(verifier, adminCheck)
	} else {
		logger.Warn("firebase project not configured, API routes are unauthenticated")
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:      logger,
		Orders:      handlers.NewOrdersHandler(orderService, paymentService),
		AdminOrders: handlers.NewAdminOrdersHandler(orderService, trackingService, salesService, notifications),
		Health: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"firestore": func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		}),
		Authenticator: authenticator,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
