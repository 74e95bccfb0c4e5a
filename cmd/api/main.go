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

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/decoriva/api/internal/handlers"
	"github.com/decoriva/api/internal/payments"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/platform/config"
	pfirestore "github.com/decoriva/api/internal/platform/firestore"
	"github.com/decoriva/api/internal/platform/jobs"
	"github.com/decoriva/api/internal/platform/observability"
	"github.com/decoriva/api/internal/platform/secrets"
	"github.com/decoriva/api/internal/repositories"
	firestoreRepo "github.com/decoriva/api/internal/repositories/firestore"
	"github.com/decoriva/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("configuration incomplete", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	serviceRepo, err := firestoreRepo.NewServiceRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise service repository", zap.Error(err))
	}
	bookingRepo, err := firestoreRepo.NewBookingRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise booking repository", zap.Error(err))
	}
	requestRepo, err := firestoreRepo.NewDecoratorRequestRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise decorator request repository", zap.Error(err))
	}

	accessControl, err := services.NewAccessControl(userRepo)
	if err != nil {
		logger.Fatal("failed to initialise access control", zap.Error(err))
	}

	pricing, err := services.NewPricingCalculator(cfg.Pricing.CouponRates)
	if err != nil {
		logger.Fatal("failed to initialise pricing calculator", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: observability.EventLogger(logger.Named("payments")),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
	}

	var eventPublisher services.BookingEventPublisher
	var eventTopic *pubsub.Topic
	if strings.TrimSpace(cfg.Jobs.EventTopic) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Jobs.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		eventTopic = pubsubClient.Topic(cfg.Jobs.EventTopic)
		defer eventTopic.Stop()

		eventPublisher, err = jobs.NewPubSubBookingEventPublisher(eventTopic)
		if err != nil {
			logger.Fatal("failed to initialise booking event publisher", zap.Error(err))
		}
	} else {
		logger.Info("booking event topic not configured; events disabled")
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:    userRepo,
		Services: serviceRepo,
		Bookings: bookingRepo,
		Requests: requestRepo,
		Access:   accessControl,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("users")),
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Services: serviceRepo,
		Access:   accessControl,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	bookingService, err := services.NewBookingService(services.BookingServiceDeps{
		Bookings: bookingRepo,
		Services: serviceRepo,
		Access:   accessControl,
		Clock:    time.Now,
		Logger:   observability.EventLogger(logger.Named("bookings")),
	})
	if err != nil {
		logger.Fatal("failed to initialise booking service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Bookings:  bookingRepo,
		Provider:  stripeProvider,
		Pricing:   pricing,
		Access:    accessControl,
		Publisher: eventPublisher,
		Currency:  cfg.PSP.Currency,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("payments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	requestService, err := services.NewDecoratorRequestService(services.DecoratorRequestServiceDeps{
		Requests:  requestRepo,
		Users:     userRepo,
		Access:    accessControl,
		Publisher: eventPublisher,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("decorator_requests")),
	})
	if err != nil {
		logger.Fatal("failed to initialise decorator request service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreClient, eventTopic)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(traceProjectID(cfg)),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithUserRoutes(handlers.NewUserHandlers(authenticator, userService).Routes),
		handlers.WithCatalogRoutes(handlers.NewCatalogHandlers(authenticator, catalogService).Routes),
		handlers.WithBookingRoutes(handlers.NewBookingHandlers(authenticator, bookingService).Routes),
		handlers.WithPaymentRoutes(handlers.NewPaymentHandlers(authenticator, paymentService).Routes),
		handlers.WithDecoratorRequestRoutes(handlers.NewDecoratorRequestHandlers(authenticator, requestService).Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("decoriva api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("SECRET_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("FIREBASE_PROJECT_ID")
	}
	if defaultProject == "" {
		defaultProject = lookup("GOOGLE_CLOUD_PROJECT")
	}
	fallbackPath := lookup("SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func newSystemService(client *firestore.Client, topic *pubsub.Topic) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{Health: repo})
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
