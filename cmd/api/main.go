package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/outbox"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/repository/memory"
	"github.com/spec-kit/triage-service/internal/service"
	"github.com/spec-kit/triage-service/internal/worker"
)

type stores struct {
	tickets  repository.TicketRepository
	history  repository.TicketHistoryRepository
	messages repository.OutboundMessageRepository
	profiles repository.ProfileRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	st := buildStores(pg, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var broker outbox.Broker = outbox.NewMemoryBroker(logger)
	if redis.Enabled() {
		broker = outbox.NewRedisBroker(redis.Client, logger)
	}

	var classifierClient classifier.Client
	if cfg.Classifier.URL != "" {
		classifierClient = classifier.NewHTTPClient(cfg.Classifier, logger)
	} else {
		logger.Warn("CLASSIFIER_URL not set; tickets stay in Classifying until corrected or called back")
	}

	triage := service.NewTriageService(service.TriageDependencies{
		Tickets:    st.tickets,
		History:    st.history,
		Dispatcher: dispatcher,
		Classifier: classifierClient,
		Runner: service.RunnerConfig{
			Timeout:     cfg.Classifier.Timeout(),
			MaxInFlight: int64(cfg.Classifier.MaxInFlight),
		},
		Logger:  logger,
		Metrics: metrics,
	})
	defer triage.Runner().Close()

	outboxService := service.NewOutboxService(service.OutboxDependencies{
		Tickets:    st.tickets,
		Messages:   st.messages,
		Broker:     broker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notifications := service.NewNotificationService(dispatcher, st.tickets, outboxService, logger, cfg.Notification)
	worker.StartNotificationWorker(notifications)
	defer notifications.Wait()

	authService := service.NewAuthService(cfg.Auth, st.profiles)
	if cfg.Auth.BootstrapEmail != "" && cfg.Auth.BootstrapPassword != "" {
		if _, created, err := authService.EnsureStaff(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPassword, domain.DepartmentAll); err != nil {
			logger.Fatal("failed to bootstrap staff profile", zap.Error(err))
		} else if created {
			logger.Info("bootstrap staff profile created", zap.String("email", cfg.Auth.BootstrapEmail))
		}
	}
	analyticsService := service.NewAnalyticsService(st.tickets, cfg.Workers.StuckAfter(), nil)

	var mailer worker.Mailer = worker.NewLogMailer(logger)
	if cfg.Notification.SendGridAPIKey != "" && cfg.Notification.EmailFrom != "" {
		mailer = worker.NewSendGridMailer(cfg.Notification.SendGridAPIKey, cfg.Notification.EmailFrom)
	}
	delivery := worker.NewOutboxDelivery(st.messages, mailer, cfg.Workers.DeliveryBatchSize, metrics, logger)
	scheduler := worker.NewScheduler(cfg.Workers, triage, delivery, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(triage, cfg.Classifier.CallbackToken, nil),
		Staff:          handlers.NewStaffHandler(authService),
		StaffTickets:   handlers.NewStaffTicketsHandler(triage, outboxService, logger, nil),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService, triage, metrics, nil),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), st.profiles),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
}

// buildStores selects postgres repositories when a DSN is configured and the
// in-memory ones otherwise.
func buildStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return stores{
			tickets:  repository.NewTicketRepository(pool),
			history:  repository.NewTicketHistoryRepository(pool),
			messages: repository.NewOutboundMessageRepository(pool),
			profiles: repository.NewProfileRepository(pool),
		}
	}
	logger.Warn("POSTGRES_DSN not set; using in-memory stores")
	return stores{
		tickets:  memory.NewTicketStore(),
		history:  memory.NewHistoryStore(),
		messages: memory.NewOutboxStore(),
		profiles: memory.NewProfileStore(),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
