package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/api"
	"github.com/Domenick1991/studiobooking/config"
	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/availability"
	"github.com/Domenick1991/studiobooking/internal/bootstrap"
	"github.com/Domenick1991/studiobooking/internal/cache"
	"github.com/Domenick1991/studiobooking/internal/events"
	"github.com/Domenick1991/studiobooking/internal/gateway"
	"github.com/Domenick1991/studiobooking/internal/kafka"
	"github.com/Domenick1991/studiobooking/internal/logger"
	"github.com/Domenick1991/studiobooking/internal/repository"
	"github.com/Domenick1991/studiobooking/internal/service/booking"
	"github.com/Domenick1991/studiobooking/internal/service/catalog"
	"github.com/Domenick1991/studiobooking/internal/service/payment"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		lg.Fatal("migrate schema", zap.Error(err))
	}

	loc, err := cfg.Studio.Location()
	if err != nil {
		lg.Fatal("studio timezone", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.CatalogCacheTTLSeconds)*time.Second)

	bookingRepo := repository.NewBookingRepository(pool)
	serviceRepo := repository.NewServiceRepository(pool)
	ruleRepo := repository.NewPricingRuleRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	authorizer := auth.NewAuthorizer(userRepo)
	hub := events.NewHub(events.WithTopic(cfg.Kafka.BookingTopic), events.WithLogger(lg))
	defer hub.Close()

	checks := map[string]bootstrap.HealthCheck{
		"postgres": pool.Ping,
		"redis":    redisCache.Ping,
	}

	// Without brokers the hub receives booking events in process.
	var producer booking.Producer = hub
	if cfg.Kafka.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer kafkaProducer.Close()
		producer = kafkaProducer
		checks["kafka"] = kafkaProducer.CheckConnection

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, streamGroupID(cfg.Kafka.GroupID), cfg.Kafka.BookingTopic, lg)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, hub.Handle); err != nil {
				lg.Error("booking stream consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Warn("kafka is not configured, notifications are not delivered to the worker")
	}

	checker := availability.NewChecker(availability.StudioHours{
		OpenHour:  cfg.Studio.OpenHour,
		CloseHour: cfg.Studio.CloseHour,
		Location:  loc,
	})

	bookingService := booking.NewBookingService(
		bookingRepo,
		serviceRepo,
		ruleRepo,
		authorizer,
		checker,
		booking.WithProducer(producer, cfg.Kafka.BookingTopic),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithLocker(redisCache, time.Duration(cfg.Booking.LockTTLSeconds)*time.Second),
		booking.WithPublishTimeout(time.Duration(cfg.Booking.PublishTimeoutSeconds)*time.Second),
		booking.WithLogger(lg),
	)

	stripeGateway, err := gateway.NewStripeGateway(cfg.Payment.StripeSecretKey)
	if err != nil {
		lg.Fatal("payment gateway", zap.Error(err))
	}
	paymentService := payment.NewPaymentService(bookingService, authorizer, stripeGateway,
		payment.WithCurrency(cfg.Payment.Currency),
		payment.WithGatewayTimeout(cfg.Payment.GatewayTimeout()),
		payment.WithLogger(lg),
	)

	catalogService := catalog.NewCatalogService(serviceRepo, ruleRepo, authorizer,
		catalog.WithCache(redisCache),
		catalog.WithLogger(lg),
	)
	if err := seedCatalog(ctx, catalogService, cfg.Booking.CatalogSeedPath, lg); err != nil {
		lg.Fatal("seed catalogue", zap.Error(err))
	}

	router, err := api.NewRouter(lg, api.NewAuthenticator(auth.NewVerifier(cfg.Auth.JWTSecret), userRepo, lg), cfg.HTTP, api.Handlers{
		Bookings: api.NewBookingHandler(bookingService, hub, authorizer),
		Payments: api.NewPaymentHandler(paymentService),
		Catalog:  api.NewCatalogHandler(catalogService),
		Admin:    api.NewAdminHandler(bookingService),
	})
	if err != nil {
		lg.Fatal("init router", zap.Error(err))
	}
	bootstrap.Mount(router, cfg.HTTP, checks)

	if err := bootstrap.Run(ctx, cfg.HTTP, router, lg); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
}

func seedCatalog(ctx context.Context, svc *catalog.CatalogService, path string, lg *zap.Logger) error {
	if path == "" {
		return nil
	}
	seed, err := catalog.LoadSeed(path)
	if errors.Is(err, fs.ErrNotExist) {
		lg.Warn("catalogue seed file not found", zap.String("path", path))
		return nil
	}
	if err != nil {
		return err
	}
	return svc.ApplySeed(ctx, seed)
}

// streamGroupID gives every API instance its own consumer group so each one
// sees all booking events for its live subscribers.
func streamGroupID(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return base + "-stream-" + host
}
