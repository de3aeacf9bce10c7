package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/config"
	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/availability"
	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/email"
	"github.com/Domenick1991/studiobooking/internal/kafka"
	"github.com/Domenick1991/studiobooking/internal/logger"
	"github.com/Domenick1991/studiobooking/internal/repository"
	"github.com/Domenick1991/studiobooking/internal/service/booking"
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

	loc, err := cfg.Studio.Location()
	if err != nil {
		lg.Fatal("studio timezone", zap.Error(err))
	}

	var opts []booking.BookingServiceOption
	opts = append(opts,
		booking.WithLogger(lg),
		booking.WithPublishTimeout(time.Duration(cfg.Booking.PublishTimeoutSeconds)*time.Second),
	)
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer producer.Close()
		opts = append(opts,
			booking.WithProducer(producer, cfg.Kafka.BookingTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	bookingService := booking.NewBookingService(
		repository.NewBookingRepository(pool),
		repository.NewServiceRepository(pool),
		repository.NewPricingRuleRepository(pool),
		auth.NewAuthorizer(repository.NewUserRepository(pool)),
		availability.NewChecker(availability.StudioHours{
			OpenHour:  cfg.Studio.OpenHour,
			CloseHour: cfg.Studio.CloseHour,
			Location:  loc,
		}),
		opts...,
	)

	sender, err := email.NewSMTPSender(cfg.SMTP, lg)
	if err != nil {
		lg.Fatal("init mailer", zap.Error(err))
	}

	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, lg)
		defer consumer.Close()

		go func() {
			// A failed delivery is logged; it must not stall the rest of the queue.
			err := consumer.Consume(ctx, func(ctx context.Context, event domain.BookingEvent) error {
				if err := sender.Send(ctx, event); err != nil {
					lg.Error("notification not delivered", zap.String("booking_id", event.BookingID), zap.Error(err))
				}
				return nil
			})
			if err != nil {
				lg.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	} else {
		lg.Warn("kafka is not configured, notifications are disabled")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		lg.Fatal("init scheduler", zap.Error(err))
	}

	interval := time.Duration(cfg.Worker.OverlapScanMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			overlaps, err := bookingService.DetectOverlaps(ctx)
			if err != nil {
				lg.Error("overlap scan failed", zap.Error(err))
				return
			}
			lg.Info("overlap scan finished", zap.Int("overlaps", len(overlaps)))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		lg.Fatal("schedule overlap scan", zap.Error(err))
	}

	scheduler.Start()
	lg.Info("worker started", zap.Duration("overlap_scan_interval", interval))

	<-ctx.Done()
	lg.Info("shutting down worker")
	if err := scheduler.Shutdown(); err != nil {
		lg.Error("scheduler shutdown", zap.Error(err))
	}
}
