package cmd

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/go-telegram/bot"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/events"
	"github.com/vibast-solutions/ms-go-course-shop/app/provider"
	"github.com/vibast-solutions/ms-go-course-shop/app/repository"
	"github.com/vibast-solutions/ms-go-course-shop/app/scheduler"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/telegram"
	"github.com/vibast-solutions/ms-go-course-shop/app/throttle"
	"github.com/vibast-solutions/ms-go-course-shop/config"
)

type dependencies struct {
	cfg            *config.Config
	bot            *bot.Bot
	paymentService *service.PaymentService
	catalogService *service.CatalogService
	throttler      throttle.Throttler
}

func mustCreateDependencies() (*dependencies, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	b, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to create Telegram bot")
	}

	publisher := mustCreatePublisher(cfg.Events)
	redisClient, throttler := createThrottler(cfg)

	providerRegistry := provider.NewRegistry()
	if cfg.YooKassa.ShopID != "" && cfg.YooKassa.SecretKey != "" {
		providerRegistry = provider.NewRegistry(provider.NewYooKassaProvider(provider.YooKassaConfig{
			ShopID:              cfg.YooKassa.ShopID,
			SecretKey:           cfg.YooKassa.SecretKey,
			BaseURL:             cfg.YooKassa.BaseURL,
			ReturnURL:           cfg.YooKassa.ReturnURL,
			HTTPTimeout:         cfg.YooKassa.HTTPTimeout,
			VerifyNotifications: cfg.YooKassa.VerifyNotifications,
		}))
	} else {
		logrus.Warn("YooKassa credentials are not configured, hosted payments are disabled")
	}

	courseRepo := repository.NewCourseRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)

	expiry := scheduler.NewTimerScheduler()
	paymentService := service.NewPaymentService(
		repository.NewPaymentRepository(db),
		entitlementRepo,
		repository.NewPaymentEventRepository(db),
		courseRepo,
		providerRegistry,
		expiry,
		telegram.NewNotifier(b, cfg.Telegram.AdminIDs),
		publisher,
		cfg.Payments,
	)
	catalogService := service.NewCatalogService(courseRepo, entitlementRepo, repository.NewUserRepository(db), cfg.Payments)

	cleanup := func() {
		if pending := expiry.Pending(); pending > 0 {
			logrus.WithField("pending_timers", pending).Info("Dropping expiry timers, the sweep will resolve their payments")
		}
		expiry.Stop()
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close event publisher")
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return &dependencies{
		cfg:            cfg,
		bot:            b,
		paymentService: paymentService,
		catalogService: catalogService,
		throttler:      throttler,
	}, cleanup
}

func mustCreatePublisher(cfg config.EventsConfig) events.Publisher {
	var (
		publisher events.Publisher
		err       error
	)

	switch cfg.Broker {
	case config.EventsBrokerNATS:
		publisher, err = events.DialNATS(cfg.NATSURL, cfg.NATSSubject)
	case config.EventsBrokerAMQP:
		publisher, err = events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return events.NopPublisher{}
	}
	if err != nil {
		logrus.WithError(err).WithField("broker", cfg.Broker).Fatal("Failed to connect to event broker")
	}

	logrus.WithField("broker", cfg.Broker).Info("Publishing payment events")
	return events.WithTimeout(publisher, cfg.PublishTimeout)
}

// createThrottler uses Redis when it is configured and reachable, process
// memory otherwise.
func createThrottler(cfg *config.Config) (*redis.Client, throttle.Throttler) {
	if cfg.Redis.Addr == "" {
		return nil, throttle.NewMemoryThrottler(cfg.Payments.ThrottleWindow)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unavailable, using in-memory throttling")
		_ = client.Close()
		return nil, throttle.NewMemoryThrottler(cfg.Payments.ThrottleWindow)
	}

	return client, throttle.NewRedisThrottler(client, cfg.Payments.ThrottleWindow)
}
