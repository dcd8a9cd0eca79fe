package config

import (
	"os"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s failed: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	_ = os.Unsetenv(key)
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		}
	})
}

func setRequired(t *testing.T) {
	t.Helper()
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/course_shop?parseTime=true")
	setEnv(t, "TELEGRAM_BOT_TOKEN", "123456:test-token")
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	unsetEnv(t, "MYSQL_DSN")
	setEnv(t, "TELEGRAM_BOT_TOKEN", "123456:test-token")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing MYSQL_DSN")
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	setEnv(t, "MYSQL_DSN", "root:root@tcp(localhost:3306)/course_shop?parseTime=true")
	unsetEnv(t, "TELEGRAM_BOT_TOKEN")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, key := range []string{
		"APP_SERVICE_NAME", "HTTP_PORT", "GRPC_PORT", "TELEGRAM_MODE", "TELEGRAM_ADMIN_IDS",
		"EVENTS_BROKER", "PAYMENTS_CURRENCY", "PAYMENTS_INVOICE_TTL_SECONDS", "PAYMENTS_THROTTLE_WINDOW_MS",
		"PAYMENTS_JOB_BATCH_SIZE", "PAYMENTS_HISTORY_LIMIT", "YOOKASSA_BASE_URL", "YOOKASSA_VERIFY_NOTIFICATIONS",
		"JOBS_EXPIRE_SWEEP_SCHEDULE", "REDIS_ADDR",
	} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "course-shop-bot" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8080" || cfg.GRPC.Port != "9090" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.Telegram.Mode != BotModePolling {
		t.Fatalf("unexpected bot mode: %s", cfg.Telegram.Mode)
	}
	if len(cfg.Telegram.AdminIDs) != 0 {
		t.Fatalf("expected no admins, got %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Events.Broker != EventsBrokerNone {
		t.Fatalf("unexpected broker: %s", cfg.Events.Broker)
	}
	if cfg.Payments.Currency != "RUB" {
		t.Fatalf("unexpected currency: %s", cfg.Payments.Currency)
	}
	if cfg.Payments.InvoiceTTL != 600*time.Second {
		t.Fatalf("unexpected invoice ttl: %v", cfg.Payments.InvoiceTTL)
	}
	if cfg.Payments.ThrottleWindow != time.Second {
		t.Fatalf("unexpected throttle window: %v", cfg.Payments.ThrottleWindow)
	}
	if cfg.Payments.JobBatchSize != 100 || cfg.Payments.HistoryLimit != 20 {
		t.Fatalf("unexpected payments limits: %+v", cfg.Payments)
	}
	if cfg.YooKassa.BaseURL != "https://api.yookassa.ru/v3" || !cfg.YooKassa.VerifyNotifications {
		t.Fatalf("unexpected yookassa config: %+v", cfg.YooKassa)
	}
	if cfg.Jobs.ExpireSweepSchedule != "@every 1m" {
		t.Fatalf("unexpected sweep schedule: %s", cfg.Jobs.ExpireSweepSchedule)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("expected redis to be disabled, got %s", cfg.Redis.Addr)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	setEnv(t, "APP_SERVICE_NAME", "course-shop-test")
	setEnv(t, "HTTP_PORT", "8181")
	setEnv(t, "GRPC_PORT", "9191")
	setEnv(t, "MYSQL_MAX_OPEN_CONNS", "20")
	setEnv(t, "MYSQL_MAX_IDLE_CONNS", "8")
	setEnv(t, "MYSQL_CONN_MAX_LIFETIME_MINUTES", "40")
	setEnv(t, "TELEGRAM_MODE", "WEBHOOK")
	setEnv(t, "TELEGRAM_ADMIN_IDS", "111, 222,,333")
	setEnv(t, "EVENTS_BROKER", "nats")
	setEnv(t, "PAYMENTS_CURRENCY", "usd")
	setEnv(t, "PAYMENTS_INVOICE_TTL_SECONDS", "90")
	setEnv(t, "PAYMENTS_THROTTLE_WINDOW_MS", "250")
	setEnv(t, "PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", "13")
	setEnv(t, "PAYMENTS_JOB_BATCH_SIZE", "99")
	setEnv(t, "YOOKASSA_VERIFY_NOTIFICATIONS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.App.ServiceName != "course-shop-test" {
		t.Fatalf("unexpected app service name: %s", cfg.App.ServiceName)
	}
	if cfg.HTTP.Port != "8181" || cfg.GRPC.Port != "9191" {
		t.Fatalf("unexpected ports: http=%s grpc=%s", cfg.HTTP.Port, cfg.GRPC.Port)
	}
	if cfg.MySQL.MaxOpenConns != 20 || cfg.MySQL.MaxIdleConns != 8 {
		t.Fatalf("unexpected mysql pool config: %+v", cfg.MySQL)
	}
	if cfg.MySQL.ConnMaxLifetime != 40*time.Minute {
		t.Fatalf("unexpected mysql lifetime: %v", cfg.MySQL.ConnMaxLifetime)
	}
	if cfg.Telegram.Mode != BotModeWebhook {
		t.Fatalf("unexpected bot mode: %s", cfg.Telegram.Mode)
	}
	if len(cfg.Telegram.AdminIDs) != 3 || cfg.Telegram.AdminIDs[2] != 333 {
		t.Fatalf("unexpected admin ids: %v", cfg.Telegram.AdminIDs)
	}
	if cfg.Events.Broker != EventsBrokerNATS {
		t.Fatalf("unexpected broker: %s", cfg.Events.Broker)
	}
	if cfg.Payments.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", cfg.Payments.Currency)
	}
	if cfg.Payments.InvoiceTTL != 90*time.Second {
		t.Fatalf("unexpected invoice ttl: %v", cfg.Payments.InvoiceTTL)
	}
	if cfg.Payments.ThrottleWindow != 250*time.Millisecond {
		t.Fatalf("unexpected throttle window: %v", cfg.Payments.ThrottleWindow)
	}
	if cfg.Payments.ReconcileStaleAfter != 13*time.Minute {
		t.Fatalf("unexpected reconcile stale after: %v", cfg.Payments.ReconcileStaleAfter)
	}
	if cfg.Payments.JobBatchSize != 99 {
		t.Fatalf("unexpected job batch size: %d", cfg.Payments.JobBatchSize)
	}
	if cfg.YooKassa.VerifyNotifications {
		t.Fatal("expected notification verification to be disabled")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"TELEGRAM_MODE":      "longpoll",
		"EVENTS_BROKER":      "kafka",
		"TELEGRAM_ADMIN_IDS": "111,alice",
	}
	for key, value := range cases {
		key, value := key, value
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			setEnv(t, key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}
