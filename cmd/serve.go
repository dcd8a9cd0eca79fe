package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/controller"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
	shopgrpc "github.com/vibast-solutions/ms-go-course-shop/app/grpc"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/telegram"
	"github.com/vibast-solutions/ms-go-course-shop/app/types"
	"github.com/vibast-solutions/ms-go-course-shop/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot, HTTP and gRPC servers",
	Long:  "Start the Telegram bot together with the HTTP (Echo) server for gateway webhooks and the operator gRPC server.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	deps, cleanup := mustCreateDependencies()
	defer cleanup()
	cfg := deps.cfg

	handler := telegram.NewHandler(deps.paymentService, deps.catalogService, deps.bot, cfg.Telegram.ProviderToken)
	telegram.Register(deps.bot, handler, telegram.ThrottleMiddleware(deps.throttler, factory.NewModuleLogger("telegram-throttle")))

	paymentController := controller.NewPaymentController(deps.paymentService)
	operatorServer := shopgrpc.NewServer(deps.paymentService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	var botWebhook http.Handler
	if cfg.Telegram.Mode == config.BotModeWebhook {
		botWebhook = deps.bot.WebhookHandler()
	}

	e := setupHTTPServer(paymentController, echoInternalAuthMiddleware, cfg.App.ServiceName, cfg.Telegram.WebhookPath, botWebhook)
	grpcSrv, lis := setupGRPCServer(cfg, operatorServer, grpcInternalAuthMiddleware, cfg.App.ServiceName)

	sweeper := setupExpirySweep(cfg, deps.paymentService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	sweeper.Start()
	go startBot(ctx, deps.bot, cfg.Telegram)

	<-ctx.Done()
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-sweeper.Stop().Done()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func startBot(ctx context.Context, b *bot.Bot, cfg config.TelegramConfig) {
	if cfg.Mode != config.BotModeWebhook {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			logrus.WithError(err).Warn("Failed to clear Telegram webhook")
		}
		logrus.Info("Starting Telegram bot in polling mode")
		b.Start(ctx)
		return
	}

	if cfg.WebhookURL != "" {
		_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         cfg.WebhookURL,
			SecretToken: cfg.WebhookSecretToken,
		})
		if err != nil {
			logrus.WithError(err).Fatal("Failed to register Telegram webhook")
		}
	}
	logrus.WithField("path", cfg.WebhookPath).Info("Starting Telegram bot in webhook mode")
	b.StartWebhook(ctx)
}

func setupHTTPServer(
	paymentController *controller.PaymentController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
	botWebhookPath string,
	botWebhook http.Handler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	e.GET("/health", paymentController.Health)

	webhooks := e.Group("/webhooks/providers")
	webhooks.POST("/:provider", paymentController.ProviderNotification)

	if botWebhook != nil {
		e.POST(botWebhookPath, echo.WrapHandler(botWebhook))
	}

	internal := e.Group("/internal", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))
	internal.GET("/payments/:id", paymentController.GetPayment)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	operatorServer *shopgrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			shopgrpc.RecoveryInterceptor(),
			shopgrpc.RequestIDInterceptor(),
			shopgrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	types.RegisterOperatorServiceServer(grpcSrv, operatorServer)

	return grpcSrv, lis
}

// setupExpirySweep runs the stale pending sweep in-process so payments whose
// timers were lost on restart still expire.
func setupExpirySweep(cfg *config.Config, paymentService *service.PaymentService) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.Jobs.ExpireSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		runJob("expire_sweep", func() error { return paymentService.RunExpireStaleBatch(ctx) })
	})
	if err != nil {
		logrus.WithError(err).WithField("schedule", cfg.Jobs.ExpireSweepSchedule).Fatal("Invalid expiry sweep schedule")
	}
	return c
}
