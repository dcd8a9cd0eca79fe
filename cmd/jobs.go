package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/config"
)

var workerMode bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Poll the gateway for pending hosted payments without a webhook",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunReconcileBatch(ctx)
			},
		)
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run expiration-related commands",
}

var expireStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Expire pending payments older than the invoice TTL",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_stale",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireStaleInterval },
			func(s *service.PaymentService, ctx context.Context) error {
				return s.RunExpireStaleBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(expireCmd)
	expireCmd.AddCommand(expireStaleCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.PaymentService, ctx context.Context) error,
) {
	deps, cleanup := mustCreateDependencies()
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workerMode {
		runWorker(ctx, name, intervalResolver(deps.cfg), func(ctx context.Context) error {
			return fn(deps.paymentService, ctx)
		})
		return
	}

	runJob(name, func() error { return fn(deps.paymentService, ctx) })
}

// runWorker runs batch once, then on every tick until ctx is done. A batch in
// flight at shutdown sees its context canceled.
func runWorker(ctx context.Context, name string, interval time.Duration, batch func(ctx context.Context) error) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("job", name).WithField("interval", interval.String()).Info("Worker started")
	runJob(name, func() error { return batch(ctx) })

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return batch(ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
