package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/reltrace/pkg/cli/config"
	controller "github.com/m-mizutani/reltrace/pkg/controller/http"
	"github.com/m-mizutani/reltrace/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg      config.Server
		tf             timelineFlags
		refetchTimeout time.Duration
	)

	flags := slices.Concat(serverCfg.Flags(), tf.flags(), []cli.Flag{
		&cli.DurationFlag{
			Name:        "refetch-timeout",
			Usage:       "Timeout of the background refetch after a webhook",
			Value:       5 * time.Minute,
			Destination: &refetchTimeout,
			Sources:     cli.EnvVars("RELTRACE_REFETCH_TIMEOUT"),
		},
	})

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting reltrace server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("github", tf.github),
			)

			fileCfg, err := tf.file.Load()
			if err != nil {
				return err
			}
			opts, err := tf.fetch.Options()
			if err != nil {
				return err
			}

			_, timelineUC, cleanup, err := tf.build(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			webhookUC := usecase.NewWebhook(timelineUC,
				usecase.WithRefetch(opts),
				usecase.WithRefetchTimeout(refetchTimeout),
			)
			changelogUC := usecase.NewChangelog(timelineUC,
				usecase.WithPackageRepositories(fileCfg.Packages),
				usecase.WithDefaultOwner(fileCfg.Owner),
				usecase.WithFetchOptions(opts),
			)

			server, err := controller.NewServer(
				ctx,
				webhookUC,
				timelineUC,
				changelogUC,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(serverCfg.WebhookSecret),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
