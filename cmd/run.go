package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot on Telegram",
	Long:  `Connects to the Telegram Bot API with long polling and serves customers and the operator chat. The read-only admin API starts too when http.enabled is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig((*config.Config).ValidateTelegram)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		tg, err := bots.NewTelegram(bots.TelegramConfig{
			Token:       cfg.Telegram.Token,
			PollTimeout: cfg.Telegram.PollTimeout,
			Debug:       cfg.Telegram.Debug,
		}, logger.Named("telegram"))
		if err != nil {
			return err
		}

		a, err := newApp(cfg, tg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		gateway := bots.NewGateway(a.engine, logger.Named("gateway"))
		g.Go(func() error {
			defer stop()
			return tg.Run(gctx, gateway)
		})

		if srv := a.httpServer(); srv != nil {
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		logger.Info("supportbot started",
			zap.String("version", Version),
			zap.String("database", cfg.DatabasePath),
			zap.Bool("operator_online", a.registry.OperatorOnline()),
			zap.Bool("http", cfg.HTTP.Enabled))

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("supportbot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
