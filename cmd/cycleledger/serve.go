package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"CycleLedger/internal/api"
	"CycleLedger/internal/config"
	"CycleLedger/internal/logging"
	"CycleLedger/internal/notifier"
	"CycleLedger/internal/scheduler"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduled tasks and Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.Component(a.log, "main")
	log.Info("CycleLedger starting...")

	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logging.Component(a.log, "telegram"))
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, a.fund, a.oracle, sender, logging.Component(a.log, "scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.PrintCron, cfg.Schedule.RefreshCron, cfg.Schedule.SummaryCron, cfg.Schedule.AutoPrint); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("Telegram polling started")
	}

	accessLog := a.log.WriterLevel(logrus.InfoLevel)
	defer accessLog.Close()
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Wrap(api.NewRouter(a.fund, logging.Component(a.log, "api")), accessLog),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	log.Info("CycleLedger stopped")
	return nil
}
