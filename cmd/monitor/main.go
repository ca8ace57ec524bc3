package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"upload_monitor/internal/config"
	"upload_monitor/internal/fetcher"
	"upload_monitor/internal/ledger"
	"upload_monitor/internal/notify"
	"upload_monitor/internal/scheduler"
	"upload_monitor/internal/service"
	"upload_monitor/internal/source/bilibili"
	"upload_monitor/internal/source/youtube"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", false, "keep running and repeat on an interval")
	watchInterval := flag.Duration("interval", time.Hour, "interval between runs in watch mode")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	bilibiliSource := bilibili.New(bilibili.Config{
		BaseURL:  cfg.Fetch.BilibiliURL,
		PageSize: cfg.Fetch.PageSize,
		Timeout:  cfg.Fetch.Timeout,
	}, logger)

	youtubeSource := youtube.New(youtube.Config{
		FeedURL:  cfg.Fetch.YouTubeURL,
		PageSize: cfg.Fetch.PageSize,
		Timeout:  cfg.Fetch.Timeout,
	}, logger)

	fetch := fetcher.New(
		[]fetcher.Source{bilibiliSource, youtubeSource},
		fetcher.Config{
			Concurrency: cfg.Fetch.Concurrency,
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BackoffBase: cfg.Fetch.BackoffBase,
			Cooldown:    cfg.Fetch.Cooldown,
		},
		logger,
	)

	ledg := ledger.Load(cfg.Ledger.Path, logger)

	notifiers := buildNotifiers(cfg, logger)
	if len(notifiers) == 0 {
		// Documented behavior: without notifier credentials the run still
		// fetches and dedupes, and delivery is reported as failed.
		logger.Warn("no notifier configured, runs will not deliver")
	}
	defer func() {
		for _, n := range notifiers {
			if c, ok := n.(*notify.AMQP); ok {
				_ = c.Close()
			}
		}
	}()

	runService := service.NewRunService(
		fetch,
		ledg,
		notifiers,
		cfg.AccountList(),
		cfg.Keywords,
		cfg.Ledger.Retention,
		cfg.Location(),
		logger,
	)

	if *watch {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		sched := scheduler.New(runService, cfg.ResolveRun, *watchInterval, logger)
		if err := sched.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("scheduler error", "error", err)
		}
		return
	}

	// One-shot mode: a completed run exits 0 even when delivery failed
	// or nothing new was found; only config resolution failures above
	// exit nonzero.
	if _, err := runService.Run(context.Background(), cfg.ResolveRun(time.Now())); err != nil {
		logger.Error("run finished with persistence error", "error", err)
	}
}

// buildNotifiers wires every transport the configuration has credentials
// for. A broker that refuses the connection is logged and skipped rather
// than aborting the run.
func buildNotifiers(cfg *config.Config, logger *slog.Logger) []service.Notifier {
	var notifiers []service.Notifier

	if cfg.Notify.FeishuWebhook != "" {
		preamble := "Creator upload watch: " + strings.Join(cfg.Keywords, ", ")
		notifiers = append(notifiers, notify.NewFeishu(cfg.Notify.FeishuWebhook, preamble, cfg.Notify.Timeout, logger))
	}

	if cfg.Notify.SMTP.Enabled() {
		notifiers = append(notifiers, notify.NewSMTP(notify.SMTPSettings{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			Username: cfg.Notify.SMTP.Username,
			Password: cfg.Notify.SMTP.Password,
			From:     cfg.Notify.SMTP.From,
			To:       cfg.Notify.SMTP.To,
		}, logger))
	}

	if cfg.Notify.AMQP.URL != "" {
		pub, err := notify.NewAMQP(notify.AMQPSettings{
			URL:        cfg.Notify.AMQP.URL,
			Exchange:   cfg.Notify.AMQP.Exchange,
			RoutingKey: cfg.Notify.AMQP.RoutingKey,
			QueueName:  cfg.Notify.AMQP.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq, transport disabled", "error", err)
		} else {
			notifiers = append(notifiers, pub)
		}
	}

	return notifiers
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
