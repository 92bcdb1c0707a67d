package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"freezefit/internal/notifier"
	"freezefit/pkg/app"
	"freezefit/pkg/config"
	"freezefit/pkg/kafka"
	kafka_config "freezefit/pkg/kafka/config"
	kafka_middleware "freezefit/pkg/kafka/middleware"
	"freezefit/pkg/mailer"
)

const ServiceName = "freezefit-notifier"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	templates, err := mailer.NewTemplates(cfg.FrontendBaseURL)
	if err != nil {
		cfg.Log.Fatal("Failed to load mail templates", "error", err)
	}

	var m mailer.Mailer
	if cfg.SMTPHost != "" {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, cfg.Log)
	} else {
		m = mailer.NewLogMailer(cfg.Log)
		cfg.Log.Warn("SMTP_HOST not set, mails are logged only")
	}

	n := notifier.New(templates, m, cfg.Log)

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.EventsTopic, cfg.NotifierGroupID, cfg.EventsDLQTopic, n.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	}()
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.Logging(cfg.Log, kafka_middleware.DirectionConsume))
		consumer.Use(kafka_middleware.Metrics(kafka_middleware.DirectionConsume))
	}

	ops := app.NewOpsServer(cfg)
	ops.Start()
	defer ops.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Kafka consumer stopped with error", "error", err)
	}
	cfg.Log.Info("Notifier stopped")
}
