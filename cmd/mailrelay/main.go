package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/adpulse/internal/app"
	"github.com/charlesng35/adpulse/internal/mailrelay"
	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) (err error) {
	fs := flag.NewFlagSet("adpulse-mailrelay", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath, metricsAddr string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "Optional listen address for /metrics, e.g. :9102")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort
	log := logger.WithModule("mailrelay")

	smtp, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise smtp mailer: %w", err)
	}

	reader, err := mailrelay.NewReader(cfg.Email.KafkaSettings())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, reader.Close()) }()

	module, err := monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(module)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", module.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, server.Shutdown(shutdownCtx))
		}()
	}

	relay, err := mailrelay.New(reader, mail.Instrument(smtp, "relay"),
		mailrelay.WithMaxAttempts(cfg.Email.Kafka.MaxAttempts),
	)
	if err != nil {
		return err
	}

	log.Info("consuming mail queue",
		zap.Strings("brokers", cfg.Email.KafkaSettings().Brokers),
		zap.String("topic", cfg.Email.Kafka.Topic),
	)
	return relay.Run(ctx)
}
