package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/bus"
	"smsbridge/pkg/carrier"
	"smsbridge/pkg/channel/nexmo"
	"smsbridge/pkg/config"
	"smsbridge/pkg/gateway"
	"smsbridge/pkg/logger"
	"smsbridge/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SMS gateway",
	Long:  "Connects the Nexmo adapter, listens for inbound webhooks, prints received activities as JSON lines and serves the health and send API.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		mb := bus.NewMessageBus(cfg.Webhook.QueueSize)
		defer mb.Close()

		adapter, err := buildAdapter(cfg, mb, true, log)
		if err != nil {
			log.Error("Adapter configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg.Gateway, adapter, mb, printActivities(cmd.OutOrStdout()), log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started", "service_id", adapter.ServiceID(), "webhook", cfg.Webhook.Enabled)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildAdapter wires the carrier client and, when listen is set and the
// webhook is enabled, the inbound listener into a Nexmo adapter.
func buildAdapter(cfg *config.Config, mb *bus.MessageBus, listen bool, log *slog.Logger) (*nexmo.Adapter, error) {
	opts := nexmo.Options{
		ID:            cfg.Adapter.ID,
		APIKey:        cfg.Nexmo.APIKey,
		APISecret:     cfg.Nexmo.APISecret,
		From:          cfg.Nexmo.From,
		ClientFactory: carrierFactory(cfg.Nexmo, log),
		Bus:           mb,
		Logger:        log,
	}

	if listen && cfg.Webhook.Enabled {
		listener, err := webhook.NewServer(cfg.Webhook, mb, log)
		if err != nil {
			return nil, fmt.Errorf("configure webhook listener: %w", err)
		}
		opts.Listener = listener
	}

	return nexmo.NewAdapter(opts)
}

func carrierFactory(cfg config.NexmoConfig, log *slog.Logger) nexmo.ClientFactory {
	return func(apiKey, apiSecret string) (nexmo.Client, error) {
		return carrier.NewClient(apiKey, apiSecret,
			carrier.WithBaseURL(cfg.BaseURL),
			carrier.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds)*time.Second),
			carrier.WithLogger(log),
		)
	}
}

// printActivities writes each inbound activity to out as one JSON line.
func printActivities(out io.Writer) gateway.Handler {
	encoder := json.NewEncoder(out)
	return func(_ context.Context, doc activity.Activity) error {
		return encoder.Encode(doc)
	}
}
