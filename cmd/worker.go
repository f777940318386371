package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docuflow/document-workflow/internal/core/events"
	"github.com/docuflow/document-workflow/internal/notifier"
	"github.com/docuflow/document-workflow/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools for various services",
	Long:  `Start and manage worker pools for background services like webhook delivery and event monitoring.`,
}

var notifierWorkerCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Start webhook notifier worker pool",
	Long:  `Start the webhook notifier worker pool that delivers document lifecycle events to downstream systems`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotifierWorker()
	},
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus and log every document lifecycle event it sees`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	apiKey       string
	webhookURL   string
)

func startNotifierWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	// Command line flags override config values
	notifierConfig := notifier.Config{
		WebhookURL:   getStringFlag(webhookURL, config.Notifier.WebhookURL),
		APIKey:       getStringFlag(apiKey, config.Notifier.APIKey),
		HTTPTimeout:  config.Notifier.HTTPTimeout,
		MaxWorkers:   getIntFlag(maxWorkers, config.Notifier.Workers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Notifier.QueueSize),
	}

	log.Info("starting notifier worker",
		"max_workers", notifierConfig.MaxWorkers,
		"job_queue_size", notifierConfig.JobQueueSize,
		"webhook_url", notifierConfig.WebhookURL)

	client := notifier.NewClient(notifierConfig, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("notifier worker is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	log.Info("received signal, shutting down notifier worker", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownDone := make(chan struct{})
	go func() {
		client.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		log.Info("notifier worker pool shutdown complete")
	case <-ctx.Done():
		log.Warn("shutdown timeout reached, forcing exit")
	}
}

func startEventWorker() {
	_, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)

	documentEventTypes := []string{
		events.EventTypeDocumentCreated,
		events.EventTypeDocumentAdvanced,
		events.EventTypeDocumentApproved,
		events.EventTypeDocumentRejected,
		events.EventTypeDocumentCompleted,
	}
	for _, eventType := range documentEventTypes {
		eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			log.Info("received document event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}

	log.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info("event bus is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	log.Info("received signal, shutting down event bus", "signal", sig)
	log.Info("event bus shutdown complete")
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notifierWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notifierWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notifierWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "Webhook API key (overrides config)")
	notifierWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook callback URL (overrides config)")

	workerCmd.AddCommand(notifierWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
