package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postrelay/config"
	"postrelay/encoder"
	"postrelay/failures"
	"postrelay/job"
	"postrelay/logger"
	"postrelay/routes"
	"postrelay/success"
	"postrelay/taskqueue"
)

const (
	recordRetention = 30 * 24 * time.Hour
	stateRetention  = 24 * time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook receiver and the publishing worker",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting postrelay server initialization")

	closeStores, err := openStores()
	if err != nil {
		return err
	}
	defer closeStores()

	q, err := taskqueue.Open(config.GetQueueDBPath(), settings.QueueCapacity)
	if err != nil {
		return err
	}
	defer q.Close()
	logger.Infof("Queue opened with %d deliveries carried over", q.Len())

	encoder.DetectImageMagick()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupRoutine(ctx)

	worker := &job.Worker{
		Queue:        q,
		Pipeline:     job.NewProcessor(settings),
		MaxRetries:   settings.MaxRetries,
		RetryBackoff: settings.RetryBackoff,
	}
	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()

	app := &routes.App{
		Settings: settings,
		Queue:    q,
		Profiles: job.StoredProfiles(settings),
		ServeDir: config.GetDirectServeBaseDir(),
	}
	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           routes.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("postrelay listening on port %s", settings.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err = <-serveErr:
		logger.Errorf("Server failed: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	<-workerDone
	logger.Info("postrelay stopped")
	return err
}

// cleanupRoutine periodically cleans up old ledger records and job states
func cleanupRoutine(ctx context.Context) {
	logger.Info("Cleanup routine started - will run every 24 hours")
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			logger.Info("Running scheduled cleanup of old records")

			if n, err := success.CleanupOldRecords(recordRetention); err != nil {
				logger.Errorf("Failed to cleanup old success records: %v", err)
			} else {
				logger.Infof("Removed %d success records older than %v", n, recordRetention)
			}

			if n, err := failures.CleanupOldRecords(recordRetention); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else {
				logger.Infof("Removed %d failure records older than %v", n, recordRetention)
			}

			logger.Debugf("Pruned %d job states", job.PruneStates(stateRetention))
		}
	}
}
