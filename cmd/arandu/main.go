package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/arandu-labs/arandu/internal/config"
	"github.com/arandu-labs/arandu/internal/janitor"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/metrics"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/papers"
	"github.com/arandu-labs/arandu/internal/queue"
	"github.com/arandu-labs/arandu/internal/repro"
	"github.com/arandu-labs/arandu/internal/review"
	"github.com/arandu-labs/arandu/internal/review/pdftext"
	"github.com/arandu-labs/arandu/internal/server"
	"github.com/arandu-labs/arandu/internal/store"
	"github.com/arandu-labs/arandu/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		NoWorkers bool `help:"Serve the API only; work items are left for external workers"`
	} `cmd:"" help:"Run the API server with embedded workers and the temp repo janitor"`

	Worker struct {
	} `cmd:"" help:"Run reproduction and review workers against the configured NATS queue"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI)

	if kctx.Command() == "version" {
		fmt.Printf("arandu %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.Logging.Level = "debug"
	}
	observability.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "serve":
		err = runServe(ctx, cfg, !CLI.Serve.NoWorkers)
	case "worker":
		err = runWorker(ctx, cfg)
	}
	if err != nil {
		observability.ErrorContext(ctx, "arandu exited with error", logfields.Error(err))
		os.Exit(1)
	}
}

// openQueue picks the durable NATS queue when one is configured and the
// in-memory queue otherwise. The memory queue only works with embedded
// workers; runServe enforces that.
func openQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.Queue.NATSURL != "" {
		return queue.NewNATSQueue(cfg.Queue.NATSURL, cfg.Queue.Stream)
	}
	return queue.NewMemoryQueue(100), nil
}

func runServe(ctx context.Context, cfg *config.Config, withWorkers bool) error {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	q, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()
	if cfg.Queue.NATSURL == "" && !withWorkers {
		return fmt.Errorf("serving without workers requires a NATS queue; set queue.nats_url")
	}

	summary := metrics.NewSummary()
	rec := metrics.Multi{summary, metrics.NewPrometheusRecorder(nil)}

	srv := server.New(cfg, st, q, papers.New(st, cfg.Papers), rec, summary)

	jan, err := janitor.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create janitor: %w", err)
	}
	if err := jan.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	defer func() {
		if err := jan.Stop(); err != nil {
			observability.WarnContext(ctx, "janitor shutdown failed", logfields.Error(err))
		}
	}()

	if withWorkers {
		if err := startWorkers(ctx, cfg, st, q, rec); err != nil {
			return err
		}
	}

	errChan := make(chan error, 1)
	go func() {
		observability.InfoContext(ctx, "HTTP server listening", logfields.Component("server"),
			logfields.Path(cfg.Server.Addr))
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		observability.InfoContext(ctx, "Shutdown signal received, draining requests")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.Queue.NATSURL == "" {
		return fmt.Errorf("worker mode requires a NATS queue; set queue.nats_url")
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	q, err := openQueue(cfg)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	rec := metrics.Multi{metrics.NewSummary(), metrics.NewPrometheusRecorder(nil)}
	if err := startWorkers(ctx, cfg, st, q, rec); err != nil {
		return err
	}

	<-ctx.Done()
	observability.InfoContext(ctx, "Shutdown signal received, stopping workers")
	return nil
}

// startWorkers launches the two queue consumers. Each work item runs under
// its queue's timeout: an hour for reproductions, 90 seconds for reviews.
func startWorkers(ctx context.Context, cfg *config.Config, st *store.Store, q queue.Queue, rec metrics.Recorder) error {
	reproWorker := repro.NewWorker(st, cfg, rec)
	reviewWorker, err := review.NewWorker(st, cfg, pdftext.New(""), rec)
	if err != nil {
		return fmt.Errorf("failed to create review worker: %w", err)
	}

	go consume(ctx, q, queue.QueueDefault, cfg.Queue.JobTimeoutSeconds, reproWorker.Process)
	go consume(ctx, q, queue.QueueReviews, cfg.Queue.ReviewTimeoutSeconds, reviewWorker.Process)
	return nil
}

func consume(ctx context.Context, q queue.Queue, name string, timeoutSeconds int, handler queue.Handler) {
	observability.InfoContext(ctx, "Worker consuming queue", logfields.Queue(name))
	err := q.Consume(ctx, name, func(ctx context.Context, id string) error {
		itemCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
		return handler(itemCtx, id)
	})
	if err != nil && ctx.Err() == nil {
		observability.ErrorContext(ctx, "Queue consumer stopped", logfields.Queue(name), logfields.Error(err))
	}
}
