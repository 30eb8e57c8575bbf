// Command parallel-virfinder splits a FASTA file, runs VirFinder on every
// chunk concurrently and merges the filtered predictions into one table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/bus"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/ledger"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/metrics"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/pipeline"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/tools"
)

var version = "0.2.0"

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "parallel-virfinder: %v\n", err)
		os.Exit(1)
	}
	if cfg.Version {
		fmt.Printf("parallel-virfinder %s\n", version)
		return
	}

	logger := newLogger(os.Stderr, logLevel(cfg))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		stop()
		fatal(logger, "open run ledger", err, "ledger", cfg.Ledger)
	}

	var publisher bus.Publisher = bus.Nop{}
	if cfg.NATSURL != "" {
		client, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("connect to NATS failed, continuing without events", "nats_url", cfg.NATSURL, "err", err)
		} else {
			logger.Debug("connected to NATS", "nats_url", cfg.NATSURL, "subject", cfg.EventSubject)
			publisher = client
		}
	}

	runner := &pipeline.Runner{
		Splitter:    tools.NewFuSplit(cfg.SplitBin),
		Classifier:  tools.NewVirFinder(cfg.RscriptBin),
		Store:       store,
		Publisher:   publisher,
		Subject:     cfg.EventSubject,
		Metrics:     metrics.NewRecorder(),
		MetricsFile: cfg.MetricsFile,
		Logger:      logger,
	}
	sum, runErr := runner.Run(ctx, cfg.pipelineConfig())

	publisher.Close()
	if err := ledger.CloseIfSupported(store); err != nil {
		logger.Warn("close run ledger failed", "err", err)
	}
	stop()

	if runErr != nil {
		var pre *pipeline.PreconditionError
		switch {
		case errors.As(runErr, &pre):
			fatal(logger, "cannot start run", runErr)
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			fatal(logger, "run aborted", runErr, "run_id", sum.RunID)
		default:
			fatal(logger, "run failed", runErr, "run_id", sum.RunID)
		}
	}

	// printed regardless of log level
	fmt.Fprintf(os.Stderr, "passed %d out of %d sequences\n", sum.Passed, sum.Parsed)
	if cfg.Fasta != "" {
		fmt.Fprintf(os.Stderr, "saved %d sequences to %s\n", sum.Reconciled, cfg.Fasta)
	}
}

func openLedger(ctx context.Context, path string) (ledger.Store, error) {
	kind := "memory"
	if path != "" {
		kind = "sqlite"
	}
	store, err := ledger.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func logLevel(cfg config) slog.Level {
	switch {
	case cfg.Debug:
		return slog.LevelDebug
	case cfg.Verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// newLogger uses colored output on a terminal and plain key=value text
// otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.TimeOnly}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
