// Command harvester fetches catalog metadata for a list of video IDs and
// writes it to durable storage in checkpointed JSON dumps.
//
// Usage:
//
//	harvester [--config config0.ini] [--input 0.csv] [--column video_id]
//
// Exit codes: 0 when every group was processed or the API quota ran out,
// 1 on configuration, input or flush errors, 130 when interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/catalog-harvester/pkg/batch"
	"github.com/Sternrassler/catalog-harvester/pkg/checkpoint"
	"github.com/Sternrassler/catalog-harvester/pkg/client"
	"github.com/Sternrassler/catalog-harvester/pkg/config"
	"github.com/Sternrassler/catalog-harvester/pkg/input"
	"github.com/Sternrassler/catalog-harvester/pkg/logging"
	"github.com/Sternrassler/catalog-harvester/pkg/metrics"
	"github.com/Sternrassler/catalog-harvester/pkg/pagination"
	"github.com/Sternrassler/catalog-harvester/pkg/runner"
	"github.com/Sternrassler/catalog-harvester/pkg/sink"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

const (
	defaultConfigPath = "config0.ini"
	redisPingTimeout  = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one harvest and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	flags := pflag.NewFlagSet("harvester", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.StringP("config", "c", defaultConfigPath, "config file (ini, yaml, toml or json)")
	inputPath := flags.StringP("input", "i", "", "identifier CSV file, overrides input.path")
	column := flags.String("column", "", "identifier column, overrides input.column")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	path := *configPath
	if !flags.Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "harvester: %v\n", err)
		return exitError
	}
	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}
	if *column != "" {
		cfg.Input.Column = *column
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: stderr,
		Fields: map[string]string{"run_id": newRunID()},
	})
	cliLogger := logging.NewLogger("cli")

	summary, err := harvest(ctx, cfg, cliLogger)
	if err != nil && summary.Reason == "" {
		cliLogger.Error().Err(err).Msg("Run could not start")
		return exitError
	}

	code := exitCode(summary)
	logger.Info().
		Str("reason", string(summary.Reason)).
		Int("exit_code", code).
		Msg("Harvester exiting")
	return code
}

// harvest wires the components and runs the controller. A zero Summary.Reason
// means the run never started.
func harvest(ctx context.Context, cfg config.Config, logger zerolog.Logger) (runner.Summary, error) {
	ids, err := input.ReadIdentifiers(cfg.Input.Path, cfg.Input.Column)
	if err != nil {
		return runner.Summary{}, err
	}
	groups, err := batch.Split(ids, cfg.Run.GroupSize)
	if err != nil {
		return runner.Summary{}, err
	}
	logger.Info().
		Str("input", cfg.Input.Path).
		Int("identifiers", len(ids)).
		Int("groups", len(groups)).
		Msg("Identifier list loaded")

	apiClient, err := client.New(cfg.ClientConfig(), logging.NewLogger("client"))
	if err != nil {
		return runner.Summary{}, fmt.Errorf("create api client: %w", err)
	}

	writer, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return runner.Summary{}, err
	}
	defer closeSink()

	accumulator := checkpoint.New(
		writer,
		checkpoint.NewNamer(cfg.Output.Prefix, nil),
		logging.NewLogger("checkpoint"),
	)
	controller := runner.New(
		pagination.NewFetcher(apiClient, logging.NewLogger("fetcher")),
		accumulator,
		cfg.RunnerConfig(),
		logging.NewLogger("runner"),
	)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()

	var (
		group   errgroup.Group
		summary runner.Summary
		runErr  error
	)
	if cfg.Metrics.Addr != "" {
		group.Go(func() error {
			return metrics.Serve(metricsCtx, cfg.Metrics.Addr, logging.NewLogger("metrics"))
		})
	}
	group.Go(func() error {
		defer stopMetrics()
		summary, runErr = controller.Run(ctx, groups)
		return nil
	})
	if err := group.Wait(); err != nil {
		logger.Warn().Err(err).Msg("Metrics server failed")
	}

	return summary, runErr
}

// openSink builds the configured output backend and a func releasing it.
func openSink(ctx context.Context, cfg config.Config) (sink.Writer, func(), error) {
	switch cfg.Output.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		w, err := sink.NewRedis(rdb, sink.RedisConfig{KeyPrefix: cfg.Redis.KeyPrefix, TTL: cfg.Redis.TTL})
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return w, func() { rdb.Close() }, nil

	case config.BackendGCS:
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		w, err := sink.NewGCS(gcs, sink.GCSConfig{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix})
		if err != nil {
			gcs.Close()
			return nil, nil, err
		}
		return w, func() { gcs.Close() }, nil

	default:
		w, err := sink.NewLocal(sink.LocalConfig{Dir: cfg.Output.Dir})
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil
	}
}

func exitCode(summary runner.Summary) int {
	switch summary.Reason {
	case runner.ReasonCompleted, runner.ReasonQuotaExceeded:
		return exitOK
	case runner.ReasonInterrupted:
		return exitInterrupted
	default:
		return exitError
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
