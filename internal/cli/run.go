package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/internal/api"
	"github.com/blockfeed/blockfeed/internal/config"
	"github.com/blockfeed/blockfeed/internal/metrics"
	"github.com/blockfeed/blockfeed/internal/sequencer"
	"github.com/blockfeed/blockfeed/internal/source"
	"github.com/blockfeed/blockfeed/pkg/logger"
)

// NewRunCommand creates the run command
func NewRunCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the height feed daemon",
		Long: `Run starts the feed pipeline: source, sequencer, and the built-in
logging consumer, plus the metrics exporter and status API when enabled.

Example:
  blockfeed run --config config.toml
  blockfeed run --endpoint ws://localhost:8546 --source-kind eth --start-height 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, *configPath)
		},
	}

	cmd.Flags().String("endpoint", "", "Chain source endpoint URL")
	cmd.Flags().String("source-kind", "", "Source kind: eth or rpc")
	cmd.Flags().Int64("start-height", -1, "First height to deliver")
	cmd.Flags().Duration("poll-interval", 0, "Sampling cadence for poll-driven sources")

	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Color, cfg.Log.Disable, cfg.Log.TimeFormat)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	log.Info("starting blockfeed",
		zap.String("version", Version),
		zap.String("source", cfg.Source.Kind),
		zap.String("endpoint", cfg.Source.Endpoint),
		zap.Int64("start_height", cfg.Feed.StartHeight))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(cfg.Metrics.CollectInterval, log.Named("metrics"))
	var exporter *metrics.Exporter
	if cfg.Metrics.Enabled {
		collector.Start()
		defer collector.Stop()

		exporter = metrics.NewExporter(collector, cfg.Metrics.Port, cfg.Metrics.Path, log.Named("metrics"))
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("start metrics exporter: %w", err)
		}
		defer exporter.Stop()
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		api.Version = Version
		apiServer = api.NewServer(cfg.API, nil, log.Named("api"))
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("start status API: %w", err)
		}
		defer apiServer.Stop()
	}

	// Config file changes are picked up on the next pipeline restart;
	// the running pipeline is never reconfigured in place.
	var pending atomic.Pointer[config.Config]
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, cfg, log.Named("config"))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Warn("config watcher stopped", zap.Error(err))
			}
		}()
		go func() {
			for update := range watcher.Updates() {
				if update.Err != nil || update.New == nil {
					continue
				}
				pending.Store(update.New)
				log.Info("config change staged for next pipeline restart")
			}
		}()
	}

	return feedLoop(ctx, cfg, &pending, collector, apiServer, log)
}

// feedLoop builds and runs the pipeline, rebuilding it with a fixed
// delay whenever the watch stream terminates. Resubscription policy
// lives here, never inside the sequencer.
func feedLoop(ctx context.Context, cfg *config.Config, pending *atomic.Pointer[config.Config], collector *metrics.Collector, apiServer *api.Server, log *logger.Logger) error {
	start := cfg.Feed.StartHeight

	for {
		if next := pending.Swap(nil); next != nil {
			// Keep delivery position; only source and tuning change.
			next.Feed.StartHeight = start
			cfg = next
			log.Info("applying staged config")
		}

		err := runPipeline(ctx, cfg, start, collector, apiServer, log, &start)
		if ctx.Err() != nil {
			log.Info("blockfeed stopped", zap.Int64("next_height", start))
			return nil
		}
		if err != nil {
			log.Warn("pipeline terminated, restarting",
				zap.Error(err),
				zap.Int64("next_height", start),
				zap.Duration("delay", cfg.Feed.RestartDelay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Feed.RestartDelay):
		}
	}
}

// runPipeline runs one source+sequencer+consumer generation until the
// context is cancelled or the watch stream ends. nextStart receives
// the height to resume from: the current cursor, so an unacknowledged
// height is redelivered rather than skipped.
func runPipeline(ctx context.Context, cfg *config.Config, start int64, collector *metrics.Collector, apiServer *api.Server, log *logger.Logger, nextStart *int64) error {
	src, cleanup, err := buildSource(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}
	defer cleanup()

	seq, err := sequencer.New(sequencer.NewWatcher(src), start, log.Named("sequencer"), collector)
	if err != nil {
		return fmt.Errorf("create sequencer: %w", err)
	}
	if apiServer != nil {
		apiServer.SetProvider(seq)
	}

	// Built-in consumer: logs each height and acknowledges it. Replace
	// this loop to integrate real downstream processing.
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for event := range seq.Events() {
			log.Info("height delivered", zap.Int64("height", event.Height()))
			event.Ack()
		}
	}()

	err = seq.Run(ctx)
	<-consumerDone
	*nextStart = seq.Snapshot().Current

	return err
}

func buildSource(ctx context.Context, cfg *config.Config, log *logger.Logger) (source.Source, func(), error) {
	switch cfg.Source.Kind {
	case "eth":
		src, err := source.NewEthSource(ctx, cfg.Source.Endpoint, cfg.Source.PollInterval, log.Named("source"))
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil

	case "rpc":
		src := source.NewRPCSource(cfg.Source.Endpoint, cfg.Source.Method, cfg.Source.PollInterval, log.Named("source"))
		return src, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("endpoint") {
		cfg.Source.Endpoint, _ = cmd.Flags().GetString("endpoint")
	}
	if cmd.Flags().Changed("source-kind") {
		cfg.Source.Kind, _ = cmd.Flags().GetString("source-kind")
	}
	if cmd.Flags().Changed("start-height") {
		cfg.Feed.StartHeight, _ = cmd.Flags().GetInt64("start-height")
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.Source.PollInterval, _ = cmd.Flags().GetDuration("poll-interval")
	}
}
