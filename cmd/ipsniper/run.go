package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lc/ipsniper/internal/config"
	"github.com/lc/ipsniper/internal/dnsresolver"
	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/internal/filesys"
	"github.com/lc/ipsniper/internal/log"
	"github.com/lc/ipsniper/pkg/api"
)

// runFlags are command-line overrides for the loaded configuration. Only
// flags that were set on the command line are applied.
type runFlags struct {
	servers      []string
	targets      []string
	concurrency  int
	threshold    int
	retries      int
	retryDelay   time.Duration
	timeout      time.Duration
	strategy     string
	mode         string
	onFlushError string
	statusSocket string
}

func newRunCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [input] [output]",
		Short: "Sweep a domain list for domains resolving to target IPs",
		Long: `Resolve every domain in input (one per line, default domains.txt) and write
the ones resolving to a target IP to output (default matching_domains.txt).

Each domain is always sent to the same resolver of the pool. Lookups that time
out are retried; NXDOMAIN and empty answers are not. Matches are flushed to the
output every --threshold matches and once more when the sweep ends.

Interrupting a sweep stops new lookups, lets running ones finish and still
writes the matches found so far.`,
		Example: `  ipsniper run
  ipsniper run hosts.txt hits.txt --concurrency 200 --strategy pool
  ipsniper run --servers 1.1.1.1,8.8.8.8 --targets 182.173.0.181`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), cfg, args); err != nil {
				return err
			}
			return runSweep(cmd.Context(), cfg)
		},
	}

	bindRunFlags(cmd.Flags(), &f)
	return cmd
}

func bindRunFlags(fl *pflag.FlagSet, f *runFlags) {
	fl.StringSliceVar(&f.servers, "servers", nil, "comma-separated DNS servers (ip or ip:port)")
	fl.StringSliceVar(&f.targets, "targets", nil, "comma-separated target IPs")
	fl.IntVarP(&f.concurrency, "concurrency", "n", config.DefaultConcurrency, "maximum lookups in flight")
	fl.IntVar(&f.threshold, "threshold", config.DefaultFlushThreshold, "pending matches that trigger a flush")
	fl.IntVar(&f.retries, "retries", config.DefaultMaxRetries, "retries after a timed-out lookup")
	fl.DurationVar(&f.retryDelay, "retry-delay", config.DefaultRetryDelay, "pause before retrying a timed-out lookup")
	fl.DurationVar(&f.timeout, "timeout", config.DefaultDNSTimeout, "per-query DNS timeout")
	fl.StringVar(&f.strategy, "strategy", config.StrategySemaphore, "scheduler: batch, semaphore or pool")
	fl.StringVar(&f.mode, "mode", config.ModeTruncate, "output mode: truncate or append")
	fl.StringVar(&f.onFlushError, "on-flush-error", config.OnErrorRequeue, "flush failure policy: requeue or abort")
	fl.StringVar(&f.statusSocket, "status-socket", "", "serve live status on this Unix socket")
}

// apply overlays positional arguments and changed flags onto cfg and
// revalidates it.
func (f *runFlags) apply(fl *pflag.FlagSet, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		cfg.Input = args[0]
	}
	if len(args) > 1 {
		cfg.Output.Path = args[1]
	}
	if fl.Changed("servers") {
		cfg.Resolvers.Servers = f.servers
	}
	if fl.Changed("targets") {
		cfg.Targets = f.targets
	}
	if fl.Changed("concurrency") {
		cfg.Scheduler.Concurrency = f.concurrency
	}
	if fl.Changed("threshold") {
		cfg.Flush.Threshold = f.threshold
	}
	if fl.Changed("retries") {
		cfg.Retry.Max = f.retries
	}
	if fl.Changed("retry-delay") {
		cfg.Retry.Delay = f.retryDelay
	}
	if fl.Changed("timeout") {
		cfg.Resolvers.Timeout = f.timeout
	}
	if fl.Changed("strategy") {
		cfg.Scheduler.Strategy = f.strategy
	}
	if fl.Changed("mode") {
		cfg.Output.Mode = f.mode
	}
	if fl.Changed("on-flush-error") {
		cfg.Flush.OnError = f.onFlushError
	}
	if fl.Changed("status-socket") {
		cfg.Status.Socket = f.statusSocket
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func runSweep(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	domains, err := filesys.ReadLines(filesys.OS(), cfg.Input)
	if err != nil {
		return fmt.Errorf("failed to read domains: %w", err)
	}
	pool, err := dnsresolver.NewPool(cfg.Resolvers.Servers, cfg.Resolvers.Timeout)
	if err != nil {
		return fmt.Errorf("failed to build resolver pool: %w", err)
	}
	sink := filesys.NewSink(filesys.OS(), cfg.Output.Path, filesys.SinkMode(cfg.Output.Mode))

	eng, err := engine.New(pool, sink, engine.Options{
		Targets:         cfg.Targets,
		MaxRetries:      cfg.Retry.Max,
		RetryDelay:      cfg.Retry.Delay,
		Concurrency:     cfg.Scheduler.Concurrency,
		Strategy:        cfg.Scheduler.Strategy,
		FlushThreshold:  cfg.Flush.Threshold,
		OnFlushError:    cfg.Flush.OnError,
		MonitorInterval: cfg.Monitor.Interval,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// a second signal kills the process
		stop()
	}()

	if cfg.Status.Socket != "" {
		srv := api.New(eng)
		go func() {
			if err := srv.ListenAndServe(cfg.Status.Socket); err != nil {
				log.Warnf("api: status endpoint unavailable: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("api: shutdown: %v", err)
			}
		}()
	}

	log.Info("run: sweep configured",
		"input", cfg.Input,
		"output", cfg.Output.Path,
		"mode", cfg.Output.Mode,
		"targets", cfg.Targets,
		"servers", pool.Servers())

	stats, runErr := eng.Run(ctx, domains)
	renderSummary(os.Stdout, stats)

	if errors.Is(runErr, context.Canceled) {
		log.Warnf("run: sweep interrupted after %d of %d domains", stats.Processed, stats.Total)
	}
	return runErr
}
