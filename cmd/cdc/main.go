package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/relsnap/cdc/internal/blobstore"
	"github.com/relsnap/cdc/internal/cdcconfig"
	"github.com/relsnap/cdc/internal/logging"
	"github.com/relsnap/cdc/internal/orchestrator"
	"github.com/relsnap/cdc/internal/retry"
	"github.com/relsnap/cdc/internal/schedule"
	"github.com/relsnap/cdc/internal/source"
	"github.com/relsnap/cdc/internal/source/pgsource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	tablesFlag := flag.StringArray("tables", nil, "table names to process (default: all configured tables)")
	configFlag := flag.String("config", "", "path to the CDC configuration file (or set CDC_CONFIG_PATH env var)")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to serve Prometheus /metrics on (disabled if empty)")
	flag.Parse()
	// "--tables T1 T2" leaves T2 as a positional argument, so positional
	// arguments are table names too.
	tables := append(*tablesFlag, flag.Args()...)

	log := logging.New(*verboseFlag)

	if *metricsAddrFlag != "" {
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("prometheus metrics server stopped", "error", err)
			}
		}()
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv("CDC_CONFIG_PATH")
	}
	if configPath == "" {
		return fmt.Errorf("no config path: pass --config or set CDC_CONFIG_PATH")
	}

	cfg, err := cdcconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	retryCfg := retryConfigFrom(cfg.GlobalSettings.Scheduling)

	urls := make(map[string]string, len(cfg.Datasources))
	for name, ds := range cfg.Datasources {
		urls[name] = ds.URL
	}
	var reader source.Reader
	err = retry.Do(ctx, retryCfg, func() error {
		r, connErr := pgsource.New(ctx, log, urls, pgsource.PoolConfig{
			PoolSize:    cfg.GlobalSettings.ConnectionPool.PoolSize,
			MaxOverflow: cfg.GlobalSettings.ConnectionPool.MaxOverflow,
			Timeout:     time.Duration(cfg.GlobalSettings.ConnectionPool.TimeoutSecs) * time.Second,
		})
		reader = r
		return connErr
	})
	if err != nil {
		return fmt.Errorf("connect datasources: %w", err)
	}
	defer reader.Close()

	var blobs *blobstore.S3Store
	err = retry.Do(ctx, retryCfg, func() error {
		b, connErr := blobstore.NewS3Store(ctx, log, blobstore.S3Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Secure:    cfg.Storage.Secure,
			Bucket:    cfg.Storage.Bucket,
		})
		blobs = b
		return connErr
	})
	if err != nil {
		return fmt.Errorf("connect object store: %w", err)
	}

	poolSize := cfg.GlobalSettings.ConnectionPool.PoolSize
	clock := clockwork.NewRealClock()
	orch := orchestrator.New(log, cfg, reader, blobs, clock, poolSize)

	sched := schedule.New(log, orch, cfg.GlobalSettings.Scheduling, clock)
	if sched.Enabled() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		sched.Run(ctx, tables)
		return nil
	}

	report := orch.Run(ctx, tables)

	failures := 0
	for _, t := range report.Tables {
		switch t.Status {
		case "success":
			log.Info("table run summary", "table", t.Table, "status", t.Status, "added", t.Added, "modified", t.Modified, "deleted", t.Deleted)
		case "skipped":
			log.Warn("table run summary", "table", t.Table, "status", t.Status, "reason", t.Error)
		default:
			failures++
			log.Error("table run summary", "table", t.Table, "status", t.Status, "error", t.Error)
		}
	}
	log.Info("run complete", "tables", len(report.Tables), "failures", failures, "duration", report.Duration)

	return nil
}

func retryConfigFrom(sched cdcconfig.Scheduling) retry.Config {
	cfg := retry.DefaultConfig()
	if sched.MaxRetries > 0 {
		cfg.MaxAttempts = sched.MaxRetries
	}
	if sched.RetryDelaySecond > 0 {
		cfg.BaseBackoff = time.Duration(sched.RetryDelaySecond) * time.Second
		cfg.MaxBackoff = cfg.BaseBackoff * 4
	}
	return cfg
}
