package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"cdist/hostgroups"
	"cdist/orchestrator"
)

var (
	initialManifestFlag string
	groupsFlag          string
	parallelFlag        bool
	sequentialFlag      bool
	metricsAddrFlag     string
)

var configCmd = &cobra.Command{
	Use:   "config [host-or-group...]",
	Short: "Configure one or more target hosts",
	Long:  "Runs the initial manifest, convergence loop and code stage against every named host, resolving group names against the groups file if one is configured.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConfig,
}

func init() {
	for _, fs := range []*cobra.Command{configCmd, installCmd} {
		fs.Flags().StringVarP(&initialManifestFlag, "initial-manifest", "i", "", "initial manifest to run (default conf/manifest/init)")
		fs.Flags().StringVarP(&groupsFlag, "groups", "g", "", "host-groups YAML file")
		fs.Flags().BoolVarP(&parallelFlag, "parallel", "p", false, "configure hosts concurrently")
		fs.Flags().BoolVarP(&sequentialFlag, "sequential", "s", false, "configure hosts one at a time (overrides --parallel)")
		fs.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty disables)")
	}
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if initialManifestFlag != "" {
		cfg.InitialManifest = initialManifestFlag
	}
	if groupsFlag != "" {
		cfg.GroupsFile = groupsFlag
	}
	if metricsAddrFlag != "" {
		cfg.MetricsAddr = metricsAddrFlag
	}

	parallel := cfg.Parallel || parallelFlag
	if sequentialFlag {
		parallel = false
	}

	var groups hostgroups.File
	if cfg.GroupsFile != "" {
		groups, err = hostgroups.Load(cfg.GroupsFile)
		if err != nil {
			return fmt.Errorf("loading host groups: %w", err)
		}
	}
	expanded := hostgroups.Expand(groups, args, cfg.InitialManifest, parallel)

	targets := make([]orchestrator.Target, len(expanded))
	for i, t := range expanded {
		targets[i] = orchestrator.Target{Host: t.Host, Manifest: t.Manifest}
	}

	logger := newLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal %v, cancelling in-flight runs", sig)
			interrupted.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	var metrics *orchestrator.Metrics
	if cfg.MetricsAddr != "" {
		metrics = orchestrator.NewMetrics()
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped: %v", err)
			}
		}()
	}

	driver, err := orchestrator.New(orchestrator.Options{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		ShowProgress: !cfg.Debug,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	results := driver.RunAll(ctx, targets, anyParallel(expanded))

	if interrupted.Load() {
		fmt.Fprintln(os.Stderr, "interrupted")
		return nil
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Host, r.Err)
		} else {
			fmt.Printf("%s: %d objects configured\n", r.Host, r.Objects)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d hosts failed", failed, len(results))
	}
	return nil
}

func anyParallel(targets []hostgroups.Target) bool {
	for _, t := range targets {
		if t.Parallel {
			return true
		}
	}
	return false
}
