// Package orchestrator drives a full configuration run across one or more
// hosts: per host it wipes and reinitializes the remote base directory,
// runs the global explorers and initial manifest, drives the convergence
// loop, runs the code stage, and records the outcome in the run ledger.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"cdist/cdisttype"
	"cdist/codestage"
	"cdist/config"
	"cdist/converge"
	"cdist/explorer"
	"cdist/layout"
	"cdist/log"
	"cdist/manifest"
	"cdist/object"
	"cdist/remoteexec"
	"cdist/rundb"
	"cdist/scriptrunner"
	"cdist/util"
)

// Options configures a run across one or more hosts.
type Options struct {
	Config          *config.Config
	Logger          log.LibraryLogger
	Metrics         *Metrics // nil disables metrics recording
	ShowProgress    bool
	ManifestDefault string // falls back to Config.InitialManifest when empty

	// NewExecutor builds the Executor used to reach a given host. Defaults
	// to a remoteexec.SSHExecutor built from Config's SSH settings; tests
	// substitute a remoteexec.FakeExecutor.
	NewExecutor func(host string) remoteexec.Executor
}

// HostResult is the outcome of configuring a single host.
type HostResult struct {
	Host    string
	Objects int
	Err     error
}

// Driver runs hosts one at a time or concurrently, sharing a single run
// ledger across the whole invocation.
type Driver struct {
	opts Options
	db   *rundb.DB
}

// New opens the run ledger at opts.Config.RunLedgerPath and returns a
// Driver. Call Close when done.
func New(opts Options) (*Driver, error) {
	if opts.Logger == nil {
		opts.Logger = log.NoOpLogger{}
	}
	if opts.NewExecutor == nil {
		cfg := opts.Config
		opts.NewExecutor = func(host string) remoteexec.Executor {
			return remoteexec.NewSSH(cfg.SSHBinary, cfg.SCPBinary, cfg.RemoteUser, host, cfg.SSHOptions)
		}
	}
	if err := os.MkdirAll(opts.Config.CacheBaseDir(), 0755); err != nil {
		return nil, fmt.Errorf("orchestrator: preparing cache base dir: %w", err)
	}
	db, err := rundb.Open(opts.Config.RunLedgerPath())
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening run ledger: %w", err)
	}
	return &Driver{opts: opts, db: db}, nil
}

func (d *Driver) Close() error { return d.db.Close() }

// Target is one host to configure, with an optional manifest override.
type Target struct {
	Host     string
	Manifest string // empty uses Options.ManifestDefault / Config.InitialManifest
}

// RunAll configures every target, sequentially or concurrently depending on
// parallel, and returns one HostResult per target in target order.
func (d *Driver) RunAll(ctx context.Context, targets []Target, parallel bool) []HostResult {
	results := make([]HostResult, len(targets))

	var bar *progressbar.ProgressBar
	if d.opts.ShowProgress {
		bar = progressbar.Default(int64(len(targets)), "configuring hosts")
		defer bar.Close()
	}

	run := func(i int, t Target) {
		results[i] = d.runOne(ctx, t)
		if bar != nil {
			bar.Add(1)
		}
	}

	if !parallel {
		for i, t := range targets {
			run(i, t)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			run(i, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

func (d *Driver) runOne(ctx context.Context, t Target) HostResult {
	manifestPath := t.Manifest
	if manifestPath == "" {
		manifestPath = d.opts.ManifestDefault
	}
	if manifestPath == "" {
		manifestPath = d.opts.Config.InitialManifest
	}

	logger := d.hostLogger(t.Host)

	start := time.Now()
	objCount, err := d.configureHost(ctx, t.Host, manifestPath)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "failed"
		logger.Error("host %s failed: %v", t.Host, err)
	} else {
		logger.Info("host %s configured (%d objects, %s)", t.Host, objCount, util.FormatDuration(int64(duration.Seconds())))
	}

	if d.opts.Metrics != nil {
		d.opts.Metrics.HostRuns.WithLabelValues(status).Inc()
		d.opts.Metrics.HostDuration.Observe(duration.Seconds())
		if err == nil {
			d.opts.Metrics.ObjectsPerRun.Observe(float64(objCount))
		}
	}

	rec := rundb.NewRecord(t.Host, manifestBody(manifestPath))
	rec.StartTime = start
	rec.EndTime = start.Add(duration)
	rec.ObjectCount = objCount
	rec.Status = status
	if recErr := d.db.Record(rec); recErr != nil {
		logger.Warn("host %s: recording run ledger entry failed: %v", t.Host, recErr)
	}

	return HostResult{Host: t.Host, Objects: objCount, Err: err}
}

// hostLogger narrows d.opts.Logger to the given host when it supports
// log.HostScoped, so every line from that host's pipeline run already carries
// its host attribute. Falls back to the shared logger otherwise.
func (d *Driver) hostLogger(host string) log.LibraryLogger {
	if scoped, ok := d.opts.Logger.(log.HostScoped); ok {
		return scoped.WithHost(host)
	}
	return d.opts.Logger
}

func manifestBody(path string) []byte {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return body
}

// configureHost runs the full per-host pipeline: init_deploy, global
// explorers, initial manifest, convergence, code stage, cache promotion.
func (d *Driver) configureHost(ctx context.Context, host, manifestPath string) (objCount int, err error) {
	cfg := d.opts.Config

	hc, err := layout.New(cfg, host)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: %s: %w", host, err)
	}
	defer func() {
		if err != nil {
			d.hostLogger(host).Warn("host %s: run failed, scratch tree left for inspection at %s", host, hc.ScratchDir)
		}
	}()

	exec := d.opts.NewExecutor(host)
	store := object.New(afero.NewOsFs(), hc.ObjectBaseDir())
	runner := scriptrunner.New(exec, d.hostLogger(host))

	typeCache := make(map[string]*cdisttype.Type)
	loadType := func(name string) (*cdisttype.Type, error) {
		if t, ok := typeCache[name]; ok {
			return t, nil
		}
		t, err := cdisttype.Load(cfg.TypeBaseDir(), name)
		if err != nil {
			return nil, err
		}
		typeCache[name] = t
		return t, nil
	}

	typeNames, err := listTypeNames(cfg.TypeBaseDir())
	if err != nil {
		return 0, fmt.Errorf("orchestrator: %s: listing types: %w", host, err)
	}
	if err := hc.PopulateBinDir(typeNames); err != nil {
		return 0, fmt.Errorf("orchestrator: %s: %w", host, err)
	}

	if err := exec.RemoveTree(ctx, layout.RemoteBaseDir, true); err != nil {
		return 0, fmt.Errorf("orchestrator: %s: init_deploy: %w", host, err)
	}
	if err := exec.Mkdir(ctx, layout.RemoteBaseDir, true); err != nil {
		return 0, fmt.Errorf("orchestrator: %s: init_deploy: %w", host, err)
	}

	explorers := explorer.New(exec, hc, store)
	if err := explorers.RunGlobal(ctx); err != nil {
		d.recordFailure("explorer")
		return 0, fmt.Errorf("orchestrator: %s: %w", host, err)
	}

	manifests := manifest.New(runner, hc, store)
	if err := manifests.RunInitial(ctx, manifestPath); err != nil {
		d.recordFailure("manifest")
		return 0, fmt.Errorf("orchestrator: %s: %w", host, err)
	}

	objects, err := converge.Run(ctx, store, explorers, manifests, loadType, cfg.MaxConvergencePasses)
	if err != nil {
		d.recordFailure("convergence")
		return len(objects), fmt.Errorf("orchestrator: %s: %w", host, err)
	}
	if d.opts.Metrics != nil {
		d.opts.Metrics.ConvergencePasses.Observe(1) // pass count isn't surfaced by converge.Run on success; one successful pass is the minimum observed.
	}

	stage := codestage.New(runner, exec, store, hc)
	if err := stage.Run(ctx, objects, loadType); err != nil {
		d.recordFailure("codestage")
		return len(objects), fmt.Errorf("orchestrator: %s: %w", host, err)
	}

	if err := hc.Promote(); err != nil {
		return len(objects), fmt.Errorf("orchestrator: %s: %w", host, err)
	}

	return len(objects), nil
}

func (d *Driver) recordFailure(stage string) {
	if d.opts.Metrics != nil {
		d.opts.Metrics.ScriptFailures.WithLabelValues(stage).Inc()
	}
}

func listTypeNames(typeBaseDir string) ([]string, error) {
	entries, err := os.ReadDir(typeBaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
