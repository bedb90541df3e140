// Package app implements the application layer for depot.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.trai.ch/depot/internal/adapters/config"     //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/dictionary" //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/metrics"    //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/pool"       //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/adapters/repository" //nolint:depguard // Wired in app layer
	telprogrock "go.trai.ch/depot/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/loader"
	"go.trai.ch/zerr"
)

// App represents the main application logic: it assembles a loader from the
// main configuration and drives it for the CLI commands.
type App struct {
	log       ports.Logger
	metrics   *metrics.Collector
	pool      ports.WorkerPool
	telemetry ports.Telemetry

	// Out receives the check command's report; defaults to io.Discard until
	// the CLI wires its stdout in.
	Out io.Writer
}

// New creates a new App instance.
func New(log ports.Logger, collector *metrics.Collector, pool ports.WorkerPool, telemetry ports.Telemetry) *App {
	return &App{
		log:       log,
		metrics:   collector,
		pool:      pool,
		telemetry: telemetry,
		Out:       io.Discard,
	}
}

// workerPool returns the pool for one run: sized from the main config when
// workers is set, the injected config-independent default otherwise.
func (a *App) workerPool(main *config.Main) ports.WorkerPool {
	if main.Workers > 0 {
		return pool.New(main.Workers)
	}
	return a.pool
}

// buildLoader assembles a loader for the given main configuration. The
// factory and the sized worker pool depend on the main config, so both are
// built per run rather than wired at startup.
func (a *App) buildLoader(main *config.Main, telemetry ports.Telemetry) *loader.Loader {
	ldr := loader.New(loader.Options{
		Factory:   dictionary.NewFactory(main.Path, a.log),
		Logger:    a.log,
		Metrics:   a.metrics,
		Telemetry: telemetry,
		Pool:      a.workerPool(main),
	})
	ldr.EnableAsyncLoading(main.AsyncLoading)
	ldr.EnableAlwaysLoadEverything(main.AlwaysLoadEverything)
	ldr.AttachRepository(repository.New(main.DictionariesConfig), main.ConfigSettings())
	return ldr
}

// Serve runs the loader as a daemon until ctx is cancelled: periodic config
// rescans and refreshes, with metrics exposed over HTTP.
func (a *App) Serve(ctx context.Context, cfgPath string) error {
	main, err := config.Load(cfgPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	ldr := a.buildLoader(main, a.telemetry)
	defer ldr.Close()
	ldr.EnablePeriodicUpdates(true, main.UpdateSettings())

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	server := &http.Server{
		Addr:              main.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.log.Info("depot serving", "config", cfgPath, "metrics_addr", main.MetricsAddr)

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok && err != nil {
			return zerr.Wrap(err, "metrics endpoint failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("failed to shut down metrics endpoint", err)
	}
	return nil
}

// Check performs a one-shot load of the whole population and reports every
// object's outcome. It returns an error if any object failed to load.
func (a *App) Check(ctx context.Context, cfgPath string, timeout time.Duration) error {
	main, err := config.Load(cfgPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	// Record load progress on a progrock tape for the interactive run.
	recorder := telprogrock.New()
	defer recorder.Close() //nolint:errcheck // best effort on exit

	ldr := a.buildLoader(main, recorder)
	defer ldr.Close()

	loadCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	results := ldr.LoadMatchingResults(loadCtx, nil)

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	failed := 0
	for _, res := range results {
		switch res.Status {
		case domain.StatusLoaded:
			fmt.Fprintf(a.Out, "ok\t%s\t(%s)\n", res.Name, res.Origin)
		default:
			failed++
			if res.Err != nil {
				fmt.Fprintf(a.Out, "%s\t%s\t%v\n", res.Status, res.Name, res.Err)
			} else {
				fmt.Fprintf(a.Out, "%s\t%s\n", res.Status, res.Name)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", domain.ErrLoadFailed, failed, len(results))
	}
	a.log.Info("all objects loaded", "count", len(results))
	return nil
}
