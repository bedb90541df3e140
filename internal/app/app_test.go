package app_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/depot/internal/adapters/logger"
	"go.trai.ch/depot/internal/adapters/metrics"
	"go.trai.ch/depot/internal/adapters/pool"
	"go.trai.ch/depot/internal/adapters/telemetry"
	"go.trai.ch/depot/internal/app"
	"go.trai.ch/depot/internal/core/domain"
)

func newTestApp() *app.App {
	return app.New(
		logger.NewWithWriter(io.Discard),
		metrics.New(),
		pool.New(2),
		telemetry.NewNoOp(),
	)
}

// writeTree lays out a runnable depot directory: main config, one
// declaration file, one dictionary source.
func writeTree(t *testing.T) (cfgPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()

	dataPath = filepath.Join(dir, "data", "currencies.tsv")
	require.NoError(t, os.MkdirAll(filepath.Dir(dataPath), 0o755))
	require.NoError(t, os.WriteFile(dataPath, []byte("usd\tdollar\neur\teuro\n"), 0o644))

	declPath := filepath.Join(dir, "conf.d", "currencies.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(declPath), 0o755))
	require.NoError(t, os.WriteFile(declPath, []byte(`
dictionary_currencies:
  name: currencies
  source:
    path: data/currencies.tsv
  lifetime:
    min: 30
    max: 60
`), 0o644))

	cfgPath = filepath.Join(dir, "depot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
dictionaries_config: conf.d/*.yaml
metrics_addr: "127.0.0.1:0"
check_period_sec: 1
workers: 1
`), 0o644))
	return cfgPath, dataPath
}

func TestApp_CheckLoadsEverything(t *testing.T) {
	cfgPath, _ := writeTree(t)

	a := newTestApp()
	var out bytes.Buffer
	a.Out = &out

	err := a.Check(context.Background(), cfgPath, 10*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ok\tcurrencies")
}

func TestApp_CheckReportsFailures(t *testing.T) {
	cfgPath, dataPath := writeTree(t)
	require.NoError(t, os.Remove(dataPath))

	a := newTestApp()
	var out bytes.Buffer
	a.Out = &out

	err := a.Check(context.Background(), cfgPath, 10*time.Second)
	require.ErrorIs(t, err, domain.ErrLoadFailed)
	assert.Contains(t, out.String(), "FAILED\tcurrencies")
}

func TestApp_CheckRejectsBadConfig(t *testing.T) {
	a := newTestApp()
	err := a.Check(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), time.Second)
	assert.Error(t, err)
}

func TestApp_ServeStopsOnContextCancel(t *testing.T) {
	cfgPath, _ := writeTree(t)
	a := newTestApp()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, cfgPath) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
