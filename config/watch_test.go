package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)
	defer w.Stop()

	updates := make(chan AppConfig, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, func(cfg AppConfig) { updates <- cfg }))

	changed := strings.Replace(sampleYAML, "level: info", "level: debug", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))

	select {
	case cfg := <-updates:
		require.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("expected update callback")
	}
	require.False(t, w.LastReload().IsZero())
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	w, err := NewWatcher(path, 0, nil)
	require.NoError(t, err)
	defer w.Stop()

	updates := make(chan AppConfig, 4)
	require.NoError(t, w.Start(context.Background(), func(cfg AppConfig) { updates <- cfg }))

	require.NoError(t, os.WriteFile(path, []byte("env: [broken"), 0o644))
	select {
	case cfg := <-updates:
		t.Fatalf("unexpected update %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	w, err := NewWatcher(path, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), nil))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
