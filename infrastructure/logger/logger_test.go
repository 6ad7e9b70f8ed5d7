package logger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{
		Level:      "debug",
		Outputs:    []string{"file"},
		OutputFile: filepath.Join(dir, "swap.log"),
		ErrorFile:  filepath.Join(dir, "swap_errors.log"),
	})
	require.NoError(t, err)
	l.LogOrder("created", 1, nil)
	require.NoError(t, l.SetLevel("warn"))
	assert.Equal(t, "warn", l.Level())
	assert.Error(t, l.SetLevel("nope"))
	_ = l.Close()
}

func TestOrderHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core))

	l.LogOrder("settled", 3, map[string]interface{}{"taker": "0xt"})
	l.LogReject("take", errors.New("order expired"), nil)
	l.WithFields(map[string]interface{}{"component": "escrow"}).LogCustody("release", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "order_event", entries[0].Message)
	assert.Equal(t, uint64(3), entries[0].ContextMap()["order_id"])
	assert.Equal(t, "order_rejected", entries[1].Message)
	assert.Equal(t, "order expired", entries[1].ContextMap()["reason"])
	assert.Equal(t, "escrow", entries[2].ContextMap()["component"])
}
