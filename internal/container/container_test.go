package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atomic-swap-go/asset"
	"atomic-swap-go/config"
	"atomic-swap-go/escrow"
	"atomic-swap-go/order"
)

const custody = "0xE5C0000000000000000000000000000000000000"

func testConfig() config.AppConfig {
	cfg := config.Default()
	cfg.Log.Outputs = nil
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.MetricsAddr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = time.Second
	cfg.Escrow.CustodyAddress = custody
	return cfg
}

func startContainer(t *testing.T, c *Container) {
	t.Helper()
	require.NoError(t, c.Build())
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop() })
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestContainerServesAPIAndMetrics(t *testing.T) {
	c := NewWithConfig(testConfig())
	startContainer(t, c)

	status, _ := get(t, "http://"+c.APIAddr()+"/healthz")
	assert.Equal(t, http.StatusOK, status)

	status, body := get(t, "http://"+c.MetricsAddr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "swap_escrow_orders_open 0")
	require.NoError(t, c.HealthCheck())
}

func postMint(t *testing.T, c *Container) int {
	t.Helper()
	body := strings.NewReader(`{"asset":"0xA","to":"0x1000000000000000000000000000000000000001","amount":100}`)
	resp, err := http.Post("http://"+c.APIAddr()+"/v1/ledger/mint", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestContainerLedgerAdminSwitch(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		c := NewWithConfig(testConfig())
		startContainer(t, c)
		assert.Equal(t, http.StatusNotFound, postMint(t, c))
	})

	t.Run("enabled in dev", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ledger.Admin = true
		c := NewWithConfig(cfg)
		startContainer(t, c)
		assert.Equal(t, http.StatusOK, postMint(t, c))
	})
}

func TestContainerWithSQLiteRecoversOpenOrders(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Storage = config.StorageConfig{
		Driver:     config.DriverSQLite,
		OrdersPath: filepath.Join(dir, "orders.db"),
		LedgerPath: filepath.Join(dir, "ledger.db"),
		CacheSize:  16,
	}

	ctx := context.Background()
	first := NewWithConfig(cfg)
	require.NoError(t, first.Build())
	ledger := first.Ledger()
	require.NoError(t, ledger.Mint(ctx, "0xA", "0xmaker", 100))
	require.NoError(t, ledger.Approve(ctx, "0xA", "0xmaker", custody, 100))
	_, err := first.Engine().Make(ctx, "0xmaker", escrow.MakeRequest{
		SellAsset:             asset.Ref{Asset: "0xA", Amount: 100},
		BuyAsset:              asset.Ref{Asset: "0xB", Amount: 50},
		MakerReceivingAddress: "0xmaker",
		DesiredTaker:          "0xtaker",
		ExpirationTimestamp:   time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	require.NoError(t, first.Stop())

	second := NewWithConfig(cfg)
	startContainer(t, second)
	o, err := second.Engine().Order(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, order.StatusOpen, o.Status)

	_, body := get(t, "http://"+second.MetricsAddr()+"/metrics")
	assert.Contains(t, body, "swap_escrow_orders_open 1")
}

func TestContainerStartFailsOnBusyPort(t *testing.T) {
	first := NewWithConfig(testConfig())
	startContainer(t, first)

	cfg := testConfig()
	cfg.HTTP.Addr = first.APIAddr()
	second := NewWithConfig(cfg)
	require.NoError(t, second.Build())
	assert.Error(t, second.Start(context.Background()))
}

func TestContainerReloadsLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(level string) {
		content := fmt.Sprintf(`
env: test
log:
  level: %s
  outputs: []
http:
  addr: "127.0.0.1:0"
  metricsAddr: ""
escrow:
  custodyAddress: %q
`, level, custody)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("info")

	c, err := New(path)
	require.NoError(t, err)
	startContainer(t, c)
	assert.Equal(t, "info", c.Logger().Level())
	assert.Empty(t, c.MetricsAddr())

	write("debug")
	require.Eventually(t, func() bool { return c.Logger().Level() == "debug" }, 3*time.Second, 20*time.Millisecond)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: test\n"), 0o644))
	_, err := New(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "custodyAddress"))
}

type fakeComponent struct {
	name    string
	failing bool
	log     *[]string
}

func (f *fakeComponent) Start(context.Context) error {
	if f.failing {
		return errors.New("boom")
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeComponent) Stop() error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func (f *fakeComponent) Health() error { return nil }

func TestLifecycleRollsBackOnStartFailure(t *testing.T) {
	var log []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", log: &log})
	m.Register(&fakeComponent{name: "b", log: &log})
	m.Register(&fakeComponent{name: "c", failing: true, log: &log})

	require.Error(t, m.StartAll(context.Background()))
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}
