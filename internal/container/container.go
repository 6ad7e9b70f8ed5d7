package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"atomic-swap-go/asset"
	"atomic-swap-go/config"
	"atomic-swap-go/escrow"
	"atomic-swap-go/infrastructure/alert"
	"atomic-swap-go/infrastructure/logger"
	"atomic-swap-go/infrastructure/monitor"
	"atomic-swap-go/internal/httpapi"
	"atomic-swap-go/notify"
	"atomic-swap-go/order"
	"atomic-swap-go/storage/sqlite"
)

const (
	eventBuffer    = 256
	reloadCooldown = time.Second
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg     *config.AppConfig
	cfgPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 存储
	store   order.Store
	ledger  asset.Book
	closers []io.Closer

	// 核心服务
	publisher *notify.Publisher
	engine    *escrow.Engine
	api       *httpapi.Server

	// HTTP服务器
	apiServer     *httpServerComponent
	metricsServer *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 从配置文件创建 Container，并在运行期间监听该文件。
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	c := NewWithConfig(cfg)
	c.cfgPath = configPath
	return c, nil
}

// NewWithConfig 使用已加载的配置创建 Container（不监听配置文件）。
func NewWithConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildStorage(); err != nil {
		return fmt.Errorf("build storage failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	if err := c.registerLifecycleComponents(); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(c.cfg.Monitor)
	c.alerts = alert.NewManager([]alert.Channel{
		alert.NewLogChannel("log", c.logger.Logger),
	}, c.cfg.Alert.Throttle)

	c.logger.Info("infrastructure built", zap.String("env", c.cfg.Env))
	return nil
}

func (c *Container) buildStorage() error {
	switch c.cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.OpenOrderStore(c.cfg.Storage.OrdersPath)
		if err != nil {
			return fmt.Errorf("open order store: %w", err)
		}
		c.closers = append(c.closers, store)
		ledger, err := sqlite.OpenLedger(c.cfg.Storage.LedgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		c.closers = append(c.closers, ledger)
		c.store, c.ledger = store, ledger
	default:
		c.store, c.ledger = order.NewMemStore(), asset.NewMemLedger()
	}

	if size := c.cfg.Storage.CacheSize; size > 0 {
		cached, err := order.NewCachedStore(c.store, size)
		if err != nil {
			return fmt.Errorf("create order cache: %w", err)
		}
		c.store = cached
	}

	c.logger.Info("storage built",
		zap.String("driver", c.cfg.Storage.Driver),
		zap.Int("cache_size", c.cfg.Storage.CacheSize),
	)
	return nil
}

func (c *Container) buildCoreServices() error {
	c.publisher = notify.NewPublisher(eventBuffer)

	var err error
	c.engine, err = escrow.New(escrow.Config{
		CustodyAddress: asset.Address(c.cfg.Escrow.CustodyAddress),
	}, escrow.Components{
		Store:    c.store,
		Ledger:   c.ledger,
		Notifier: c.publisher,
		Logger:   c.logger,
		Monitor:  c.monitor,
		Alerts:   c.alerts,
	})
	if err != nil {
		return fmt.Errorf("create engine failed: %w", err)
	}

	if err := c.calibrateOpenOrders(context.Background()); err != nil {
		return err
	}

	c.api, err = httpapi.New(httpapi.Options{
		Engine:      c.engine,
		Ledger:      c.ledger,
		LedgerAdmin: c.cfg.Ledger.Admin,
		Events:      notify.NewHub(c.publisher, c.logger.Logger),
		Health:      c.HealthCheck,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}

	c.logger.Info("core services built", zap.String("custody_address", c.cfg.Escrow.CustodyAddress))
	return nil
}

// calibrateOpenOrders 重启后按注册表中的 OPEN 订单数校准指标。
func (c *Container) calibrateOpenOrders(ctx context.Context) error {
	open := order.StatusOpen
	orders, err := c.store.List(ctx, order.Filter{Status: &open})
	if err != nil {
		return fmt.Errorf("count open orders: %w", err)
	}
	c.monitor.SetOpenOrders(len(orders))
	return nil
}

func (c *Container) registerLifecycleComponents() error {
	c.apiServer = &httpServerComponent{
		name:    "api_server",
		handler: c.api.Handler(),
		addr:    c.cfg.HTTP.Addr,
		timeout: c.cfg.HTTP.ShutdownTimeout,
		logger:  c.logger,
	}
	c.lifecycle.Register(c.apiServer)

	if c.cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", c.monitor.Handler())
		c.metricsServer = &httpServerComponent{
			name:    "metrics_server",
			handler: mux,
			addr:    c.cfg.HTTP.MetricsAddr,
			timeout: c.cfg.HTTP.ShutdownTimeout,
			logger:  c.logger,
		}
		c.lifecycle.Register(c.metricsServer)
	}

	if c.cfgPath != "" {
		w, err := config.NewWatcher(c.cfgPath, reloadCooldown, c.logger.Logger)
		if err != nil {
			return err
		}
		c.lifecycle.Register(&watcherComponent{watcher: w, apply: c.applyReload})
	}
	return nil
}

// applyReload 只应用可在运行期安全调整的字段；存储与托管地址需要重启。
func (c *Container) applyReload(cfg config.AppConfig) {
	if err := c.logger.SetLevel(cfg.Log.Level); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "reload_log_level"})
	}
	c.alerts.SetThrottle(cfg.Alert.Throttle)
	if cfg.Storage != c.cfg.Storage || cfg.Escrow != c.cfg.Escrow || cfg.HTTP != c.cfg.HTTP || cfg.Ledger != c.cfg.Ledger {
		c.logger.Warn("config change requires restart",
			zap.String("storage_driver", cfg.Storage.Driver),
			zap.String("custody_address", cfg.Escrow.CustodyAddress),
		)
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started", zap.String("api_addr", c.APIAddr()))
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	var firstErr error
	if err := c.lifecycle.StopAll(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
		firstErr = err
	}

	// 存储最后关闭，保证在途请求已经结束
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.LogError(err, map[string]interface{}{"action": "close_storage"})
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if c.logger != nil {
		c.logger.Close()
	}

	return firstErr
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Engine() *escrow.Engine {
	return c.engine
}

func (c *Container) Ledger() asset.Book {
	return c.ledger
}

func (c *Container) Logger() *logger.Logger {
	return c.logger
}

// APIAddr API 实际监听地址（配置 :0 时为系统分配的端口）。
func (c *Container) APIAddr() string {
	if c.apiServer == nil {
		return ""
	}
	return c.apiServer.Addr()
}

func (c *Container) MetricsAddr() string {
	if c.metricsServer == nil {
		return ""
	}
	return c.metricsServer.Addr()
}
