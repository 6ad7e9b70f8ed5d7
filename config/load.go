package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"atomic-swap-go/asset"
	"atomic-swap-go/infrastructure/logger"
	"atomic-swap-go/infrastructure/monitor"
)

// EnvPrefix 环境变量覆盖的统一前缀，例如 SWAP_HTTP_ADDR。
const EnvPrefix = "SWAP_"

// EnvDev 开发环境，允许账本管理接口。
const EnvDev = "dev"

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string         `yaml:"env" env:"ENV"`
	Log     logger.Config  `yaml:"log" envPrefix:"LOG_"`
	HTTP    HTTPConfig     `yaml:"http" envPrefix:"HTTP_"`
	Storage StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Escrow  EscrowConfig   `yaml:"escrow" envPrefix:"ESCROW_"`
	Ledger  LedgerConfig   `yaml:"ledger" envPrefix:"LEDGER_"`
	Alert   AlertConfig    `yaml:"alert" envPrefix:"ALERT_"`
	Monitor monitor.Config `yaml:"monitor"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	MetricsAddr     string        `yaml:"metricsAddr" env:"METRICS_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// StorageConfig 注册表与账本的存储后端。sqlite 时两者必须是不同文件。
type StorageConfig struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	OrdersPath string `yaml:"ordersPath" env:"ORDERS_PATH"`
	LedgerPath string `yaml:"ledgerPath" env:"LEDGER_PATH"`
	CacheSize  int    `yaml:"cacheSize" env:"CACHE_SIZE"` // 0 表示不启用订单缓存
}

type EscrowConfig struct {
	CustodyAddress string `yaml:"custodyAddress" env:"CUSTODY_ADDRESS"`
}

// LedgerConfig Admin 打开铸币接口，只允许在 dev 环境使用。
type LedgerConfig struct {
	Admin bool `yaml:"admin" env:"ADMIN"`
}

type AlertConfig struct {
	Throttle time.Duration `yaml:"throttle" env:"THROTTLE"`
}

// Default 返回可直接运行的内存配置，托管地址需要显式配置。
func Default() AppConfig {
	return AppConfig{
		Env: EnvDev,
		Log: logger.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9100",
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:    DriverMemory,
			CacheSize: 1024,
		},
		Alert:   AlertConfig{Throttle: time.Minute},
		Monitor: monitor.DefaultConfig(),
	}
}

// Load reads YAML config from path on top of Default and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from SWAP_* env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// ApplyEnv 用环境变量覆盖已设置的字段，未设置的变量不影响原值。
func ApplyEnv(cfg *AppConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if cfg.HTTP.ShutdownTimeout < 0 {
		return errors.New("http.shutdownTimeout must be >= 0")
	}
	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.Storage.OrdersPath == "" || cfg.Storage.LedgerPath == "" {
			return errors.New("storage.ordersPath/ledgerPath is required for sqlite")
		}
		if cfg.Storage.OrdersPath == cfg.Storage.LedgerPath {
			return errors.New("storage.ordersPath and storage.ledgerPath must differ")
		}
	default:
		return fmt.Errorf("storage.driver %q must be %s or %s", cfg.Storage.Driver, DriverMemory, DriverSQLite)
	}
	if cfg.Storage.CacheSize < 0 {
		return errors.New("storage.cacheSize must be >= 0")
	}
	if asset.Address(cfg.Escrow.CustodyAddress).IsZero() {
		return errors.New("escrow.custodyAddress is required (or SWAP_ESCROW_CUSTODY_ADDRESS)")
	}
	if cfg.Ledger.Admin && cfg.Env != EnvDev {
		return fmt.Errorf("ledger.admin is only allowed when env is %s", EnvDev)
	}
	if cfg.Alert.Throttle < 0 {
		return errors.New("alert.throttle must be >= 0")
	}
	return nil
}
