package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"atomic-swap-go/internal/container"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "覆盖 Prometheus metrics 监听地址")
	flag.Parse()

	if *metricsAddr != "" {
		os.Setenv("SWAP_HTTP_METRICS_ADDR", *metricsAddr)
	}

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}
	lg := c.Logger()

	// 非 systemd 环境下 SdNotify 返回 false，不视为错误
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify ready failed", zap.Error(err))
	} else if sent {
		lg.Info("notified systemd ready")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	lg.Info("shutdown signal received", zap.String("signal", sig.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if err := c.Stop(); err != nil {
		os.Exit(1)
	}
}
