package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变化，重新加载并校验后回调。
// 监听所在目录而不是文件本身，编辑器“写临时文件再改名”的保存方式同样生效。
type Watcher struct {
	path     string
	cooldown time.Duration
	log      *zap.Logger
	watcher  *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time
	stopOnce   sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// NewWatcher 创建监听器；cooldown 内的重复事件合并为一次重载。
func NewWatcher(path string, cooldown time.Duration, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		cooldown: cooldown,
		log:      log,
		watcher:  fw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听，onUpdate 只会收到通过校验的配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	go w.watch(ctx, onUpdate)
	return nil
}

// Stop 停止监听并释放 fsnotify 句柄，可重复调用。
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		err = w.watcher.Close()
		select {
		case <-w.doneChan:
		case <-time.After(time.Second):
		}
	})
	return err
}

// LastReload 最近一次成功重载的时间。
func (w *Watcher) LastReload() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}

func (w *Watcher) watch(ctx context.Context, onUpdate func(AppConfig)) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.reload(onUpdate)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(onUpdate func(AppConfig)) {
	w.mu.Lock()
	if w.cooldown > 0 && time.Since(w.lastReload) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		// 文件可能写到一半，保留当前配置
		w.log.Warn("config reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.lastReload = time.Now()
	w.mu.Unlock()
	w.log.Info("config reloaded", zap.String("path", w.path), zap.String("log_level", cfg.Log.Level))
	if onUpdate != nil {
		onUpdate(cfg)
	}
}
