package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// SeedWatcher 监听种子文件变化，变化后（去抖）调用 onChange
type SeedWatcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context) error
	logger   *zap.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewSeedWatcher 创建监听器，debounce <= 0 时使用默认值
func NewSeedWatcher(path string, debounce time.Duration, onChange func(ctx context.Context) error, logger *zap.Logger) *SeedWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &SeedWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Run 阻塞运行直到 ctx 取消。监听目录而非文件本身，编辑器的原子替换也能被捕获。
func (w *SeedWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching seed file", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(ctx)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("seed watcher error", zap.Error(err))
		}
	}
}

func (w *SeedWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.onChange(ctx); err != nil {
			w.logger.Error("seed file reload failed", zap.String("path", w.path), zap.Error(err))
			return
		}
		w.logger.Info("seed file reloaded", zap.String("path", w.path))
	})
}

func (w *SeedWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
