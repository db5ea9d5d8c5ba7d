package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"upbot/internal/logger"
)

// Watch 监听配置文件变更并热加载，加载失败时保留旧配置继续运行。
// 编辑器保存常触发连续多个事件，这里做了短暂合并。
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(300 * time.Millisecond)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("配置监听出错: %v", err)
			case <-pending:
				pending = nil
				cfg, err := Load(path)
				if err != nil {
					logger.Warnf("配置热加载失败，沿用旧配置: %v", err)
					continue
				}
				logger.Infof("配置已热加载: %s", path)
				onChange(cfg)
			}
		}
	}()
	return nil
}
