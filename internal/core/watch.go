package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchPresets 监听 presets.json 所在目录，文件被外部修改后热加载规则。
// 事件做 500ms 防抖，自己落盘触发的事件也会走一次重载，结果等价。
func WatchPresets(ctx context.Context, presets *PresetStore) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	path := presets.file.Path()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var pending *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(500*time.Millisecond, func() {
					if err := presets.Reload(); err != nil {
						logrus.WithError(err).Warn("reload presets failed")
						return
					}
					logrus.Infof("presets reloaded, %d rules", presets.Count())
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warn("preset watcher error")
			}
		}
	}()

	return nil
}
