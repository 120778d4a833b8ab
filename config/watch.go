package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch starts reloading the YAML file whenever it changes on disk. The
// watcher stops when Close is called on the config. A reload that fails to
// parse keeps the previous configuration and logs the error.
func (c *YamlConfig) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(c.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", c.configPath, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := c.Update(); err != nil {
					c.logger.Error("config reload failed, keeping previous state",
						zap.String("path", c.configPath),
						zap.Error(err),
					)
					continue
				}
				c.logger.Info("configuration reloaded", zap.String("path", c.configPath))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error("config watcher error", zap.Error(err))
			case <-done:
				return
			}
		}
	}()

	c.mu.Lock()
	c.closeWatcher = func() {
		close(done)
		watcher.Close()
	}
	c.mu.Unlock()
	return nil
}
