package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/tupldb/remote/internal/logger"
)

// Watcher reloads Config from disk whenever its source file changes,
// following the same fsnotify.NewWatcher/Add/Events loop the teacher's
// log-tailing command uses, pointed at a config file instead of a log.
type Watcher struct {
	fs   *fsnotify.Watcher
	path string
	stop chan struct{}
}

// WatchFile starts watching path for writes and calls onChange with the
// freshly reloaded Config after each one. A reload that fails validation
// is logged and skipped, leaving the previous config in effect.
func WatchFile(path string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{fs: fsw, path: path, stop: make(chan struct{})}
	go w.loop(onChange)
	return w, nil
}

func (w *Watcher) loop(onChange func(*Config)) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.Warnf("config: reload of %s failed, keeping previous: %v", w.path, err)
				continue
			}
			onChange(cfg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warnf("config: watcher error on %s: %v", w.path, err)
		case <-w.stop:
			return
		}
	}
}

// Close stops the watch loop and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fs.Close()
}
