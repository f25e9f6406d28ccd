package app

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iruldev/xyprissgo/internal/config"
	"github.com/iruldev/xyprissgo/internal/ipc"
	"github.com/iruldev/xyprissgo/internal/observability"
)

// configDebounceInterval collapses the burst of write events one save
// produces into a single reload, mirroring the teacher pack's
// certificate-watcher debounce idiom.
const configDebounceInterval = 500 * time.Millisecond

// configWatcher reloads ServerConfig from the file named by
// XYPRISS_CONFIG_FILE on write and hands the reloaded server.* section to
// broadcast, which the cluster parent wires to Supervisor.Broadcast so
// every worker picks up the change without a restart.
type configWatcher struct {
	path      string
	broadcast func(ipc.Envelope) error
	logger    observability.Logger

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// newConfigWatcher returns nil, nil when no config file is configured —
// there is nothing to watch, and that is not an error.
func newConfigWatcher(path string, broadcast func(ipc.Envelope) error, logger observability.Logger) (*configWatcher, error) {
	if path == "" {
		return nil, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	return &configWatcher{path: path, broadcast: broadcast, logger: logger, fsWatcher: w, stopCh: make(chan struct{})}, nil
}

// Start begins processing fsnotify events in the background. It does not
// block.
func (w *configWatcher) Start() {
	go w.loop()
}

func (w *configWatcher) loop() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", observability.Err(err))
		}
	}
}

func (w *configWatcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(configDebounceInterval, w.reload)
}

func (w *configWatcher) reload() {
	cfg, err := config.Load()
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", observability.Err(err))
		return
	}

	payload, err := json.Marshal(cfg.Server)
	if err != nil {
		w.logger.Warn("config reload: marshal server section failed", observability.Err(err))
		return
	}

	if err := w.broadcast(ipc.Envelope{ID: "config-" + time.Now().UTC().Format(time.RFC3339Nano), Kind: ipc.KindConfigUpdate, Payload: payload}); err != nil {
		w.logger.Warn("config reload: broadcast failed", observability.Err(err))
		return
	}
	w.logger.Info("config file changed, broadcast config_update to workers", observability.String("path", w.path))
}

// Stop releases the fsnotify watcher and stops accepting events.
func (w *configWatcher) Stop() {
	close(w.stopCh)
	w.debounceMu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounceMu.Unlock()
	_ = w.fsWatcher.Close()
}
