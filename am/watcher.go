package am

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// ReloadCallback receives every configuration that reloaded and validated.
type ReloadCallback func(*Config) error

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// ConfigWatcher reloads the configuration when one am.toml changes on disk
// and hands the result to the registered callbacks (normally Gate.Update).
type ConfigWatcher struct {
	path    string
	fsw     *fsnotify.Watcher
	logger  *zap.SugaredLogger
	ownSave atomic.Bool // set by SetValue, absorbs the next debounced reload

	mu        sync.Mutex
	callbacks []ReloadCallback
	debounce  time.Duration
	timer     *time.Timer
	started   bool
	done      chan struct{}
}

var (
	globalWatcher   *ConfigWatcher
	globalWatcherMu sync.Mutex
)

// NewConfigWatcher watches the directory holding path, so editors that
// save by rename are seen too.
func NewConfigWatcher(path string) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", path)
	}

	return &ConfigWatcher{
		path:     filepath.Clean(path),
		fsw:      fsw,
		logger:   logger.ComponentLogger("am.watcher"),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce period. Call before Start.
func (cw *ConfigWatcher) SetDebounce(d time.Duration) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.debounce = d
}

func (cw *ConfigWatcher) OnReload(cb ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, cb)
}

// MarkOwnWrite makes the watcher skip the next change to the file. The
// events of one save are debounced into a single reload, which is the one
// skipped.
func (cw *ConfigWatcher) MarkOwnWrite() {
	cw.ownSave.Store(true)
}

func (cw *ConfigWatcher) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.started {
		return
	}
	cw.started = true
	go cw.run()
}

func (cw *ConfigWatcher) run() {
	defer close(cw.done)
	const relevant = fsnotify.Write | fsnotify.Create

	for {
		select {
		case event, ok := <-cw.fsw.Events:
			if !ok {
				return
			}
			// Siblings, including the .backN copies, don't count
			if filepath.Clean(event.Name) != cw.path || event.Op&relevant == 0 {
				continue
			}
			cw.logger.Infow("Config file changed",
				logger.FieldFile, event.Name,
				logger.FieldOperation, event.Op.String())
			cw.schedule()

		case err, ok := <-cw.fsw.Errors:
			if !ok {
				return
			}
			cw.logger.Warnw("Config watcher error", logger.FieldError, err)
		}
	}
}

func (cw *ConfigWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		if cw.ownSave.Swap(false) {
			cw.logger.Debugw("Skipping own config write", logger.FieldFile, cw.path)
			return
		}
		if err := cw.reload(); err != nil {
			cw.logger.Errorw("Config reload failed", logger.FieldError, err)
		}
	})
}

// reload re-reads every source; an invalid result leaves the callbacks
// uncalled so the previous settings stay in effect.
func (cw *ConfigWatcher) reload() error {
	Reset()
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "reloaded config is invalid")
	}

	cw.mu.Lock()
	callbacks := append([]ReloadCallback(nil), cw.callbacks...)
	cw.mu.Unlock()

	cw.logger.Infow("Config reloaded", logger.FieldFile, cw.path, logger.FieldCount, len(callbacks))
	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			cw.logger.Warnw("Config reload callback failed", logger.FieldError, err)
		}
	}
	return nil
}

// Stop closes the watcher and waits for its loop to exit.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	started := cw.started
	cw.mu.Unlock()

	err := cw.fsw.Close()
	if started {
		<-cw.done
	}
	return err
}

// SetGlobalWatcher registers the watcher SetValue notifies about its own
// writes. nil clears it.
func SetGlobalWatcher(cw *ConfigWatcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = cw
}

func GetGlobalWatcher() *ConfigWatcher {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	return globalWatcher
}
