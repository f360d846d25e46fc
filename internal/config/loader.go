package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader overlays an optional YAML file on the environment-derived base
// config and watches the file for changes.
type Loader struct {
	base     *Config
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	onError  func(error)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load. An empty path
// means the base config is used as-is.
func NewLoader(base *Config, path string) (*Loader, error) {
	l := &Loader{base: base.clone(), path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the watched file path, or "" when there is none.
func (l *Loader) Path() string { return l.path }

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// OnError registers a callback for reloads that failed; the previous config
// stays in force.
func (l *Loader) OnError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// The parent directory is watched rather than the file, so saves that replace
// the file by rename keep being seen. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, fmt.Errorf("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	target := filepath.Clean(l.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", filepath.Dir(target), err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !l.changed(ev) {
					continue
				}
				if _, err := l.Reload(); err != nil {
					l.reportError(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.reportError(fmt.Errorf("config watcher: %w", err))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// changed reports whether ev may have left new content at the config path.
// A rename away from the path only counts when a file is back in its place.
func (l *Loader) changed(ev fsnotify.Event) bool {
	switch {
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		return true
	case ev.Has(fsnotify.Rename):
		_, err := os.Stat(l.path)
		return err == nil
	}
	return false
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Config, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) reportError(err error) {
	l.mu.RLock()
	fn := l.onError
	l.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (l *Loader) load() (*Config, error) {
	cfg := l.base.clone()
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		// Keys present in the file replace the base values; maps merge.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = DefaultWorkers
	}
	if cfg.Engine.QueueDepth == 0 {
		cfg.Engine.QueueDepth = DefaultQueueDepth
	}
	if cfg.Engine.DispatchTimeoutMs == 0 {
		cfg.Engine.DispatchTimeoutMs = DefaultDispatchTimeoutMs
	}
	if cfg.DefaultTags == nil {
		cfg.DefaultTags = map[string]string{}
	}
	if cfg.OverrideTags == nil {
		cfg.OverrideTags = map[string]string{}
	}
}
