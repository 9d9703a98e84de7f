package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a profile file and optionally hot-reloads it.
type Loader struct {
	path     string
	profile  *Profile
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Profile)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
	debounce time.Duration
}

func NewLoader(path string) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:     path,
		errChan:  make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
		debounce: 100 * time.Millisecond,
	}
}

// Load reads, overrides from the environment and validates the profile.
// An empty path yields the defaults.
func (l *Loader) Load() (*Profile, error) {
	p, err := LoadFile(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.profile = p
	l.mu.Unlock()
	return p, nil
}

// Profile returns the most recently loaded profile
func (l *Loader) Profile() *Profile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.profile
}

// OnChange registers a callback run after every successful reload
func (l *Loader) OnChange(cb func(*Profile)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors delivers reload failures; the previous profile stays active
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch reloads the profile whenever the file is written or recreated.
// Editors often replace the file, so the parent directory is watched.
func (l *Loader) Watch() error {
	if l.path == "" {
		return fmt.Errorf("watch: no profile path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.watcher = watcher

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-l.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(l.debounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	p, err := LoadFile(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload profile: %w", err))
		return
	}

	l.mu.Lock()
	l.profile = p
	callbacks := append([]func(*Profile){}, l.onChange...)
	l.mu.Unlock()

	log.Printf("[Config] Reloaded %s", l.path)
	for _, cb := range callbacks {
		cb(p)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
		log.Printf("[Config] %v", err)
	}
}

// Close stops watching
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// LoadFile decodes a profile by file extension on top of the defaults,
// applies environment overrides and validates the result.
func LoadFile(path string) (*Profile, error) {
	p := DefaultProfile()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read profile: %w", err)
		}
		if err := decode(path, data, p); err != nil {
			return nil, err
		}
	}

	ApplyEnvOverrides(p)

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return p, nil
}

func decode(path string, data []byte, p *Profile) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), p); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, p); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, p); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported profile format %q (use .toml, .json, .yaml)", filepath.Ext(path))
	}
	return nil
}
