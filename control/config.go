// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store backing reactor.Runtime's live tuning
// knobs (num_loops, max_wait_ms, ...), with dynamic update and
// hot-reload propagation. Reload listeners are named so a Runtime can
// replace its own listener across repeated Reconfigure calls instead of
// piling up a new closure every time.

package control

import (
	"sync"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners map[string]func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make(map[string]func()),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		out[k] = v
	}
	return out
}

// GetInt reads key as an int, returning def if it is absent or holds a
// value of another type. Runtime tuning knobs like max_wait_ms are read
// this way instead of making every caller type-assert a map[string]any.
func (cs *ConfigStore) GetInt(key string, def int) int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if v, ok := cs.config[key].(int); ok {
		return v
	}
	return def
}

// GetBool reads key as a bool, returning def if it is absent or holds a
// value of another type.
func (cs *ConfigStore) GetBool(key string, def bool) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if v, ok := cs.config[key].(bool); ok {
		return v
	}
	return def
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a named listener hook called on config changes.
// Registering again under the same name replaces the previous listener
// rather than accumulating a duplicate.
func (cs *ConfigStore) OnReload(name string, fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners[name] = fn
}

// RemoveReloadListener unregisters a previously-registered named listener.
func (cs *ConfigStore) RemoveReloadListener(name string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.listeners, name)
}

// dispatchReload invokes all listeners. Must be called with mu held.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}
