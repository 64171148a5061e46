// Package control is reactor.Runtime's configuration and introspection
// layer: a live key/value ConfigStore with named reload listeners, and
// a DebugProbes registry whose thunks read real loop/wheel/queue state
// on demand rather than snapshotting it once.
//
// Author: momentics <momentics@gmail.com>
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads and typed (GetInt/GetBool) atomic updates
//   - Named reload listeners fired on SetConfig
//   - Debug hooks and probe registration, platform-specific where needed
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
