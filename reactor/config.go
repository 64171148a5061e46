// File: reactor/config.go
// Package reactor is the public handle layer spec.md §1 describes: a
// small set of handles (Socket, Timer) over the
// internal poller/wheel/queue/loop/socket machinery, plus a Runtime
// that supervises a fixed pool of loops the way a production server
// shards connections across worker threads.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"time"

	"go.uber.org/zap"

	"github.com/hiowire/reactor/api"
)

// Config tunes a Runtime and every loop it supervises.
type Config struct {
	NumLoops    int
	PollType    api.PollType
	MaxWaitMs   int
	PinOSThread bool
	Logger      *zap.Logger

	// EnableWatchdog turns on a raulk/go-watchdog heap monitor that
	// triggers an orderly Shutdown when the process crosses MemLimit.
	EnableWatchdog bool
	MemLimitBytes  uint64
	WatchInterval  time.Duration
}

// DefaultConfig returns a single-loop runtime with auto-selected poll
// backend and no memory watchdog.
func DefaultConfig() Config {
	return Config{
		NumLoops:      1,
		PollType:      api.PollNone,
		MaxWaitMs:     1000,
		Logger:        zap.NewNop(),
		WatchInterval: 15 * time.Second,
	}
}
