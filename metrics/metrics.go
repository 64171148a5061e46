// File: metrics/metrics.go
// Package metrics replaces the teacher's control/metrics.go
// string-keyed map registry with a github.com/prometheus/client_golang
// registry of fixed, typed collectors, one per quantity spec.md's
// components actually produce: loop iterations, timers fired/
// cancelled, bytes sent/received, sockets opened/closed.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the reactor core updates. A nil
// *Registry is not usable (its collectors are fields), so components
// that take an optional *Registry check it for nil before each update.
type Registry struct {
	reg *prometheus.Registry

	LoopIterations  prometheus.Counter
	TimersFired     prometheus.Counter
	TimersCancelled prometheus.Counter
	BytesSent       prometheus.Counter
	BytesReceived   prometheus.Counter
	SocketsOpened   prometheus.Counter
	SocketsClosed   prometheus.Counter
	TasksRun        prometheus.Counter
}

// New creates a Registry backed by a fresh prometheus.Registry (not the
// global DefaultRegisterer, so embedding apps can mount it wherever
// they like).
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		LoopIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "loop_iterations_total",
			Help: "Number of EventLoop.Loop main-loop iterations.",
		}),
		TimersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "timers_fired_total",
			Help: "Number of timing-wheel timers that fired.",
		}),
		TimersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "timers_cancelled_total",
			Help: "Number of timing-wheel timers cancelled before firing.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "bytes_sent_total",
			Help: "Bytes written to sockets.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "bytes_received_total",
			Help: "Bytes read from sockets.",
		}),
		SocketsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "sockets_opened_total",
			Help: "TCPSockets that reached the OPEN state.",
		}),
		SocketsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "sockets_closed_total",
			Help: "TCPSockets that reached the CLOSED state.",
		}),
		TasksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor", Name: "tasks_run_total",
			Help: "Tasks drained and run from the MPSC task queue.",
		}),
	}
	reg.MustRegister(
		m.LoopIterations, m.TimersFired, m.TimersCancelled,
		m.BytesSent, m.BytesReceived,
		m.SocketsOpened, m.SocketsClosed, m.TasksRun,
	)
	return m
}

// Gatherer exposes the underlying prometheus.Registry for wiring into
// an HTTP /metrics handler via promhttp.HandlerFor.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }
