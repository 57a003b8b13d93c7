package models

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Network Monitor
//
// Tracks assumed connectivity and broadcasts online/offline transitions.
// This is a passive observation layer: it reports what the platform claims,
// not whether the remote API is actually reachable. False positives are
// tolerated by the sync engine's retry logic.
// ============================================================================

// NetMonitor holds the current assumed connectivity and notifies observers
// on transition in either direction.
type NetMonitor struct {
	online   atomic.Bool
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(online bool)
}

// NewNetMonitor creates a monitor initialized to the given state.
// Pass SystemOnline() for the platform-reported state.
func NewNetMonitor(initial bool) *NetMonitor {
	m := &NetMonitor{handlers: make(map[int]func(bool))}
	m.online.Store(initial)
	return m
}

// IsOnline returns the current assumed connectivity.
func (m *NetMonitor) IsOnline() bool {
	return m.online.Load()
}

// SetOnline records a connectivity change. Handlers fire only on an actual
// transition, not on repeated reports of the same state.
func (m *NetMonitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	logger.Info("Connectivity changed", "online", online)

	m.mu.Lock()
	fns := make([]func(bool), 0, len(m.handlers))
	for _, fn := range m.handlers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// OnChange registers a transition handler and returns an unsubscribe func.
func (m *NetMonitor) OnChange(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.handlers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

// SystemOnline reports the platform's current view of connectivity: true
// when any non-loopback interface carries an address. Like a browser's
// online flag this says nothing about API reachability.
func SystemOnline() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return true // Assume online; the retry path absorbs mistakes
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
