package conn

import (
	"github.com/fleetlink/fleetlink/pkg/types"
)

// Listener registration. Listeners are invoked in registration order and
// always outside the manager's internal locks, so a listener may call back
// into the manager without deadlocking.

// OnConnected registers a callback fired when the transport opens.
func (m *Manager) OnConnected(fn func()) {
	m.lmu.Lock()
	m.onConnected = append(m.onConnected, fn)
	m.lmu.Unlock()
}

// OnDisconnected registers a callback fired when the connection drops or is
// torn down.
func (m *Manager) OnDisconnected(fn func()) {
	m.lmu.Lock()
	m.onDisconnected = append(m.onDisconnected, fn)
	m.lmu.Unlock()
}

// OnAuthenticated registers a callback fired exactly once per successful
// authentication. The submission coordinator uses this to flush the retry
// cache.
func (m *Manager) OnAuthenticated(fn func()) {
	m.lmu.Lock()
	m.onAuthenticated = append(m.onAuthenticated, fn)
	m.lmu.Unlock()
}

// OnError registers a callback fired with the error text of connection and
// authentication failures.
func (m *Manager) OnError(fn func(string)) {
	m.lmu.Lock()
	m.onError = append(m.onError, fn)
	m.lmu.Unlock()
}

// OnStatusChanged registers a callback fired after every state transition.
func (m *Manager) OnStatusChanged(fn func(types.ConnectionState)) {
	m.lmu.Lock()
	m.onStatusChanged = append(m.onStatusChanged, fn)
	m.lmu.Unlock()
}

func (m *Manager) notifyConnected() {
	m.lmu.Lock()
	fns := append([]func(){}, m.onConnected...)
	m.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) notifyDisconnected() {
	m.lmu.Lock()
	fns := append([]func(){}, m.onDisconnected...)
	m.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) notifyAuthenticated() {
	m.lmu.Lock()
	fns := append([]func(){}, m.onAuthenticated...)
	m.lmu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (m *Manager) notifyError(msg string) {
	m.lmu.Lock()
	fns := append([]func(string){}, m.onError...)
	m.lmu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (m *Manager) notifyStatus(state types.ConnectionState) {
	m.lmu.Lock()
	fns := append([]func(types.ConnectionState){}, m.onStatusChanged...)
	m.lmu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}
