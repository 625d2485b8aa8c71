package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetlink/fleetlink/pkg/log"
	"github.com/fleetlink/fleetlink/pkg/metrics"
	"github.com/fleetlink/fleetlink/pkg/transport"
	"github.com/fleetlink/fleetlink/pkg/types"
)

// session is the slice of transport.Session the manager depends on. Tests
// substitute an in-process fake.
type session interface {
	OnConnect(fn func())
	OnDisconnect(fn func(error))
	Handle(event string, fn func(json.RawMessage))
	Connect(ctx context.Context) error
	Emit(event string, payload any) error
	Detach()
	Close() error
}

// Status is the read-only observability snapshot of the manager.
type Status struct {
	State       types.ConnectionState `json:"state"`
	LastError   string                `json:"lastError,omitempty"`
	Attempts    int                   `json:"attempts"`
	NextRetryAt time.Time             `json:"nextRetryAt,omitzero"`
}

// Manager drives the uplink connection: dial, authenticate, detect failure,
// back off, retry. It owns at most one live transport session at a time and
// replaces it wholesale on every connect attempt.
type Manager struct {
	settings      types.Settings
	clientVersion string
	logger        zerolog.Logger
	newSession    func(url string) session

	mu            sync.Mutex
	state         types.ConnectionState
	lastError     string
	attempts      int
	session       session
	authSession   session // session whose authentication has been started
	authPending   bool    // an authenticate request is awaiting its response
	wantReconnect bool
	retryTimer    *time.Timer
	nextRetryAt   time.Time

	// listener registry; invoked in registration order, outside mu
	lmu             sync.Mutex
	onConnected     []func()
	onDisconnected  []func()
	onAuthenticated []func()
	onError         []func(string)
	onStatusChanged []func(types.ConnectionState)
}

// NewManager creates a manager for the given settings. clientVersion is
// reported to the server during authentication.
func NewManager(settings types.Settings, clientVersion string) *Manager {
	return &Manager{
		settings:      settings,
		clientVersion: clientVersion,
		logger:        log.WithComponent("conn"),
		state:         types.StateDisconnected,
		newSession: func(url string) session {
			return transport.NewSession(url)
		},
	}
}

// backoffDelay returns the delay before the next reconnect as a function of
// the attempt counter before it is incremented.
func backoffDelay(attempts int) time.Duration {
	switch {
	case attempts == 0:
		return time.Second
	case attempts < 5:
		return 5 * time.Second
	default:
		return 5 * time.Minute
	}
}

// credentialKeywords classify an authentication rejection that requires
// operator action instead of a retry.
var credentialKeywords = []string{"invalid", "api key", "unauthorized"}

func isCredentialError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range credentialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Connect starts (or restarts) the connection. It is idempotent: any
// pending reconnect is cancelled and any existing session is discarded,
// with its callbacks detached first so it cannot fire stale events.
func (m *Manager) Connect() {
	m.mu.Lock()
	m.wantReconnect = true
	m.cancelRetryLocked()
	old := m.session
	s := m.newSession(m.settings.ServerURL)
	m.session = s
	m.setStateLocked(types.StateConnecting)
	m.mu.Unlock()

	if old != nil {
		old.Detach()
		old.Close()
	}

	m.wireSession(s)
	m.notifyStatus(types.StateConnecting)

	go func() {
		if err := s.Connect(context.Background()); err != nil {
			m.mu.Lock()
			if m.session != s {
				m.mu.Unlock()
				return
			}
			m.lastError = err.Error()
			m.setStateLocked(types.StateUnreachable)
			m.scheduleReconnectLocked()
			m.mu.Unlock()

			m.logger.Warn().Err(err).Msg("connect failed")
			m.notifyError(err.Error())
			m.notifyStatus(types.StateUnreachable)
		}
	}()
}

// Disconnect is the cancellation primitive: it suppresses auto-reconnect,
// cancels any pending retry, resets the attempt counter, and tears the
// session down. A late authentication response arriving afterwards is moot.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.wantReconnect = false
	m.cancelRetryLocked()
	m.attempts = 0
	m.authPending = false
	m.authSession = nil
	s := m.session
	m.session = nil
	m.setStateLocked(types.StateDisconnected)
	m.mu.Unlock()

	if s != nil {
		s.Detach()
		s.Close()
	}
	metrics.ReconnectAttempts.Set(0)
	m.notifyDisconnected()
	m.notifyStatus(types.StateDisconnected)
}

// Status returns the current observability snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:       m.state,
		LastError:   m.lastError,
		Attempts:    m.attempts,
		NextRetryAt: m.nextRetryAt,
	}
}

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether sends will be attempted directly.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == types.StateAuthenticated
}

func (m *Manager) wireSession(s session) {
	s.OnConnect(func() { m.handleConnected(s) })
	s.OnDisconnect(func(err error) { m.handleDisconnected(s, err) })
	s.Handle("auth_response", func(data json.RawMessage) { m.handleAuthResponse(s, data) })
	s.Handle("data_response", func(data json.RawMessage) { m.logServerResponse("data_response", data) })
	s.Handle("loot_response", func(data json.RawMessage) { m.logServerResponse("loot_response", data) })
	s.Handle("pong", func(json.RawMessage) { m.logger.Debug().Msg("pong") })
}

// handleConnected fires when the transport reports an open connection. The
// authentication attempt is single-flight per physical connection: a second
// connected notification for a session whose auth has already started is a
// no-op.
func (m *Manager) handleConnected(s session) {
	m.mu.Lock()
	if m.session != s || !m.wantReconnect {
		m.mu.Unlock()
		return
	}
	if m.authSession == s {
		// duplicate connected notification while auth already started
		m.mu.Unlock()
		return
	}
	m.setStateLocked(types.StateConnected)
	m.authSession = s
	m.authPending = true
	m.setStateLocked(types.StateAuthenticating)
	m.mu.Unlock()

	m.logger.Info().Msg("connected, authenticating")
	m.notifyConnected()
	m.notifyStatus(types.StateConnected)
	m.notifyStatus(types.StateAuthenticating)

	req := authRequest{
		Credential:    m.settings.APIKey,
		ClientName:    m.settings.ClientName,
		ClientVersion: m.clientVersion,
	}
	if err := s.Emit("authenticate", req); err != nil {
		m.mu.Lock()
		if m.session != s {
			m.mu.Unlock()
			return
		}
		m.authPending = false
		m.lastError = err.Error()
		m.setStateLocked(types.StateFault)
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		m.logger.Warn().Err(err).Msg("failed to send authenticate")
		m.notifyError(err.Error())
		m.notifyStatus(types.StateFault)
	}
}

func (m *Manager) handleAuthResponse(s session, data json.RawMessage) {
	var resp authResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		resp = authResponse{Success: false, Error: fmt.Sprintf("malformed auth_response: %v", err)}
	}

	m.mu.Lock()
	if m.session != s || !m.authPending {
		// late response after a disconnect or session swap
		m.mu.Unlock()
		return
	}
	m.authPending = false

	if resp.Success {
		m.attempts = 0
		m.lastError = ""
		m.cancelRetryLocked()
		m.setStateLocked(types.StateAuthenticated)
		m.mu.Unlock()

		m.logger.Info().Msg("authenticated")
		metrics.ReconnectAttempts.Set(0)
		metrics.AuthenticationsTotal.WithLabelValues("success").Inc()
		m.notifyAuthenticated()
		m.notifyStatus(types.StateAuthenticated)
		return
	}

	m.lastError = resp.Error
	var next types.ConnectionState
	if isCredentialError(resp.Error) {
		// operator must fix the credential; no automatic retry, and no
		// reconnect desire left behind for a later disconnect to act on
		next = types.StateInvalidCredential
		m.wantReconnect = false
		m.cancelRetryLocked()
		m.setStateLocked(next)
		metrics.AuthenticationsTotal.WithLabelValues("invalid_credential").Inc()
	} else {
		next = types.StateFault
		m.setStateLocked(next)
		m.scheduleReconnectLocked()
		metrics.AuthenticationsTotal.WithLabelValues("fault").Inc()
	}
	m.mu.Unlock()

	m.logger.Warn().Str("error", resp.Error).Str("state", string(next)).Msg("authentication rejected")
	m.notifyError(resp.Error)
	m.notifyStatus(next)
}

// handleDisconnected fires once per session when the transport drops, for
// any reason including after a successful authentication.
func (m *Manager) handleDisconnected(s session, err error) {
	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		return
	}
	m.authPending = false
	if m.state == types.StateInvalidCredential {
		// servers usually close the socket after rejecting a credential;
		// that drop must not disturb the operator-visible verdict or the
		// recorded rejection reason
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.lastError = err.Error()
	}
	m.setStateLocked(types.StateDisconnected)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.logger.Warn().Err(err).Msg("connection lost")
	m.notifyDisconnected()
	m.notifyStatus(types.StateDisconnected)
}

// scheduleReconnectLocked arms the retry timer unless one is already
// pending or reconnection is no longer desired. The timer handle doubles as
// the "is one pending" guard, checked and set under the manager mutex so
// concurrent disconnect notifications cannot arm two timers.
func (m *Manager) scheduleReconnectLocked() {
	if m.retryTimer != nil || !m.wantReconnect {
		return
	}
	delay := backoffDelay(m.attempts)
	m.nextRetryAt = time.Now().Add(delay)
	m.retryTimer = time.AfterFunc(delay, m.retryFired)
	m.logger.Info().
		Dur("delay", delay).
		Int("attempts", m.attempts).
		Msg("reconnect scheduled")
}

func (m *Manager) retryFired() {
	m.mu.Lock()
	m.retryTimer = nil
	m.nextRetryAt = time.Time{}
	if !m.wantReconnect {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempts := m.attempts
	m.mu.Unlock()

	metrics.ReconnectAttempts.Set(float64(attempts))
	m.logger.Info().Int("attempt", attempts).Msg("reconnecting")
	m.Connect()
}

func (m *Manager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.nextRetryAt = time.Time{}
}

func (m *Manager) setStateLocked(state types.ConnectionState) {
	m.state = state
	metrics.SetConnectionState(state)
}

func (m *Manager) logServerResponse(event string, data json.RawMessage) {
	var resp serverResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		m.logger.Debug().Str("event", event).Msg("unparseable server response")
		return
	}
	if !resp.Success {
		m.logger.Warn().Str("event", event).Str("error", resp.Error).Msg("server rejected payload")
		return
	}
	m.logger.Debug().Str("event", event).Str("message", resp.Message).Msg("server response")
}
