package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnState represents the connection lifecycle state
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Envelope is a raw server-pushed event before decoding
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Session is an established transport session. Receive blocks until the next
// envelope arrives and returns an error once the session is no longer usable.
type Session interface {
	Receive() (Envelope, error)
	Close() error
}

// Transport establishes real-time sessions against the platform's push channel
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Handler is invoked for every envelope received under a subscribed event name
type Handler func(Envelope)

// HandlerID identifies a registered handler for removal via Off
type HandlerID uint64

// Config holds tunables for the connection manager
type Config struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig returns the production retry policy.
func DefaultConfig() Config {
	return Config{
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
	}
}

type registration struct {
	id      HandlerID
	handler Handler
}

// Status is a snapshot of the manager's reactive state
type Status struct {
	State             ConnState `json:"state"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	Connected         bool      `json:"connected"`
	Subscribers       int       `json:"subscribers"`
}

// Manager owns the single real-time connection for the whole process.
// Components share it through Acquire/Release reference counting so that one
// component detaching never severs the connection another still needs.
// Connection failures are never returned to callers; they are observable only
// through state transitions and the reconnect attempt counter.
type Manager struct {
	transport Transport
	config    Config
	logger    *zap.Logger

	mu         sync.Mutex
	state      ConnState
	attempts   int
	refs       int
	nextID     HandlerID
	handlers   map[string][]registration
	stateHooks []func(ConnState)
	cancel     context.CancelFunc
	session    Session
	done       chan struct{}
}

// NewManager creates a connection manager over the given transport.
func NewManager(transport Transport, cfg Config, logger *zap.Logger) *Manager {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	return &Manager{
		transport: transport,
		config:    cfg,
		logger:    logger,
		state:     StateDisconnected,
		handlers:  make(map[string][]registration),
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether a session is currently established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// ReconnectAttempts returns the number of consecutive failed attempts since
// the last successful connect.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Statusz returns a snapshot of the manager state for the console surface.
func (m *Manager) Statusz() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:             m.state,
		ReconnectAttempts: m.attempts,
		Connected:         m.state == StateConnected,
		Subscribers:       m.refs,
	}
}

// OnStateChange registers a hook invoked on every state transition.
func (m *Manager) OnStateChange(hook func(ConnState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateHooks = append(m.stateHooks, hook)
}

// On registers a handler for a named server-pushed event. Handlers for the
// same event are invoked in registration order.
func (m *Manager) On(event string, handler Handler) HandlerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.handlers[event] = append(m.handlers[event], registration{id: id, handler: handler})
	return id
}

// Off removes a handler previously registered via On.
func (m *Manager) Off(event string, id HandlerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := m.handlers[event]
	for i, reg := range regs {
		if reg.id == id {
			m.handlers[event] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// Acquire takes a reference on the shared connection, connecting on the first
// acquisition.
func (m *Manager) Acquire() {
	m.mu.Lock()
	m.refs++
	first := m.refs == 1
	m.mu.Unlock()
	if first {
		m.Connect()
	}
}

// Release drops a reference, disconnecting when the last holder releases.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.refs > 0 {
		m.refs--
	}
	last := m.refs == 0
	m.mu.Unlock()
	if last {
		m.Disconnect()
	}
}

// Connect initiates a transport session. It is idempotent while a session is
// being established or already up; a second call is a no-op.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != StateDisconnected || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(ctx, done)
}

// Disconnect tears down the session and stops any scheduled retry. This is
// the only transition that leaves the manager in a terminal disconnected
// state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	session := m.session
	done := m.done
	m.cancel = nil
	m.session = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if session != nil {
		session.Close()
	}
	if done != nil {
		<-done
	}
	m.setState(StateDisconnected)
}

// run drives the connect/receive/retry loop until the context is cancelled.
func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		session, err := m.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			m.attempts++
			attempts := m.attempts
			m.mu.Unlock()

			m.logger.Warn("Real-time connect failed",
				zap.Int("attempt", attempts),
				zap.Error(err))

			m.setState(StateDisconnected)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff(attempts)):
			}
			if ctx.Err() != nil {
				return
			}
			m.setState(StateConnecting)
			continue
		}

		m.mu.Lock()
		m.session = session
		m.attempts = 0
		m.mu.Unlock()
		m.setState(StateConnected)
		m.logger.Info("Real-time channel connected")

		m.receive(ctx, session)
		session.Close()
		m.mu.Lock()
		m.session = nil
		m.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("Real-time channel lost, reconnecting")
		m.setState(StateConnecting)
	}
}

// receive pumps envelopes from the session into registered handlers until the
// session dies or the context is cancelled.
func (m *Manager) receive(ctx context.Context, session Session) {
	for {
		envelope, err := session.Receive()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Debug("Receive failed", zap.Error(err))
			}
			return
		}
		m.dispatch(envelope)
	}
}

// dispatch invokes the handlers registered for the envelope's event name, in
// registration order. A panicking handler is isolated so one bad event cannot
// break the dispatch loop for other listeners.
func (m *Manager) dispatch(envelope Envelope) {
	m.mu.Lock()
	regs := make([]registration, len(m.handlers[envelope.Event]))
	copy(regs, m.handlers[envelope.Event])
	m.mu.Unlock()

	for _, reg := range regs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("Event handler panic",
						zap.String("event", envelope.Event),
						zap.Any("panic", r))
				}
			}()
			reg.handler(envelope)
		}()
	}
}

func (m *Manager) setState(state ConnState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	hooks := make([]func(ConnState), len(m.stateHooks))
	copy(hooks, m.stateHooks)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(state)
	}
}

// backoff returns the delay before the next attempt: exponential from the
// configured base, capped at the configured maximum.
func (m *Manager) backoff(attempt int) time.Duration {
	delay := m.config.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.BackoffMax {
			return m.config.BackoffMax
		}
	}
	if delay > m.config.BackoffMax {
		return m.config.BackoffMax
	}
	return delay
}
