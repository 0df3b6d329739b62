// Package compose tracks the send lifecycle of the message composer. The
// machine keeps the TUI honest: one send in flight at a time, and the typed
// body survives a failed send so the user never retypes it.
package compose

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
)

// State represents a composer send state.
type State string

const (
	Idle    State = "IDLE"
	Sending State = "SENDING"
	Sent    State = "SENT"
	Failed  State = "FAILED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:    {Sending},
	Sending: {Sent, Failed},
	Sent:    {Idle},
	Failed:  {Idle},
}

// Change is the payload for composer state change events.
type Change struct {
	From State
	To   State
	Body string
}

// Machine tracks and enforces composer send-state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	pending string
	bus     *bus.Bus
}

// NewMachine creates a composer machine starting in Idle.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// PendingBody returns the body of the in-flight or failed send. After a
// failure the composer restores this into the input field.
func (m *Machine) PendingBody() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

// Begin moves Idle -> Sending and records the body being sent.
func (m *Machine) Begin(body string) error {
	return m.transition(Sending, func() { m.pending = body })
}

// Succeed moves Sending -> Sent.
func (m *Machine) Succeed() error {
	return m.transition(Sent, nil)
}

// Fail moves Sending -> Failed, keeping the pending body.
func (m *Machine) Fail() error {
	return m.transition(Failed, nil)
}

// Acknowledge returns the machine to Idle. From Sent the pending body is
// cleared; from Failed it is kept so the caller can restore it.
func (m *Machine) Acknowledge() error {
	m.mu.RLock()
	from := m.current
	m.mu.RUnlock()
	return m.transition(Idle, func() {
		if from == Sent {
			m.pending = ""
		}
	})
}

func (m *Machine) transition(to State, apply func()) error {
	m.mu.Lock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		from := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	from := m.current
	m.current = to
	if apply != nil {
		apply()
	}
	body := m.pending
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "compose.state",
			Timestamp: time.Now(),
			Payload: Change{
				From: from,
				To:   to,
				Body: body,
			},
		})
	}
	return nil
}
