package compose

import (
	"testing"

	"github.com/gindriliunas/whatsapp-clone/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestSuccessfulSendLifecycle(t *testing.T) {
	m := NewMachine(nil)

	if err := m.Begin("hello"); err != nil {
		t.Fatal(err)
	}
	if m.Current() != Sending || m.PendingBody() != "hello" {
		t.Errorf("after Begin: state = %s, pending = %q", m.Current(), m.PendingBody())
	}
	if err := m.Succeed(); err != nil {
		t.Fatal(err)
	}
	if err := m.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if m.Current() != Idle {
		t.Errorf("final state = %s, want IDLE", m.Current())
	}
	if m.PendingBody() != "" {
		t.Errorf("pending body not cleared after successful send: %q", m.PendingBody())
	}
}

func TestFailedSendKeepsBody(t *testing.T) {
	m := NewMachine(nil)

	if err := m.Begin("draft to keep"); err != nil {
		t.Fatal(err)
	}
	if err := m.Fail(); err != nil {
		t.Fatal(err)
	}
	if m.PendingBody() != "draft to keep" {
		t.Errorf("pending body after failure = %q", m.PendingBody())
	}
	if err := m.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	// Back in Idle the body is still available for the composer to restore.
	if m.Current() != Idle || m.PendingBody() != "draft to keep" {
		t.Errorf("state = %s, pending = %q", m.Current(), m.PendingBody())
	}
}

func TestSecondBeginReplacesPendingBody(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Begin("first")
	_ = m.Fail()
	_ = m.Acknowledge()

	if err := m.Begin("second"); err != nil {
		t.Fatal(err)
	}
	if m.PendingBody() != "second" {
		t.Errorf("pending = %q, want second", m.PendingBody())
	}
}

func TestInvalidTransitions(t *testing.T) {
	m := NewMachine(nil)

	if err := m.Succeed(); err == nil {
		t.Error("Succeed from IDLE should fail")
	}
	if err := m.Fail(); err == nil {
		t.Error("Fail from IDLE should fail")
	}

	_ = m.Begin("x")
	if err := m.Begin("y"); err == nil {
		t.Error("Begin while SENDING should fail; one send in flight at a time")
	}
	if m.PendingBody() != "x" {
		t.Errorf("rejected Begin overwrote pending body: %q", m.PendingBody())
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("compose.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Begin("hello"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "compose.state" {
		t.Errorf("event kind = %q, want compose.state", evt.Kind)
	}
	change, ok := evt.Payload.(Change)
	if !ok {
		t.Fatalf("payload type = %T, want Change", evt.Payload)
	}
	if change.From != Idle || change.To != Sending || change.Body != "hello" {
		t.Errorf("change = %+v", change)
	}
}
