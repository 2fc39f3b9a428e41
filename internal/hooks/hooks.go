// Package hooks is the conversation lifecycle event bus. The orchestrator
// publishes; the gateway and CLI subscribe.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/advisor/internal/logging"
)

const (
	EventConversationMessage = "conversation.message"
	EventConversationState   = "conversation.state"
	EventSceneChanged        = "scene.changed"
	EventCapture             = "capture"
	EventSessionSaved        = "session.saved"
	EventSessionRestored     = "session.restored"
	EventSummaryWritten      = "summary.written"
	EventGatewayStart        = "gateway.start"
	EventGatewayStop         = "gateway.stop"
)

// Any subscribes a handler to every event.
const Any = "*"

// AllEvents lists every event the advisor emits.
var AllEvents = []string{
	EventConversationMessage,
	EventConversationState,
	EventSceneChanged,
	EventCapture,
	EventSessionSaved,
	EventSessionRestored,
	EventSummaryWritten,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload is what a handler receives. Data is one of the orchestrator's
// event values and marshals cleanly to JSON.
type Payload struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Handler reacts to one event. An error or panic is logged against the
// handler's name and the remaining handlers still run.
type Handler func(ctx context.Context, p Payload) error

type subscription struct {
	name string
	fn   Handler
}

// Manager fans events out to named subscribers.
type Manager struct {
	log *logging.Logger

	mu   sync.RWMutex
	subs map[string][]subscription

	inflight sync.WaitGroup
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{log: log.Sub("hooks"), subs: map[string][]subscription{}}
}

// On subscribes fn to event, or to everything when event is Any.
func (m *Manager) On(event, name string, fn Handler) {
	m.mu.Lock()
	m.subs[event] = append(m.subs[event], subscription{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("subscribed")
}

// Off drops every subscription called name from event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := slices.DeleteFunc(m.subs[event], func(s subscription) bool { return s.name == name })
	if len(kept) == 0 {
		delete(m.subs, event)
		return
	}
	m.subs[event] = kept
}

// targets snapshots the subscribers for event; Any subscribers go last.
func (m *Manager) targets(event string) []subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Concat(m.subs[event], m.subs[Any])
}

// Emit runs the subscribers one after another on the caller's goroutine.
func (m *Manager) Emit(ctx context.Context, event string, data any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.targets(event) {
		m.dispatch(ctx, s, p)
	}
}

// EmitAsync starts each subscriber on its own goroutine and returns.
// Wait blocks until they are done.
func (m *Manager) EmitAsync(ctx context.Context, event string, data any) {
	p := Payload{Event: event, Data: data}
	for _, s := range m.targets(event) {
		m.inflight.Go(func() { m.dispatch(ctx, s, p) })
	}
}

func (m *Manager) Wait() { m.inflight.Wait() }

func (m *Manager) dispatch(ctx context.Context, s subscription, p Payload) {
	defer func() {
		if v := recover(); v != nil {
			m.log.Error().
				Str("event", p.Event).
				Str("handler", s.name).
				Str("panic", fmt.Sprint(v)).
				Msg("hook handler panicked")
		}
	}()
	if err := s.fn(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", s.name).Msg("hook handler failed")
	}
}

// Count reports how many handlers are subscribed to exactly event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[event])
}

// Events lists the subscribed event names in sorted order.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.subs))
	for event := range m.subs {
		out = append(out, event)
	}
	slices.Sort(out)
	return out
}
