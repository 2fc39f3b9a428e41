package conversation

import "github.com/soyeahso/advisor/internal/domain"

// Payloads published on the hooks bus.

type MessageEvent struct {
	PersonaID string              `json:"personaId,omitempty"`
	Message   domain.AgentMessage `json:"message"`
}

type CaptureEvent struct {
	PersonaID string         `json:"personaId,omitempty"`
	Capture   domain.Capture `json:"capture"`
}

type SessionEvent struct {
	PersonaID string `json:"personaId"`
	Messages  int    `json:"messages"`
}

type SceneEvent struct {
	PersonaID string            `json:"personaId,omitempty"`
	Scene     domain.SceneState `json:"scene"`
}

type SummaryEvent struct {
	CustomerID string             `json:"customerId"`
	SessionID  string             `json:"sessionId"`
	Summary    domain.ChatSummary `json:"summary"`
}
