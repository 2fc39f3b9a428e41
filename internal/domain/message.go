package domain

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// AgentMessage is one entry in the visible conversation.
type AgentMessage struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	UIDirective *UIDirective `json:"uiDirective,omitempty"`
}

// AgentResponse is the uniform reply of every response source.
type AgentResponse struct {
	SessionID        string       `json:"sessionId"`
	Message          string       `json:"message"`
	UIDirective      *UIDirective `json:"uiDirective,omitempty"`
	SuggestedActions []string     `json:"suggestedActions,omitempty"`
	Confidence       float64      `json:"confidence,omitempty"`
}
