package gateway

import (
	"encoding/json"

	"github.com/soyeahso/advisor/internal/conversation"
)

// ProtocolVersion is the only protocol revision this server speaks.
const ProtocolVersion = 1

// maxPayload bounds inbound WebSocket messages.
const maxPayload = 1 << 20

// EventChallenge opens every handshake.
const EventChallenge = "connect.challenge"

const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal_error"
)

// Frame is the single envelope on the socket. Type selects which of the
// request, response or event fields are set.
type Frame struct {
	Type string `json:"type"`

	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// DecodeParams unmarshals request params into v. Absent params leave v
// untouched.
func (f Frame) DecodeParams(v any) error {
	if len(f.Params) == 0 || string(f.Params) == "null" {
		return nil
	}
	return json.Unmarshal(f.Params, v)
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *ErrorShape) Error() string { return e.Code + ": " + e.Message }

// newErrorShape marks the codes a storefront may simply retry: a reply
// dropped by a persona switch, or a collaborator that is not wired yet.
func newErrorShape(code, message string) ErrorShape {
	return ErrorShape{
		Code:      code,
		Message:   message,
		Retryable: code == CodeConflict || code == CodeUnavailable,
	}
}

// Challenge is the payload of the connect.challenge event.
type Challenge struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// ConnectParams are sent by the client in the initial "connect" request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
	// Events subscribes to a subset of the pushed events.
	Events []string `json:"events,omitempty"`
}

// ClientInfo identifies the connecting storefront.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"` // "storefront" | "console"
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK answers a successful connect. State lets a storefront render the
// current conversation before the first event arrives.
type HelloOK struct {
	Protocol int                `json:"protocol"`
	Server   ServerInfo         `json:"server"`
	Features Features           `json:"features"`
	Policy   ServerPolicy       `json:"policy"`
	State    conversation.State `json:"state"`
}

type ServerInfo struct {
	Version   string `json:"version"`
	Responder string `json:"responder"`
	ConnID    string `json:"connId"`
}

// Features lists the RPC methods and the events pushed to every client.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

type ServerPolicy struct {
	MaxPayload int `json:"maxPayload"`
}

func encodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// NewRequest builds a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encodePayload(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse builds a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Payload: raw}, nil
}

// NewErrorResponse builds a failed response frame.
func NewErrorResponse(id string, e ErrorShape) Frame {
	ok := false
	return Frame{Type: FrameTypeResponse, ID: id, OK: &ok, Error: &e}
}

// NewEvent builds a pushed event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}
