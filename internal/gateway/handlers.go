package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// isoMillis matches the timestamp shape storefront clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// fills Status and Timestamp; the RPC method adds the rest.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
	Responder string `json:"responder,omitempty"`
	Clients   int    `json:"clients,omitempty"`
}

func (s *Server) health() HealthResponse {
	return HealthResponse{Status: "ok", Timestamp: s.now().UTC().Format(isoMillis)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func handleMethodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Ctx    context.Context
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	if err := rc.Client.RespondError(rc.Frame.ID, newErrorShape(code, message)); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	return rc.Frame.DecodeParams(target)
}

// requestTimeout bounds one REST call or RPC into the conversation.
func (s *Server) requestTimeout() time.Duration {
	if t := s.cfg.Agent.TimeoutSeconds; t > 0 {
		return time.Duration(t)*time.Second + 5*time.Second
	}
	return 35 * time.Second
}
