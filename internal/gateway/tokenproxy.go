package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxTokenBody = 1 << 20

var errTokenNotJSON = errors.New("token response is not JSON")

// tokenRequest is what browser storefronts post to exchange their agent
// platform client credentials without exposing the secret to CORS.
type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	InstanceURL  string `json:"instanceUrl"`
}

type tokenFailure struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// handleAuthToken performs a client-credentials exchange against the
// posted instance and relays the upstream answer.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	// An empty or malformed body is treated like missing fields.
	_ = json.NewDecoder(io.LimitReader(r.Body, maxTokenBody)).Decode(&req)
	if req.ClientID == "" || req.ClientSecret == "" || req.InstanceURL == "" {
		writeError(w, http.StatusBadRequest, "Missing clientId, clientSecret, or instanceUrl")
		return
	}

	status, body, err := s.exchangeToken(r, req)
	if err != nil {
		s.log.Error().Err(err).Str("instance", req.InstanceURL).Str("requestId", requestID(r.Context())).Msg("token exchange failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if status < 200 || status > 299 {
		s.log.Warn().Int("status", status).Str("instance", req.InstanceURL).Str("requestId", requestID(r.Context())).Msg("token request rejected upstream")
		writeJSON(w, status, tokenFailure{Error: "Token request failed", Detail: string(body)})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) exchangeToken(r *http.Request, req tokenRequest) (int, []byte, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {req.ClientID},
		"client_secret": {req.ClientSecret},
	}
	endpoint := strings.TrimRight(req.InstanceURL, "/") + "/services/oauth2/token"

	up, err := http.NewRequestWithContext(r.Context(), http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("building token request: %w", err)
	}
	up.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.upstream.Do(up)
	if err != nil {
		return 0, nil, fmt.Errorf("posting token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return 0, nil, fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && !json.Valid(body) {
		return 0, nil, errTokenNotJSON
	}
	return resp.StatusCode, body, nil
}
