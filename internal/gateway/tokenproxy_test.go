package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/config"
)

// fakeInstance accepts client id "app" with secret "shh".
func fakeInstance(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/services/oauth2/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		switch {
		case r.PostForm.Get("client_id") == "garbled":
			w.Write([]byte("<html>oops</html>"))
		case r.PostForm.Get("client_id") != "app" || r.PostForm.Get("client_secret") != "shh":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_client","error_description":"invalid client credentials"}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"00Dxx!tok","instance_url":"https://acme.my.example.com","token_type":"Bearer"}`))
		}
	}))
	t.Cleanup(up.Close)
	return up
}

func TestAuthToken(t *testing.T) {
	var calls atomic.Int32
	up := fakeInstance(t, &calls)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantBody   string
		wantCalls  int32
	}{
		{
			name:       "empty body",
			body:       nil,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing clientId, clientSecret, or instanceUrl"}`,
		},
		{
			name:       "malformed body",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing clientId, clientSecret, or instanceUrl"}`,
		},
		{
			name:       "missing secret",
			body:       tokenRequest{ClientID: "app", InstanceURL: up.URL},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Missing clientId, clientSecret, or instanceUrl"}`,
		},
		{
			name:       "upstream rejects",
			body:       tokenRequest{ClientID: "app", ClientSecret: "wrong", InstanceURL: up.URL},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"Token request failed","detail":"{\"error\":\"invalid_client\",\"error_description\":\"invalid client credentials\"}"}`,
			wantCalls:  1,
		},
		{
			name:       "success passes through",
			body:       tokenRequest{ClientID: "app", ClientSecret: "shh", InstanceURL: up.URL + "/"},
			wantStatus: http.StatusOK,
			wantBody:   `{"access_token":"00Dxx!tok","instance_url":"https://acme.my.example.com","token_type":"Bearer"}`,
			wantCalls:  1,
		},
		{
			name:       "non-JSON success",
			body:       tokenRequest{ClientID: "garbled", ClientSecret: "shh", InstanceURL: up.URL},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error"}`,
			wantCalls:  1,
		},
		{
			name:       "unreachable instance",
			body:       tokenRequest{ClientID: "app", ClientSecret: "shh", InstanceURL: "http://127.0.0.1:1"},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			calls.Store(0)

			resp := env.do(t, http.MethodPost, "/api/auth/token", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, string(readAll(t, resp)))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAuthToken_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/auth/token", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestAuthToken_CORSPreflight(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Gateway.ControlUI.AllowedOrigins = []string{"http://localhost:5173"}
	})

	req, err := http.NewRequest(http.MethodOptions, env.ts.URL+"/api/auth/token", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return b
}
