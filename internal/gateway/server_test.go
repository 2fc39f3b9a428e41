package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/agent"
	"github.com/soyeahso/advisor/internal/background"
	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/conversation"
	"github.com/soyeahso/advisor/internal/customer"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/hooks"
	"github.com/soyeahso/advisor/internal/sessionctx"
	"github.com/soyeahso/advisor/internal/store"
)

const testToken = "test-token-123"

var fixedNow = time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, setting string, _ []domain.Product, _ background.Options) (string, error) {
	return "https://assets.example.com/" + setting + ".jpg", nil
}

func stubRespond(_ context.Context, sc *domain.CustomerSessionContext, content string) (*domain.AgentResponse, error) {
	if sessionctx.IsWelcome(content) {
		name := "there"
		if sc != nil && sc.Name != "" {
			name = sc.Name
		}
		return &domain.AgentResponse{SessionID: "s-1", Message: "Welcome back, " + name + "."}, nil
	}
	return &domain.AgentResponse{
		SessionID:        "s-1",
		Message:          "You said: " + content,
		SuggestedActions: []string{"Tell me more"},
	}, nil
}

type testEnv struct {
	srv       *Server
	ts        *httptest.Server
	conv      *conversation.Orchestrator
	hooks     *hooks.Manager
	summaries *store.MemorySummaryStore
}

// newTestEnv serves a gateway in token mode over a stubbed conversation.
func newTestEnv(t *testing.T, cfgFn func(*config.Config), opts ...ServerOption) *testEnv {
	t.Helper()
	t.Setenv("ADVISOR_GATEWAY_TOKEN", "")
	t.Setenv("ADVISOR_GATEWAY_PASSWORD", "")

	cfg := config.Defaults()
	cfg.Gateway.Auth.Mode = AuthModeToken
	cfg.Gateway.Auth.Token = testToken
	if cfgFn != nil {
		cfgFn(&cfg)
	}

	log := testLog()
	personas := customer.DefaultPersonas()
	summaries := store.NewMemorySummaryStore()
	profiles := customer.NewFixtureProfileStore(personas, summaries, log)
	hm := hooks.NewManager(log)
	conv := conversation.New(conversation.Config{
		Responder: &agent.StubResponder{RespondFunc: stubRespond},
		Selector: customer.NewSelector(customer.SelectorConfig{
			Personas:  personas,
			Resolver:  customer.NewMockResolver(personas),
			Profiles:  profiles,
			Summaries: summaries,
			Now:       func() time.Time { return fixedNow },
		}, log),
		Backgrounds: stubGenerator{},
		Profiles:    profiles,
		Hooks:       hm,
		Now:         func() time.Time { return fixedNow },
	}, log)
	t.Cleanup(conv.Close)

	opts = append([]ServerOption{WithHooks(hm), WithClock(func() time.Time { return fixedNow })}, opts...)
	srv := New(cfg, conv, log, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, conv: conv, hooks: hm, summaries: summaries}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func connectParams(auth *ConnectAuth) ConnectParams {
	return ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "storefront", Version: "1.0.0", Platform: "web", Mode: "storefront"},
		Auth:        auth,
	}
}

// handshake dials /ws and answers the challenge, returning the hello reply.
func (e *testEnv) handshake(t *testing.T, auth *ConnectAuth) (*websocket.Conn, Frame) {
	t.Helper()
	return e.connect(t, connectParams(auth))
}

func (e *testEnv) connect(t *testing.T, params ConnectParams) (*websocket.Conn, Frame) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))
	assert.Equal(t, FrameTypeEvent, challenge.Type)
	assert.Equal(t, EventChallenge, challenge.Event)

	var c Challenge
	require.NoError(t, json.Unmarshal(challenge.Payload, &c))
	assert.NotEmpty(t, c.Nonce)
	assert.Equal(t, fixedNow.UnixMilli(), c.TS)

	req, err := NewRequest("auth-req", "connect", params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(req))
	var hello Frame
	require.NoError(t, conn.ReadJSON(&hello))
	return conn, hello
}

func (e *testEnv) authenticatedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, hello := e.handshake(t, &ConnectAuth{Token: testToken})
	require.NotNil(t, hello.OK)
	require.True(t, *hello.OK, "handshake should succeed")
	return conn
}

// frameLog reads a connection in the background so tests can wait for
// responses and events in any order.
type frameLog struct {
	mu     sync.Mutex
	frames []Frame
	done   chan struct{}
}

func readFrames(conn *websocket.Conn) *frameLog {
	l := &frameLog{done: make(chan struct{})}
	conn.SetReadDeadline(time.Time{})
	go func() {
		defer close(l.done)
		for {
			var f Frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			l.mu.Lock()
			l.frames = append(l.frames, f)
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *frameLog) waitFor(t *testing.T, match func(Frame) bool) Frame {
	t.Helper()
	var found Frame
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		for _, f := range l.frames {
			if match(f) {
				found = f
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return found
}

func (l *frameLog) response(t *testing.T, id string) Frame {
	t.Helper()
	return l.waitFor(t, func(f Frame) bool { return f.Type == FrameTypeResponse && f.ID == id })
}

func (l *frameLog) event(t *testing.T, name string, match func(json.RawMessage) bool) Frame {
	t.Helper()
	return l.waitFor(t, func(f Frame) bool {
		return f.Type == FrameTypeEvent && f.Event == name && (match == nil || match(f.Payload))
	})
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]any{"status": "ok", "timestamp": "2026-03-09T15:04:05.000Z"}, body)
}

func TestNotFoundEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "/nonexistent", decode[map[string]string](t, resp)["path"])
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	_, helloResp := env.handshake(t, &ConnectAuth{Token: testToken})
	assert.Equal(t, FrameTypeResponse, helloResp.Type)
	assert.Equal(t, "auth-req", helloResp.ID)
	require.NotNil(t, helloResp.OK)
	assert.True(t, *helloResp.OK)

	var hello HelloOK
	require.NoError(t, json.Unmarshal(helloResp.Payload, &hello))
	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Features.Methods, "chat.send")
	assert.Contains(t, hello.Features.Events, "conversation.message")
	assert.Equal(t, maxPayload, hello.Policy.MaxPayload)
	assert.Equal(t, "stub", hello.Server.Responder)
	assert.Equal(t, domain.SpaceConsumer, hello.State.Space)
	assert.Empty(t, hello.State.PersonaID)

	assert.Eventually(t, func() bool { return env.srv.Clients() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandshakeRejected(t *testing.T) {
	tests := []struct {
		name string
		auth *ConnectAuth
		want string
	}{
		{"wrong token", &ConnectAuth{Token: "wrong-token"}, "token_mismatch"},
		{"no credentials", nil, "no credentials provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			_, errResp := env.handshake(t, tt.auth)
			assert.Equal(t, FrameTypeResponse, errResp.Type)
			require.NotNil(t, errResp.OK)
			assert.False(t, *errResp.OK)
			require.NotNil(t, errResp.Error)
			assert.Equal(t, CodeUnauthorized, errResp.Error.Code)
			assert.Equal(t, tt.want, errResp.Error.Message)
			assert.Equal(t, 0, env.srv.Clients())
		})
	}
}

func TestWebSocketHandshake_OpenGateway(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Gateway.Auth = config.GatewayAuth{Mode: AuthModeNone} })

	_, hello := env.handshake(t, nil)
	require.NotNil(t, hello.OK)
	assert.True(t, *hello.OK)
}

func TestWebSocketHandshake_ExpectsConnect(t *testing.T) {
	env := newTestEnv(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var challenge Frame
	require.NoError(t, conn.ReadJSON(&challenge))

	req, _ := NewRequest("r-1", "state.get", nil)
	require.NoError(t, conn.WriteJSON(req))

	var resp Frame
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocol, resp.Error.Code)
}

func TestWebSocketHandshake_ProtocolRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		ok       bool
	}{
		{"exact", ProtocolVersion, ProtocolVersion, true},
		{"open ended", 1, 0, true},
		{"too new", ProtocolVersion + 1, ProtocolVersion + 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			params := connectParams(&ConnectAuth{Token: testToken})
			params.MinProtocol, params.MaxProtocol = tt.min, tt.max

			_, resp := env.connect(t, params)
			require.NotNil(t, resp.OK)
			assert.Equal(t, tt.ok, *resp.OK)
			if !tt.ok {
				assert.Equal(t, CodeProtocol, resp.Error.Code)
				assert.Equal(t, "unsupported protocol version", resp.Error.Message)
			}
		})
	}
}

func TestRejectionError(t *testing.T) {
	err := error(reject("r-1", CodeUnauthorized, "token_mismatch"))
	var rj *rejection
	require.ErrorAs(t, err, &rj)
	assert.Equal(t, "r-1", rj.id)
	assert.Equal(t, "unauthorized: token_mismatch", err.Error())
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	for range authRateMaxFails {
		_, resp := env.handshake(t, &ConnectAuth{Token: "wrong"})
		require.NotNil(t, resp.Error)
	}

	// The server records the failure after its error frame; give it a beat.
	require.Eventually(t, func() bool {
		return !env.srv.authLimiter.allow("127.0.0.1:1")
	}, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketEventsForwarded(t *testing.T) {
	env := newTestEnv(t, nil)
	frames := readFrames(env.authenticatedConn(t))

	resp := env.do(t, http.MethodPost, "/api/personas/mike/select", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	welcome := frames.event(t, hooks.EventConversationMessage, func(p json.RawMessage) bool {
		var ev conversation.MessageEvent
		return json.Unmarshal(p, &ev) == nil && ev.Message.Role == domain.RoleAgent
	})
	var ev conversation.MessageEvent
	require.NoError(t, json.Unmarshal(welcome.Payload, &ev))
	assert.Equal(t, "mike", ev.PersonaID)
	assert.Equal(t, "Welcome back, Mike.", ev.Message.Content)
	assert.Positive(t, welcome.Seq)

	frames.event(t, hooks.EventSceneChanged, nil)
	frames.event(t, hooks.EventConversationState, nil)
}

func TestWebSocketEventSubscription(t *testing.T) {
	env := newTestEnv(t, nil)
	params := connectParams(&ConnectAuth{Token: testToken})
	params.Events = []string{hooks.EventSceneChanged}
	conn, hello := env.connect(t, params)
	require.True(t, *hello.OK)
	c := &rpcClient{conn: conn, frames: readFrames(conn)}

	env.do(t, http.MethodPost, "/api/personas/mike/select", nil)
	env.conv.Wait()
	c.frames.event(t, hooks.EventSceneChanged, nil)
	c.call(t, "s-1", "state.get", nil)

	c.frames.mu.Lock()
	defer c.frames.mu.Unlock()
	for _, f := range c.frames.frames {
		if f.Type == FrameTypeEvent {
			assert.Equal(t, hooks.EventSceneChanged, f.Event)
		}
	}
}

func TestWebSocketEventSubscription_Unknown(t *testing.T) {
	env := newTestEnv(t, nil)
	params := connectParams(&ConnectAuth{Token: testToken})
	params.Events = []string{"gateway.start"}

	_, resp := env.connect(t, params)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
	assert.Equal(t, 0, env.srv.Clients())
}

func TestServerStart(t *testing.T) {
	seen := make(chan string, 4)
	env := newTestEnv(t, func(c *config.Config) { c.Gateway.Port = 0 })
	env.hooks.On(hooks.EventGatewayStart, "test", func(_ context.Context, p hooks.Payload) error {
		seen <- p.Event
		return nil
	})
	env.hooks.On(hooks.EventGatewayStop, "test", func(_ context.Context, p hooks.Payload) error {
		seen <- p.Event
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.srv.Start(ctx) }()

	select {
	case ev := <-seen:
		assert.Equal(t, hooks.EventGatewayStart, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not start")
	}

	cancel()
	require.NoError(t, <-errCh)
	select {
	case ev := <-seen:
		assert.Equal(t, hooks.EventGatewayStop, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not report stop")
	}
	assert.Equal(t, 0, env.hooks.Count(hooks.Any), "event forwarding unsubscribed")
}
