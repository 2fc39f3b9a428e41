// Package gateway serves the storefront: the agent token proxy, the
// conversation REST API and a WebSocket stream of conversation events.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/conversation"
	"github.com/soyeahso/advisor/internal/hooks"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/store"
	"github.com/soyeahso/advisor/internal/version"
)

var (
	ErrClientClosed = errors.New("client connection closed")
	// ErrMalformedFrame is returned by ReadFrame for a message that is not
	// a JSON frame; the connection stays usable.
	ErrMalformedFrame = errors.New("malformed frame")
)

const (
	handshakeTimeout = 10 * time.Second
	hookName         = "gateway.ws"
)

// forwardedEvents are the hook events pushed to every WebSocket client.
var forwardedEvents = []string{
	hooks.EventConversationMessage,
	hooks.EventConversationState,
	hooks.EventSceneChanged,
	hooks.EventCapture,
	hooks.EventSessionSaved,
	hooks.EventSessionRestored,
	hooks.EventSummaryWritten,
}

// Server is the advisor gateway HTTP + WebSocket server.
type Server struct {
	cfg       config.Config
	auth      ResolvedAuth
	log       *logging.Logger
	conv      *conversation.Orchestrator
	summaries store.SummaryStore // optional
	hooks     *hooks.Manager     // optional
	upstream  *http.Client
	now       func() time.Time

	clients  *Hub
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	handler     http.Handler
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks forwards conversation events to WebSocket clients and reports
// gateway start and stop.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithSummaries exposes stored chat summaries.
func WithSummaries(st store.SummaryStore) ServerOption {
	return func(s *Server) { s.summaries = st }
}

// WithUpstreamClient sets the client used for token exchanges.
func WithUpstreamClient(c *http.Client) ServerOption {
	return func(s *Server) { s.upstream = c }
}

// WithClock overrides the health timestamp clock.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// New creates a gateway over conv.
func New(cfg config.Config, conv *conversation.Orchestrator, log *logging.Logger, opts ...ServerOption) *Server {
	log = log.Sub("gateway")
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log,
		conv:        conv,
		upstream:    &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
		clients:     NewHub(log.Sub("hub")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      checkWebSocketOrigin(cfg.Gateway.ControlUI.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRPCHandlers()
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	s.handler = withMiddleware(mux, log, cfg.Gateway.ControlUI.AllowedOrigins)

	if s.hooks != nil {
		s.hooks.On(hooks.Any, hookName, s.forward)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin headers.
// Requests without an Origin header (non-browser clients) are always allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return methods
}

// Clients reports the number of connected WebSocket clients.
func (s *Server) Clients() int { return s.clients.Len() }

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// listen opens the TCP listener, wrapped in TLS when configured.
func (s *Server) listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gateway: listen on %s: %w", addr, err)
	}
	tlsCfg := s.cfg.Gateway.TLS
	if !tlsCfg.Enabled {
		if s.cfg.Gateway.Bind != "loopback" {
			s.log.Warn().Msg("TLS is off on a non-loopback bind; agent client secrets travel in cleartext")
		}
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(tlsCfg.CertPath, tlsCfg.KeyPath)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("gateway: loading TLS key pair: %w", err)
	}
	s.log.Info().Str("cert", tlsCfg.CertPath).Msg("TLS enabled")
	return tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}), nil
}

// Start serves until ctx is cancelled, then drains clients and shuts the
// HTTP server down.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)
	ln, err := s.listen(addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.requestTimeout() + 5*time.Second,
		IdleTimeout:  2 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("auth", s.auth.Mode).
		Str("responder", s.conv.Responder()).
		Strs("methods", s.Methods()).
		Msg("gateway listening")
	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})
	}

	stopped := context.AfterFunc(ctx, s.shutdown)
	defer stopped()

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) shutdown() {
	s.log.Info().Msg("gateway stopping")
	if s.hooks != nil {
		s.hooks.Off(hooks.Any, hookName)
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	}
	s.clients.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("gateway shutdown incomplete")
	}
}

// forward pushes conversation hook events to every client.
func (s *Server) forward(_ context.Context, p hooks.Payload) error {
	if !slices.Contains(forwardedEvents, p.Event) || s.clients.Len() == 0 {
		return nil
	}
	s.clients.Publish(p.Event, p.Data, s.eventSeq.Add(1))
	return nil
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited: too many failed auth attempts")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Join(client)
	defer func() {
		s.clients.Leave(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// rejection is a handshake failure reported to the peer before closing.
type rejection struct {
	id   string
	code string
	msg  string
}

func (r *rejection) Error() string { return r.code + ": " + r.msg }

func reject(id, code, msg string) *rejection { return &rejection{id: id, code: code, msg: msg} }

// handshake runs challenge, connect and hello on a fresh socket.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	client, reqID, err := s.greet(conn)
	if rj := (*rejection)(nil); errors.As(err, &rj) {
		sendErrorAndClose(conn, rj.id, rj.code, rj.msg)
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	hello, err := NewResponse(reqID, s.hello(client))
	if err != nil {
		return nil, err
	}
	// Through the client so a broadcast cannot interleave.
	if err := client.Send(hello); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", client.Info.ID).
		Str("clientVersion", client.Info.Version).
		Str("authMethod", client.AuthResult.Method).
		Strs("events", client.Events).
		Msg("client connected")
	return client, nil
}

// greet sends the challenge and validates the connect request, returning
// the new client and the connect request id.
func (s *Server) greet(conn *websocket.Conn) (*Client, string, error) {
	challenge, err := NewEvent(EventChallenge, Challenge{Nonce: uuid.NewString(), TS: s.now().UnixMilli()}, 0)
	if err != nil {
		return nil, "", err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, "", fmt.Errorf("sending challenge: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, "", fmt.Errorf("reading connect: %w", err)
	}
	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, "", reject("", CodeProtocol, "malformed frame")
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return nil, "", reject(frame.ID, CodeProtocol, "expected connect request")
	}

	var params ConnectParams
	if err := frame.DecodeParams(&params); err != nil {
		return nil, "", reject(frame.ID, CodeInvalidParams, "invalid connect params")
	}
	if params.MinProtocol > ProtocolVersion || (params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion) {
		return nil, "", reject(frame.ID, CodeProtocol, "unsupported protocol version")
	}
	for _, ev := range params.Events {
		if !slices.Contains(forwardedEvents, ev) {
			return nil, "", reject(frame.ID, CodeInvalidParams, "unknown event: "+ev)
		}
	}

	auth := Authorize(s.auth, params.Auth)
	if !auth.OK {
		return nil, "", reject(frame.ID, CodeUnauthorized, auth.Reason)
	}
	return NewClient(conn, params, auth), frame.ID, nil
}

func (s *Server) hello(c *Client) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: s.version, Responder: s.conv.Responder(), ConnID: c.ConnID},
		Features: Features{
			Methods: s.Methods(),
			Events:  append([]string{EventChallenge}, forwardedEvents...),
		},
		Policy: ServerPolicy{MaxPayload: maxPayload},
		State:  s.conv.State(),
	}
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, ErrMalformedFrame):
				client.RespondError("", newErrorShape(CodeProtocol, "malformed frame"))
				continue
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			default:
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(ctx, client, frame)
	}
}

// dispatch routes a request frame to its handler.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, newErrorShape(CodeMethodNotFound, "unknown method: "+frame.Method))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout())
	defer cancel()
	handler(&RequestContext{Ctx: ctx, Client: client, Frame: frame, Server: s})
}

// sendErrorAndClose sends an error response and a close frame.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteJSON(NewErrorResponse(reqID, newErrorShape(code, message)))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
