package gateway

import (
	"fmt"
	"net/http"

	"github.com/soyeahso/advisor/internal/customer"
)

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/token", s.handleAuthToken)
	mux.HandleFunc("/api/auth/token", handleMethodNotAllowed(http.MethodPost))

	mux.HandleFunc("GET /api/personas", s.handlePersonas)
	mux.HandleFunc("POST /api/personas/{id}/select", s.handleSelectPersona)
	mux.HandleFunc("POST /api/personas/{id}/reset", s.handleResetPersona)
	mux.HandleFunc("POST /api/persona/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/identify", s.handleIdentify)
	mux.HandleFunc("POST /api/space", s.handleSpace)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/clear", s.handleClearChat)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)

	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all WebSocket RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("personas.list", s.rpcPersonasList)
	s.Handle("persona.select", s.rpcPersonaSelect)
	s.Handle("persona.reset", s.rpcPersonaReset)
	s.Handle("persona.refresh", s.rpcPersonaRefresh)
	s.Handle("customer.identify", s.rpcCustomerIdentify)
	s.Handle("space.set", s.rpcSpaceSet)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("chat.clear", s.rpcChatClear)
	s.Handle("state.get", s.rpcStateGet)
	s.Handle("summaries.search", s.rpcSummariesSearch)
}

func (rc *RequestContext) fail(err error) {
	code := codeFor(err)
	if code == CodeInternal {
		rc.Server.log.Error().Err(err).Str("method", rc.Frame.Method).Msg("rpc failed")
		rc.RespondError(code, "internal error")
		return
	}
	rc.RespondError(code, err.Error())
}

func (s *Server) rpcHealth(rc *RequestContext) {
	h := s.health()
	h.Version = s.version
	h.Responder = s.conv.Responder()
	h.Clients = s.clients.Len()
	rc.Respond(h)
}

type personaParams struct {
	PersonaID string `json:"personaId"`
	Space     string `json:"space,omitempty"`
}

func (rc *RequestContext) personaParams() (personaParams, bool) {
	var p personaParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return p, false
	}
	return p, true
}

func (s *Server) rpcPersonasList(rc *RequestContext) {
	p, ok := rc.personaParams()
	if !ok {
		return
	}
	list, err := s.listPersonas(p.Space)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(personasResponse{Personas: list})
}

func (s *Server) rpcPersonaSelect(rc *RequestContext) {
	p, ok := rc.personaParams()
	if !ok {
		return
	}
	if p.PersonaID == "" {
		rc.RespondError(CodeInvalidParams, "personaId is required")
		return
	}
	st, err := s.conv.SelectPersona(rc.Ctx, p.PersonaID)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(st)
}

func (s *Server) rpcPersonaReset(rc *RequestContext) {
	p, ok := rc.personaParams()
	if !ok {
		return
	}
	if _, known := s.conv.Personas().Get(p.PersonaID); !known {
		rc.fail(fmt.Errorf("%w: %s", customer.ErrPersonaNotFound, p.PersonaID))
		return
	}
	st, err := s.conv.ResetPersona(rc.Ctx, p.PersonaID)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(st)
}

func (s *Server) rpcPersonaRefresh(rc *RequestContext) {
	st, err := s.conv.Refresh(rc.Ctx)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(st)
}

func (s *Server) rpcCustomerIdentify(rc *RequestContext) {
	var p identifyRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if p.Email == "" {
		rc.RespondError(CodeInvalidParams, "email is required")
		return
	}
	st, err := s.conv.IdentifyByEmail(rc.Ctx, p.Email)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(st)
}

func (s *Server) rpcSpaceSet(rc *RequestContext) {
	var p spaceRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	space, err := parseSpace(p.Space)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(s.conv.SetSpace(space))
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	reply, err := s.conv.Send(rc.Ctx, p.Message)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(chatResponse{Reply: reply, State: s.conv.State()})
}

func (s *Server) rpcChatClear(rc *RequestContext) {
	rc.Respond(s.conv.ClearConversation())
}

func (s *Server) rpcStateGet(rc *RequestContext) {
	rc.Respond(s.conv.State())
}

type summariesParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) rpcSummariesSearch(rc *RequestContext) {
	var p summariesParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	recs, err := s.searchSummaries(rc.Ctx, p.Query, p.Limit)
	if err != nil {
		rc.fail(err)
		return
	}
	rc.Respond(summariesResponse{Summaries: recs})
}
