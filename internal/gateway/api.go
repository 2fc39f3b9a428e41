package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/soyeahso/advisor/internal/conversation"
	"github.com/soyeahso/advisor/internal/customer"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/store"
)

const maxAPIBody = 64 << 10

var (
	errInvalidSpace     = errors.New("space must be consumer or b2b")
	errSummariesOffline = errors.New("summary store not configured")
)

type personasResponse struct {
	Personas []customer.Persona `json:"personas"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse carries the reply separately so callers need not diff the
// message list.
type chatResponse struct {
	Reply domain.AgentMessage `json:"reply"`
	State conversation.State  `json:"state"`
}

type spaceRequest struct {
	Space string `json:"space"`
}

type identifyRequest struct {
	Email string `json:"email"`
}

type summariesResponse struct {
	Summaries []store.SummaryRecord `json:"summaries"`
}

func parseSpace(s string) (domain.Space, error) {
	switch sp := domain.Space(s); sp {
	case domain.SpaceConsumer, domain.SpaceB2B:
		return sp, nil
	}
	return "", fmt.Errorf("%w: %q", errInvalidSpace, s)
}

// statusFor maps conversation errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, customer.ErrPersonaNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrEmptyMessage), errors.Is(err, errInvalidSpace):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, errSummariesOffline):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// codeFor is statusFor for RPC error frames.
func codeFor(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusBadRequest:
		return CodeInvalidParams
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	return CodeInternal
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxAPIBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) apiContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout())
}

func (s *Server) writeConvError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("requestId", requestID(r.Context())).Msg("conversation request failed")
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func (s *Server) listPersonas(space string) ([]customer.Persona, error) {
	if space == "" {
		return s.conv.Personas().All(), nil
	}
	sp, err := parseSpace(space)
	if err != nil {
		return nil, err
	}
	return s.conv.Personas().InSpace(sp), nil
}

func (s *Server) searchSummaries(ctx context.Context, query string, limit int) ([]store.SummaryRecord, error) {
	if s.summaries == nil {
		return nil, errSummariesOffline
	}
	var (
		recs []store.SummaryRecord
		err  error
	)
	if query == "" {
		recs, err = s.summaries.List(ctx, limit)
	} else {
		recs, err = s.summaries.Search(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []store.SummaryRecord{}
	}
	return recs, nil
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	list, err := s.listPersonas(r.URL.Query().Get("space"))
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, personasResponse{Personas: list})
}

func (s *Server) handleSelectPersona(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.apiContext(r)
	defer cancel()
	st, err := s.conv.SelectPersona(ctx, r.PathValue("id"))
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResetPersona(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.conv.Personas().Get(id); !ok {
		s.writeConvError(w, r, fmt.Errorf("%w: %s", customer.ErrPersonaNotFound, id))
		return
	}
	ctx, cancel := s.apiContext(r)
	defer cancel()
	st, err := s.conv.ResetPersona(ctx, id)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.apiContext(r)
	defer cancel()
	st, err := s.conv.Refresh(ctx)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	ctx, cancel := s.apiContext(r)
	defer cancel()
	st, err := s.conv.IdentifyByEmail(ctx, req.Email)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSpace(w http.ResponseWriter, r *http.Request) {
	var req spaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	space, err := parseSpace(req.Space)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.conv.SetSpace(space))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := s.apiContext(r)
	defer cancel()
	reply, err := s.conv.Send(ctx, req.Message)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, State: s.conv.State()})
}

func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conv.ClearConversation())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conv.State())
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := s.searchSummaries(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.writeConvError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summariesResponse{Summaries: recs})
}
