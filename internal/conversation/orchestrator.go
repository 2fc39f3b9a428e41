// Package conversation drives the shopper conversation: persona switches,
// welcome flow, turns, parked sessions and chat summaries.
package conversation

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/advisor/internal/agent"
	"github.com/soyeahso/advisor/internal/background"
	"github.com/soyeahso/advisor/internal/customer"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/hooks"
	"github.com/soyeahso/advisor/internal/logging"
	"github.com/soyeahso/advisor/internal/scene"
	"github.com/soyeahso/advisor/internal/sessionctx"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSuperseded is returned by Send when the persona changed while the
	// agent was answering; the reply was dropped.
	ErrSuperseded = errors.New("conversation changed while the agent was responding")
)

// DefaultWelcomeDelay debounces the welcome request after a persona switch.
const DefaultWelcomeDelay = 300 * time.Millisecond

const summaryTimeout = 10 * time.Second

// Config wires an Orchestrator.
type Config struct {
	Responder   agent.Responder
	Selector    *customer.Selector
	Backgrounds scene.Generator
	// Profiles receives chat summaries. Optional.
	Profiles customer.ProfileStore
	// Hooks receives conversation events. Optional.
	Hooks        *hooks.Manager
	WelcomeDelay time.Duration
	Now          func() time.Time
	NewID        func() string
}

// State is what a storefront renders.
type State struct {
	PersonaID        string                  `json:"personaId,omitempty"`
	Customer         *domain.CustomerProfile `json:"customer,omitempty"`
	Space            domain.Space            `json:"space"`
	Messages         []domain.AgentMessage   `json:"messages"`
	SuggestedActions []string                `json:"suggestedActions"`
	AgentTyping      bool                    `json:"agentTyping"`
	LoadingWelcome   bool                    `json:"loadingWelcome"`
	Scene            domain.SceneState       `json:"scene"`
	Error            string                  `json:"error,omitempty"`
}

// Snapshot is a parked persona conversation.
type Snapshot struct {
	Messages         []domain.AgentMessage `json:"messages"`
	SuggestedActions []string              `json:"suggestedActions"`
	Scene            domain.SceneState     `json:"scene"`
	Agent            agent.Snapshot        `json:"agent"`
}

// Orchestrator owns one storefront conversation at a time and parks the
// others by persona.
type Orchestrator struct {
	responder agent.Responder
	selector  *customer.Selector
	profiles  customer.ProfileStore
	hooks     *hooks.Manager
	scene     *scene.Machine
	delay     time.Duration
	now       func() time.Time
	newID     func() string
	log       *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	switchMu sync.Mutex
	sendMu   sync.Mutex

	mu sync.Mutex
	// epoch changes with every persona switch, always under mu; async work
	// started under an older epoch is dropped. Reads need no lock so the
	// scene machine can check it while holding its own.
	epoch          atomic.Uint64
	personaID      string
	customer       *domain.CustomerProfile
	space          domain.Space
	errMsg         string
	messages       []domain.AgentMessage
	actions        []string
	typing         bool
	loadingWelcome bool
	session        agent.Session
	cache          map[string]Snapshot
	cancelWelcome  context.CancelFunc
}

// New creates an orchestrator with no persona selected.
func New(cfg Config, log *logging.Logger) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.WelcomeDelay < 0 {
		cfg.WelcomeDelay = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	space := cfg.Selector.Current().Space
	o := &Orchestrator{
		responder: cfg.Responder,
		selector:  cfg.Selector,
		profiles:  cfg.Profiles,
		hooks:     cfg.Hooks,
		delay:     cfg.WelcomeDelay,
		now:       cfg.Now,
		newID:     cfg.NewID,
		log:       log.Sub("conversation"),
		ctx:       ctx,
		cancel:    cancel,
		space:     space,
		actions:   DefaultActions(space),
		session:   cfg.Responder.Open(nil),
		cache:     make(map[string]Snapshot),
	}
	o.scene = scene.NewMachine(cfg.Backgrounds, log, scene.WithClock(cfg.Now), scene.WithObserver(o.sceneChanged))
	return o
}

// Personas lists the selectable shoppers.
func (o *Orchestrator) Personas() *customer.Personas { return o.selector.Personas() }

// Responder names the agent backend in use.
func (o *Orchestrator) Responder() string { return o.responder.Name() }

// State returns a copy of the conversation and scene.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	return State{
		PersonaID:        o.personaID,
		Customer:         o.customer,
		Space:            o.space,
		Messages:         cloneOrEmpty(o.messages),
		SuggestedActions: cloneOrEmpty(o.actions),
		AgentTyping:      o.typing,
		LoadingWelcome:   o.loadingWelcome,
		Scene:            o.scene.State(),
		Error:            o.errMsg,
	}
}

// Parked returns the parked conversation of a persona.
func (o *Orchestrator) Parked(personaID string) (Snapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.cache[personaID]
	return s, ok
}

// SelectPersona switches the storefront to personaID, parking the
// outgoing conversation.
func (o *Orchestrator) SelectPersona(ctx context.Context, personaID string) (State, error) {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	sel, err := o.selector.Select(ctx, personaID)
	if err != nil {
		return o.State(), err
	}
	o.switchTo(sel)
	return o.State(), nil
}

// Refresh re-resolves the active persona and keeps the conversation.
func (o *Orchestrator) Refresh(ctx context.Context) (State, error) {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	sel, err := o.selector.Refresh(ctx)
	if err != nil {
		return o.State(), err
	}
	o.switchTo(sel)
	return o.State(), nil
}

// IdentifyByEmail switches to the shopper owning email without restarting
// the conversation.
func (o *Orchestrator) IdentifyByEmail(ctx context.Context, email string) (State, error) {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	sel, err := o.selector.IdentifyByEmail(ctx, email)
	if err != nil {
		return o.State(), err
	}
	o.switchTo(sel)
	return o.State(), nil
}

// ResetPersona discards the parked conversation of personaID and, when it
// is the active persona, starts it over.
func (o *Orchestrator) ResetPersona(ctx context.Context, personaID string) (State, error) {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.mu.Lock()
	delete(o.cache, personaID)
	current := o.personaID == personaID
	o.mu.Unlock()
	o.log.Info().Str("persona", personaID).Msg("persona session reset")

	if !current {
		return o.State(), nil
	}
	sel, err := o.selector.Select(ctx, personaID)
	if err != nil {
		return o.State(), err
	}
	o.switchTo(sel)
	return o.State(), nil
}

// SetSpace switches storefront space, which deselects the persona.
func (o *Orchestrator) SetSpace(space domain.Space) State {
	o.switchMu.Lock()
	defer o.switchMu.Unlock()

	o.switchTo(o.selector.SetSpace(space))
	return o.State()
}

// ClearConversation empties the visible conversation.
func (o *Orchestrator) ClearConversation() State {
	o.mu.Lock()
	o.messages = nil
	o.actions = DefaultActions(o.space)
	st := o.stateLocked()
	o.mu.Unlock()
	o.emit(hooks.EventConversationState, st)
	return st
}

func (o *Orchestrator) switchTo(sel customer.Selection) {
	if sel.Refresh {
		o.refreshTo(sel)
		return
	}

	o.mu.Lock()
	o.stopWelcomeLocked()
	epoch := o.epoch.Add(1)

	var saved *SessionEvent
	if o.personaID != "" && o.personaID != sel.PersonaID && len(o.messages) > 0 {
		o.cache[o.personaID] = Snapshot{
			Messages:         slices.Clone(o.messages),
			SuggestedActions: slices.Clone(o.actions),
			Scene:            o.scene.State(),
			Agent:            o.session.Snapshot(),
		}
		saved = &SessionEvent{PersonaID: o.personaID, Messages: len(o.messages)}
		o.log.Info().Str("persona", o.personaID).Int("messages", len(o.messages)).Msg("persona session saved")
	}
	if prev := o.customer; prev != nil && len(o.messages) > 1 && (sel.Customer == nil || sel.Customer.ID != prev.ID) {
		o.writeSummary(prev.ID, slices.Clone(o.messages))
	}

	o.personaID = sel.PersonaID
	o.customer = sel.Customer
	o.space = sel.Space
	o.errMsg = errString(sel.Err)
	o.typing = false

	snap, cached := o.cache[sel.PersonaID]
	var sc *domain.CustomerSessionContext
	switch {
	case cached && sel.PersonaID != "":
		o.messages = slices.Clone(snap.Messages)
		o.actions = slices.Clone(snap.SuggestedActions)
		o.session = o.responder.Resume(snap.Agent)
		o.loadingWelcome = false
		o.log.Info().Str("persona", sel.PersonaID).Int("messages", len(snap.Messages)).Msg("persona session restored")
	case sel.Customer == nil:
		o.messages = nil
		o.actions = DefaultActions(sel.Space)
		o.session = o.responder.Open(nil)
		o.loadingWelcome = false
	default:
		built := sessionctx.Build(sel.Customer)
		sc = &built
		o.messages = nil
		o.actions = nil
		o.session = o.responder.Open(sc)
		o.loadingWelcome = true
	}
	session := o.session
	o.mu.Unlock()

	if cached && sel.PersonaID != "" {
		o.scene.Restore(restoredScene(snap.Scene))
	} else {
		o.scene.Reset()
	}

	if sc != nil {
		o.mu.Lock()
		if o.epoch.Load() == epoch {
			o.startWelcomeLocked(epoch, session, sc)
		}
		o.mu.Unlock()
	}

	if saved != nil {
		o.emit(hooks.EventSessionSaved, *saved)
	}
	if cached && sel.PersonaID != "" {
		o.emit(hooks.EventSessionRestored, SessionEvent{PersonaID: sel.PersonaID, Messages: len(snap.Messages)})
	}
	o.emitState()
}

func (o *Orchestrator) refreshTo(sel customer.Selection) {
	o.mu.Lock()
	o.personaID = sel.PersonaID
	o.customer = sel.Customer
	o.space = sel.Space
	o.errMsg = errString(sel.Err)
	o.mu.Unlock()
	o.log.Info().Str("persona", sel.PersonaID).Msg("customer refreshed in place")
	o.emitState()
}

// restoredScene swaps a background that never finished loading for the
// fallback gradient.
func restoredScene(s domain.SceneState) domain.SceneState {
	bg := s.Background
	incomplete := (bg.Type == domain.BackgroundGenerative && (bg.Value == "" || bg.IsLoading)) ||
		(bg.Type == domain.BackgroundImage && bg.Value == "")
	if incomplete {
		s.Background = domain.Background{Type: domain.BackgroundGradient, Value: background.FallbackGradient}
	}
	return s
}

func (o *Orchestrator) stopWelcomeLocked() {
	if o.cancelWelcome != nil {
		o.cancelWelcome()
		o.cancelWelcome = nil
	}
}

func (o *Orchestrator) startWelcomeLocked(epoch uint64, session agent.Session, sc *domain.CustomerSessionContext) {
	ctx, cancel := context.WithCancel(o.ctx)
	o.cancelWelcome = cancel
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		t := time.NewTimer(o.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		o.welcome(ctx, epoch, session, sc)
	}()
}

func (o *Orchestrator) welcome(ctx context.Context, epoch uint64, session agent.Session, sc *domain.CustomerSessionContext) {
	defer o.clearLoadingWelcome(epoch)

	resp, err := session.Respond(ctx, sessionctx.WelcomeMessage(*sc))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.log.Error().Err(err).Str("customer", sc.CustomerID).Msg("welcome failed")
		o.commit(epoch, o.newMessage(domain.RoleAgent, Apology, nil), nil, true)
		return
	}

	d := welcomeDirective(resp, sc.IdentityTier)
	actions := resp.SuggestedActions
	if len(actions) == 0 {
		actions = welcomeActions(sc)
	}
	if !o.commit(epoch, o.newMessage(domain.RoleAgent, resp.Message, d), actions, true) {
		return
	}
	o.scene.ApplyWhile(d, o.live(epoch))
}

// welcomeDirective frames a welcome reply as WELCOME_SCENE. Visitors who
// are not known never get a personalized generated backdrop.
func welcomeDirective(resp *domain.AgentResponse, tier domain.IdentityTier) *domain.UIDirective {
	var p domain.UIDirectivePayload
	if resp.UIDirective != nil && resp.UIDirective.Payload != nil {
		p = *resp.UIDirective.Payload
	}
	if resp.UIDirective == nil || resp.UIDirective.Action != domain.ActionWelcomeScene {
		if p.WelcomeMessage == "" {
			p.WelcomeMessage = strings.Split(resp.Message, ".")[0]
		}
		if p.WelcomeMessage == "" {
			p.WelcomeMessage = "Welcome!"
		}
		if p.WelcomeSubtext == "" {
			p.WelcomeSubtext = resp.Message
		}
	}
	if tier != domain.TierKnown {
		var sc domain.SceneContext
		if p.SceneContext != nil {
			sc = *p.SceneContext
		}
		sc.Setting = domain.SettingNeutral
		sc.GenerateBackground = domain.Bool(false)
		p.SceneContext = &sc
	}
	return &domain.UIDirective{Action: domain.ActionWelcomeScene, Payload: &p}
}

func (o *Orchestrator) clearLoadingWelcome(epoch uint64) {
	o.mu.Lock()
	changed := o.epoch.Load() == epoch && o.loadingWelcome
	if changed {
		o.loadingWelcome = false
	}
	var st State
	if changed {
		st = o.stateLocked()
	}
	o.mu.Unlock()
	if changed {
		o.emit(hooks.EventConversationState, st)
	}
}

// Send runs one shopper turn. Agent failures become the apology reply and
// are not returned.
func (o *Orchestrator) Send(ctx context.Context, content string) (domain.AgentMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.AgentMessage{}, ErrEmptyMessage
	}

	o.sendMu.Lock()
	defer o.sendMu.Unlock()

	user := o.newMessage(domain.RoleUser, content, nil)
	o.mu.Lock()
	epoch, session, personaID := o.epoch.Load(), o.session, o.personaID
	o.messages = append(o.messages, user)
	o.actions = nil
	o.typing = true
	st := o.stateLocked()
	o.mu.Unlock()
	o.emit(hooks.EventConversationMessage, MessageEvent{PersonaID: personaID, Message: user})
	o.emit(hooks.EventConversationState, st)

	resp, err := session.Respond(ctx, content)
	if err != nil {
		o.log.Error().Err(err).Str("persona", personaID).Msg("agent turn failed")
		reply := o.newMessage(domain.RoleAgent, Apology, nil)
		if !o.commit(epoch, reply, nil, false) {
			return reply, ErrSuperseded
		}
		return reply, nil
	}

	d := turnDirective(resp.UIDirective)
	actions := resp.SuggestedActions
	if actions == nil {
		actions = []string{}
	}
	reply := o.newMessage(domain.RoleAgent, resp.Message, d)
	if !o.commit(epoch, reply, actions, false) {
		return reply, ErrSuperseded
	}

	if d != nil && d.Action == domain.ActionIdentifyCustomer && d.Payload != nil && d.Payload.CustomerEmail != "" {
		if _, err := o.IdentifyByEmail(ctx, d.Payload.CustomerEmail); err != nil {
			o.log.Warn().Err(err).Msg("customer identification failed")
		}
	}
	if d != nil && d.Payload != nil {
		for _, c := range d.Payload.Captures {
			o.emit(hooks.EventCapture, CaptureEvent{PersonaID: personaID, Capture: c})
		}
	}
	if d != nil && d.Action != domain.ActionIdentifyCustomer {
		o.scene.ApplyWhile(d, o.live(epoch))
	}
	return reply, nil
}

// turnDirective keeps welcome framing out of ordinary turns.
func turnDirective(d *domain.UIDirective) *domain.UIDirective {
	if d == nil || d.Action != domain.ActionWelcomeScene {
		return d
	}
	out := *d
	if len(d.Products()) > 0 {
		out.Action = domain.ActionShowProducts
	} else {
		out.Action = domain.ActionChangeScene
	}
	return &out
}

// commit appends an agent reply if epoch is still current and clears the
// matching transient flag. A nil actions leaves the suggestions alone.
func (o *Orchestrator) commit(epoch uint64, msg domain.AgentMessage, actions []string, welcome bool) bool {
	o.mu.Lock()
	if o.epoch.Load() != epoch {
		o.mu.Unlock()
		o.log.Debug().Str("message", msg.ID).Msg("dropping reply for superseded conversation")
		return false
	}
	o.messages = append(o.messages, msg)
	if actions != nil {
		o.actions = slices.Clone(actions)
	}
	if welcome {
		o.loadingWelcome = false
	} else {
		o.typing = false
	}
	personaID := o.personaID
	st := o.stateLocked()
	o.mu.Unlock()

	o.emit(hooks.EventConversationMessage, MessageEvent{PersonaID: personaID, Message: msg})
	o.emit(hooks.EventConversationState, st)
	return true
}

// live reports whether the conversation started under epoch is still the
// current one.
func (o *Orchestrator) live(epoch uint64) func() bool {
	return func() bool { return o.epoch.Load() == epoch }
}

// writeSummary persists a digest of a departed conversation in the
// background. Failures are logged only.
func (o *Orchestrator) writeSummary(customerID string, messages []domain.AgentMessage) {
	if o.profiles == nil {
		return
	}
	sum := Summarize(messages, o.now())
	sessionID := o.newID()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), summaryTimeout)
		defer cancel()

		if err := o.profiles.WriteChatSummary(ctx, customerID, sessionID, sum); err != nil {
			o.log.Warn().Err(err).Str("customer", customerID).Msg("chat summary write failed")
			return
		}
		o.emit(hooks.EventSummaryWritten, SummaryEvent{CustomerID: customerID, SessionID: sessionID, Summary: sum})
	}()
}

func (o *Orchestrator) sceneChanged(s domain.SceneState) {
	o.mu.Lock()
	personaID := o.personaID
	o.mu.Unlock()
	o.emit(hooks.EventSceneChanged, SceneEvent{PersonaID: personaID, Scene: s})
}

func (o *Orchestrator) newMessage(role domain.Role, content string, d *domain.UIDirective) domain.AgentMessage {
	return domain.AgentMessage{
		ID:          o.newID(),
		Role:        role,
		Content:     content,
		Timestamp:   o.now(),
		UIDirective: d,
	}
}

func (o *Orchestrator) emitState() {
	o.emit(hooks.EventConversationState, o.State())
}

func (o *Orchestrator) emit(event string, data any) {
	if o.hooks == nil {
		return
	}
	o.hooks.Emit(o.ctx, event, data)
}

// Wait blocks until pending welcomes, summary writes and background
// generations finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
	o.scene.Wait()
}

// Close cancels pending welcomes and waits for background work.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
	o.scene.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func cloneOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
