package scene

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/advisor/internal/background"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
)

// Generator produces background values for a setting.
type Generator interface {
	Generate(ctx context.Context, setting string, products []domain.Product, o background.Options) (string, error)
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers a callback run after every state change. It is
// called without the machine lock held.
func WithObserver(fn func(domain.SceneState)) Option {
	return func(m *Machine) { m.observers = append(m.observers, fn) }
}

// WithClock overrides the clock used for transition keys.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine applies agent directives to a scene. Background generation runs
// in the background; a result is dropped if any newer background change
// happened while it was in flight.
type Machine struct {
	gen       Generator
	log       *logging.Logger
	now       func() time.Time
	observers []func(domain.SceneState)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	state domain.SceneState
	// bgGen counts background changes; async results carry the value seen
	// when they started.
	bgGen uint64
}

// NewMachine creates a machine in the initial state.
func NewMachine(gen Generator, log *logging.Logger, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		gen:    gen,
		log:    log.Sub("scene"),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		state:  Initial(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns a copy of the current scene.
func (m *Machine) State() domain.SceneState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Clone(m.state)
}

// Dispatch applies a reducer action.
func (m *Machine) Dispatch(a Action) { m.dispatchIf(a, always) }

func (m *Machine) dispatchLocked(a Action) {
	switch a.Type {
	case SetBackground, Reset, Restore:
		m.bgGen++
	}
	m.state = Reduce(m.state, a)
}

// Reset returns the scene to its initial state.
func (m *Machine) Reset() { m.Dispatch(Action{Type: Reset}) }

// Restore replaces the scene with a snapshot.
func (m *Machine) Restore(s domain.SceneState) { m.Dispatch(Action{Type: Restore, Snapshot: s}) }

// DismissWelcome hides the welcome overlay.
func (m *Machine) DismissWelcome() { m.Dispatch(Action{Type: DismissWelcome}) }

// Apply processes one directive. State changes that need no I/O happen
// before Apply returns, including the loading placeholder for a new
// background; the background itself is resolved asynchronously.
func (m *Machine) Apply(d *domain.UIDirective) { m.ApplyWhile(d, nil) }

// ApplyWhile is Apply for a directive that can go stale. live is checked
// under the machine lock before every state change and again before a
// generated background lands; once it reports false the rest of the
// directive is dropped. live must not call back into the machine.
func (m *Machine) ApplyWhile(d *domain.UIDirective, live func() bool) {
	if d == nil {
		return
	}
	if live == nil {
		live = always
	}
	p := d.Payload
	if p == nil {
		p = &domain.UIDirectivePayload{}
	}

	switch d.Action {
	case domain.ActionShowProduct, domain.ActionShowProducts:
		m.showProducts(p, live)
	case domain.ActionChangeScene:
		m.changeScene(p, live)
	case domain.ActionInitiateCheckout:
		m.dispatchIf(Action{Type: OpenCheckout}, live)
	case domain.ActionConfirmOrder:
		m.dispatchIf(Action{Type: CloseCheckout}, live)
	case domain.ActionWelcomeScene:
		m.welcome(p, live)
	case domain.ActionResetScene:
		m.dispatchIf(Action{Type: Reset}, live)
	}
}

func always() bool { return true }

// dispatchIf is Dispatch that does nothing once live reports false.
func (m *Machine) dispatchIf(a Action, live func() bool) bool {
	if a.Type == TransitionLayout && a.TransitionKey == "" {
		a.TransitionKey = fmt.Sprintf("%s-%d", a.Layout, m.now().UnixMilli())
	}
	m.mu.Lock()
	if !live() {
		m.mu.Unlock()
		return false
	}
	m.dispatchLocked(a)
	s := Clone(m.state)
	m.mu.Unlock()
	m.notify(s)
	return true
}

// Wait blocks until in-flight background generations finish.
func (m *Machine) Wait() { m.wg.Wait() }

// Close abandons in-flight generations and waits for them to exit.
func (m *Machine) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Machine) showProducts(p *domain.UIDirectivePayload, live func() bool) {
	if n := len(p.Products); n > 0 {
		layout := domain.LayoutProductGrid
		if n == 1 {
			layout = domain.LayoutProductHero
		}
		if !m.dispatchIf(Action{Type: TransitionLayout, Layout: layout, Products: p.Products}, live) {
			return
		}
	}

	sc := sceneContextCopy(p.SceneContext)

	m.mu.Lock()
	if !live() {
		m.mu.Unlock()
		return
	}
	cur := m.state
	setting := resolveSetting(cur, sc, p.Products)
	if sc.BackgroundPrompt == "" && len(p.Products) > 0 {
		sc.BackgroundPrompt = fmt.Sprintf("A professional %s setting for showcasing home improvement products like %s. Clean, well-lit, practical atmosphere.",
			setting, productNames(p.Products, 3))
		sc.Setting = setting
	}
	skip := !shouldGenerate(p.SceneContext) || hasBackgroundFor(cur, setting)
	m.dispatchLocked(Action{Type: SetSetting, Setting: setting})
	gen := m.startLocked(skip)
	s := Clone(m.state)
	m.mu.Unlock()
	m.notify(s)

	if !skip {
		m.generate(gen, setting, p.Products, background.OptionsFrom(sc), true, live)
	}
}

func (m *Machine) changeScene(p *domain.UIDirectivePayload, live func() bool) {
	sc := sceneContextCopy(p.SceneContext)
	agentPrompt := p.SceneContext != nil && p.SceneContext.BackgroundPrompt != ""

	m.mu.Lock()
	if !live() {
		m.mu.Unlock()
		return
	}
	cur := m.state
	setting := resolveSetting(cur, sc, p.Products)
	if sc.BackgroundPrompt == "" {
		sc.BackgroundPrompt = fmt.Sprintf("A professional %s setting, clean and well-organized.", setting)
		sc.Setting = setting
		sc.GenerateBackground = domain.Bool(true)
	}
	// An agent-written prompt always regenerates.
	skip := !shouldGenerate(p.SceneContext) || (!agentPrompt && hasBackgroundFor(cur, setting))
	m.dispatchLocked(Action{Type: SetSetting, Setting: setting})
	gen := m.startLocked(skip)
	s := Clone(m.state)
	m.mu.Unlock()
	m.notify(s)

	if !skip {
		m.generate(gen, setting, p.Products, background.OptionsFrom(sc), true, live)
	}
}

func (m *Machine) welcome(p *domain.UIDirectivePayload, live func() bool) {
	msg := p.WelcomeMessage
	if msg == "" {
		msg = "Welcome!"
	}
	setting := domain.SettingNeutral
	if p.SceneContext != nil && p.SceneContext.Setting != "" {
		setting = p.SceneContext.Setting
	}
	gen := shouldGenerate(p.SceneContext)

	m.mu.Lock()
	if !live() {
		m.mu.Unlock()
		return
	}
	m.dispatchLocked(Action{Type: ShowWelcome, Welcome: domain.WelcomeData{Message: msg, Subtext: p.WelcomeSubtext}})
	m.dispatchLocked(Action{Type: SetSetting, Setting: setting})
	var token uint64
	if gen {
		token = m.startLocked(false)
	} else {
		m.dispatchLocked(Action{Type: SetBackground, Background: domain.Background{Type: domain.BackgroundGradient, Value: background.FallbackGradient}})
	}
	s := Clone(m.state)
	m.mu.Unlock()
	m.notify(s)

	if gen {
		// A failed welcome background keeps its placeholder.
		m.generate(token, setting, nil, background.OptionsFrom(p.SceneContext), false, live)
	}
}

// startLocked shows the loading placeholder unless skip is set and
// returns the generation token for the pending result.
func (m *Machine) startLocked(skip bool) uint64 {
	if skip {
		return 0
	}
	m.dispatchLocked(Action{Type: SetBackground, Background: domain.Background{Type: domain.BackgroundGenerative, IsLoading: true}})
	return m.bgGen
}

func (m *Machine) generate(token uint64, setting string, products []domain.Product, o background.Options, fallbackOnError bool, live func() bool) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		v, err := m.gen.Generate(m.ctx, setting, products, o)
		var bg domain.Background
		switch {
		case err != nil && !fallbackOnError:
			m.log.Warn().Err(err).Str("setting", setting).Msg("welcome background generation failed")
			return
		case err != nil:
			m.log.Warn().Err(err).Str("setting", setting).Msg("background generation failed")
			bg = domain.Background{Type: domain.BackgroundGradient, Value: background.FallbackGradient}
		case background.IsGradient(v):
			bg = domain.Background{Type: domain.BackgroundGradient, Value: v}
		default:
			bg = domain.Background{Type: domain.BackgroundImage, Value: v}
		}

		m.mu.Lock()
		if m.bgGen != token || !live() {
			m.mu.Unlock()
			m.log.Debug().Str("setting", setting).Msg("dropping stale background")
			return
		}
		m.dispatchLocked(Action{Type: SetBackground, Background: bg})
		s := Clone(m.state)
		m.mu.Unlock()
		m.notify(s)
	}()
}

func (m *Machine) notify(s domain.SceneState) {
	for _, fn := range m.observers {
		fn(s)
	}
}

// resolveSetting picks the target setting: the agent's choice, else the
// current one when a real image is already showing, else a guess from the
// products.
func resolveSetting(cur domain.SceneState, sc *domain.SceneContext, products []domain.Product) string {
	if sc.Setting != "" {
		return sc.Setting
	}
	if cur.Background.Type == domain.BackgroundImage && cur.Background.Value != "" {
		return cur.Setting
	}
	return InferSetting(products)
}

// hasBackgroundFor reports whether the scene already shows, or is already
// generating, a background for setting.
func hasBackgroundFor(cur domain.SceneState, setting string) bool {
	if cur.Setting != setting {
		return false
	}
	bg := cur.Background
	return (bg.Type == domain.BackgroundImage && bg.Value != "") ||
		(bg.Type == domain.BackgroundGenerative && bg.IsLoading)
}

func shouldGenerate(sc *domain.SceneContext) bool {
	return sc == nil || sc.GenerateBackground == nil || *sc.GenerateBackground
}

func sceneContextCopy(sc *domain.SceneContext) *domain.SceneContext {
	if sc == nil {
		return &domain.SceneContext{}
	}
	c := *sc
	return &c
}

func productNames(products []domain.Product, n int) string {
	names := ""
	for i, p := range products {
		if i == n {
			break
		}
		if i > 0 {
			names += ", "
		}
		names += p.Name
	}
	return names
}
