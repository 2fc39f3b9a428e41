// Package background picks scene backdrops: a preseeded image when one is
// available for the setting, otherwise a subdued per-setting gradient.
package background

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
)

// FallbackGradient is shown when nothing better is available.
const FallbackGradient = "linear-gradient(135deg, #1a2332 0%, #1e293b 50%, #0f172a 100%)"

var gradients = map[string]string{
	domain.SettingNeutral:    "linear-gradient(135deg, #1a2332 0%, #1e3a4f 50%, #1a2332 100%)",
	domain.SettingWorkshop:   "linear-gradient(135deg, #2c2416 0%, #3d3020 50%, #2c2416 100%)",
	domain.SettingKitchen:    "linear-gradient(135deg, #2a2520 0%, #3a3530 50%, #2a2520 100%)",
	domain.SettingBathroom:   "linear-gradient(135deg, #1e2a2e 0%, #2a3a40 50%, #1e2a2e 100%)",
	domain.SettingOutdoor:    "linear-gradient(135deg, #1a2e1a 0%, #2a4030 50%, #1a3020 100%)",
	domain.SettingGarage:     "linear-gradient(135deg, #252525 0%, #353535 50%, #252525 100%)",
	domain.SettingLivingRoom: "linear-gradient(135deg, #2a2420 0%, #3a3430 50%, #2a2420 100%)",
	domain.SettingJobsite:    "linear-gradient(135deg, #2a2a20 0%, #3a3a30 50%, #2a2a20 100%)",
	domain.SettingWarehouse:  "linear-gradient(135deg, #1f2028 0%, #2a2b35 50%, #1f2028 100%)",
}

// Gradient returns the gradient for a setting; unknown settings get the
// neutral one.
func Gradient(setting string) string {
	if g, ok := gradients[setting]; ok {
		return g
	}
	return gradients[domain.SettingNeutral]
}

// IsGradient reports whether a generated value is a CSS gradient rather
// than an image location.
func IsGradient(value string) bool {
	return strings.HasPrefix(value, "linear-gradient")
}

// Options are the directive hints that shape a background.
type Options struct {
	CMSAssetID       string
	CMSTag           string
	EditMode         bool
	BackgroundPrompt string
	SceneAssetID     string
	ImageURL         string
	Mood             string
}

// OptionsFrom extracts background options from a directive scene context.
func OptionsFrom(sc *domain.SceneContext) Options {
	if sc == nil {
		return Options{}
	}
	return Options{
		CMSAssetID:       sc.CMSAssetID,
		CMSTag:           sc.CMSTag,
		EditMode:         sc.EditMode,
		BackgroundPrompt: sc.BackgroundPrompt,
		SceneAssetID:     sc.SceneAssetID,
		ImageURL:         sc.ImageURL,
		Mood:             sc.Mood,
	}
}

// CacheKey identifies equivalent background requests.
func CacheKey(setting string, o Options) string {
	switch {
	case o.BackgroundPrompt != "":
		p := o.BackgroundPrompt
		if r := []rune(p); len(r) > 60 {
			p = string(r[:60])
		}
		return setting + "-prompt-" + p
	case o.CMSAssetID != "":
		return o.CMSAssetID
	case o.CMSTag != "":
		return o.CMSTag
	default:
		return setting
	}
}

// Asset is a preseeded background image.
type Asset struct {
	ID      string
	Setting string
	Path    string
	Tags    []string
}

// Preseeded lists the shipped background images. Pro scenes lean on
// gradients, so they have few variants.
var Preseeded = []Asset{
	{ID: "workshop-1", Setting: domain.SettingWorkshop, Path: "/assets/backgrounds/workshop-1.jpg", Tags: []string{"workshop", "tools"}},
	{ID: "workshop-2", Setting: domain.SettingWorkshop, Path: "/assets/backgrounds/workshop-2.jpg", Tags: []string{"workshop", "diy"}},
	{ID: "kitchen-1", Setting: domain.SettingKitchen, Path: "/assets/backgrounds/kitchen-1.jpg", Tags: []string{"kitchen", "renovation"}},
	{ID: "kitchen-2", Setting: domain.SettingKitchen, Path: "/assets/backgrounds/kitchen-2.jpg", Tags: []string{"kitchen", "modern"}},
	{ID: "bathroom-1", Setting: domain.SettingBathroom, Path: "/assets/backgrounds/bathroom-1.jpg", Tags: []string{"bathroom", "renovation"}},
	{ID: "outdoor-1", Setting: domain.SettingOutdoor, Path: "/assets/backgrounds/outdoor-1.jpg", Tags: []string{"outdoor", "deck", "patio"}},
	{ID: "outdoor-2", Setting: domain.SettingOutdoor, Path: "/assets/backgrounds/outdoor-2.jpg", Tags: []string{"outdoor", "garden"}},
	{ID: "living-room-1", Setting: domain.SettingLivingRoom, Path: "/assets/backgrounds/living-room-1.jpg", Tags: []string{"living-room", "interior"}},
	{ID: "garage-1", Setting: domain.SettingGarage, Path: "/assets/backgrounds/garage-1.jpg", Tags: []string{"garage", "storage"}},
	{ID: "jobsite-1", Setting: domain.SettingJobsite, Path: "/assets/backgrounds/jobsite-1.jpg", Tags: []string{"jobsite", "construction"}},
	{ID: "warehouse-1", Setting: domain.SettingWarehouse, Path: "/assets/backgrounds/warehouse-1.jpg", Tags: []string{"warehouse", "supply"}},
	{ID: "neutral-1", Setting: domain.SettingNeutral, Path: "/assets/backgrounds/neutral-1.jpg", Tags: []string{"neutral", "default"}},
	{ID: "neutral-2", Setting: domain.SettingNeutral, Path: "/assets/backgrounds/neutral-2.jpg", Tags: []string{"neutral", "minimal"}},
}

// Option configures a Generator.
type Option func(*Generator)

// WithAssets replaces the preseeded asset list.
func WithAssets(assets []Asset) Option {
	return func(g *Generator) { g.assets = assets }
}

// WithHTTPClient sets the client used for asset HEAD checks.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.client = c }
}

// WithRand sets the random source for variant rotation.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// Generator resolves backgrounds and memoizes them per cache key for the
// life of the process. Concurrent requests for one key share one lookup.
type Generator struct {
	baseURL string
	assets  []Asset
	client  *http.Client
	log     *logging.Logger

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]string
	shown map[string]bool
	rng   *rand.Rand
}

// New creates a Generator. Preseeded images are HEAD-checked against
// cfg.AssetBaseURL; an empty base URL skips them entirely.
func New(cfg config.BackgroundConfig, log *logging.Logger, opts ...Option) *Generator {
	g := &Generator{
		baseURL: strings.TrimRight(cfg.AssetBaseURL, "/"),
		assets:  Preseeded,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log.Sub("background"),
		cache:   make(map[string]string),
		shown:   make(map[string]bool),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d)),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns a background value for setting: an image location or a
// CSS gradient. It fails only when ctx is done before a value is known.
func (g *Generator) Generate(ctx context.Context, setting string, products []domain.Product, o Options) (string, error) {
	key := CacheKey(setting, o)

	g.mu.Lock()
	if v, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return v, nil
	}
	g.mu.Unlock()

	// The lookup is shared, so it must outlive any single caller.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		g.mu.Lock()
		if v, ok := g.cache[key]; ok {
			g.mu.Unlock()
			return v, nil
		}
		g.mu.Unlock()

		v := g.resolve(shared, setting, o)
		g.mu.Lock()
		g.cache[key] = v
		g.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.Val.(string), nil
	}
}

func (g *Generator) resolve(ctx context.Context, setting string, o Options) string {
	if o.ImageURL != "" {
		return o.ImageURL
	}
	if !o.EditMode {
		if a, ok := g.pick(setting); ok && g.exists(ctx, a) {
			g.log.Debug().Str("setting", setting).Str("path", a.Path).Msg("using preseeded background")
			return a.Path
		}
	}
	return Gradient(setting)
}

// pick rotates through the variants of a setting, avoiding repeats until
// every variant has been shown.
func (g *Generator) pick(setting string) (Asset, bool) {
	if g.baseURL == "" {
		return Asset{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var matches, unseen []Asset
	for _, a := range g.assets {
		if a.Setting != setting {
			continue
		}
		matches = append(matches, a)
		if !g.shown[a.ID] {
			unseen = append(unseen, a)
		}
	}
	if len(matches) == 0 {
		return Asset{}, false
	}

	pool := unseen
	if len(pool) == 0 {
		pool = matches
		clear(g.shown)
	}
	a := pool[g.rng.IntN(len(pool))]
	g.shown[a.ID] = true
	return a, true
}

// exists HEAD-checks an asset on the asset host.
func (g *Generator) exists(ctx context.Context, a Asset) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.baseURL+a.Path, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Err(err).Str("path", a.Path).Msg("preseeded background unavailable")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Prewarm resolves the backgrounds of the given settings concurrently so
// the first scene change does not wait on asset checks.
func (g *Generator) Prewarm(ctx context.Context, settings ...string) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, s := range settings {
		eg.Go(func() error {
			_, err := g.Generate(ctx, s, nil, Options{})
			return err
		})
	}
	return eg.Wait()
}

// Settings lists every setting with a known gradient.
func Settings() []string {
	return []string{
		domain.SettingNeutral, domain.SettingWorkshop, domain.SettingKitchen,
		domain.SettingBathroom, domain.SettingOutdoor, domain.SettingGarage,
		domain.SettingLivingRoom, domain.SettingJobsite, domain.SettingWarehouse,
	}
}
