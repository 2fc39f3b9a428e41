package background

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/domain"
	"github.com/soyeahso/advisor/internal/logging"
)

func testLogger() *logging.Logger { return logging.New(nil, "silent") }

func assetServer(t *testing.T, missing ...string) (*httptest.Server, *atomic.Int32) {
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		heads.Add(1)
		for _, m := range missing {
			if strings.HasSuffix(r.URL.Path, m) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &heads
}

func TestGradient(t *testing.T) {
	assert.Equal(t, "linear-gradient(135deg, #1f2028 0%, #2a2b35 50%, #1f2028 100%)", Gradient(domain.SettingWarehouse))
	assert.Equal(t, Gradient(domain.SettingNeutral), Gradient("moon-base"))
	for _, s := range Settings() {
		assert.True(t, IsGradient(Gradient(s)), s)
	}
	assert.False(t, IsGradient("/assets/backgrounds/kitchen-1.jpg"))
}

func TestCacheKey(t *testing.T) {
	long := strings.Repeat("x", 80)
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"setting only", Options{}, "kitchen"},
		{"prompt wins", Options{BackgroundPrompt: "cozy", CMSAssetID: "a1"}, "kitchen-prompt-cozy"},
		{"prompt truncated", Options{BackgroundPrompt: long}, "kitchen-prompt-" + long[:60]},
		{"asset id", Options{CMSAssetID: "a1", CMSTag: "tag"}, "a1"},
		{"tag", Options{CMSTag: "tag"}, "tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CacheKey(domain.SettingKitchen, tt.opts))
		})
	}
}

func TestGenerateWithoutAssetHostUsesGradient(t *testing.T) {
	g := New(config.BackgroundConfig{}, testLogger())
	v, err := g.Generate(context.Background(), domain.SettingOutdoor, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, Gradient(domain.SettingOutdoor), v)
}

func TestGenerateImageURL(t *testing.T) {
	g := New(config.BackgroundConfig{}, testLogger())
	v, err := g.Generate(context.Background(), domain.SettingKitchen, nil, Options{ImageURL: "https://cdn.example.com/k.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/k.jpg", v)
}

func TestGeneratePreseeded(t *testing.T) {
	srv, heads := assetServer(t)
	g := New(config.BackgroundConfig{AssetBaseURL: srv.URL}, testLogger(), WithHTTPClient(srv.Client()))

	v, err := g.Generate(context.Background(), domain.SettingJobsite, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "/assets/backgrounds/jobsite-1.jpg", v)

	// Memoized per key: no second HEAD.
	v, err = g.Generate(context.Background(), domain.SettingJobsite, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "/assets/backgrounds/jobsite-1.jpg", v)
	assert.Equal(t, int32(1), heads.Load())
}

func TestGenerateMissingAssetFallsBack(t *testing.T) {
	srv, _ := assetServer(t, "garage-1.jpg")
	g := New(config.BackgroundConfig{AssetBaseURL: srv.URL}, testLogger(), WithHTTPClient(srv.Client()))

	v, err := g.Generate(context.Background(), domain.SettingGarage, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, Gradient(domain.SettingGarage), v)
}

func TestGenerateEditModeSkipsPreseeded(t *testing.T) {
	srv, heads := assetServer(t)
	g := New(config.BackgroundConfig{AssetBaseURL: srv.URL}, testLogger(), WithHTTPClient(srv.Client()))

	v, err := g.Generate(context.Background(), domain.SettingKitchen, nil, Options{EditMode: true, BackgroundPrompt: "brighter"})
	require.NoError(t, err)
	assert.Equal(t, Gradient(domain.SettingKitchen), v)
	assert.Equal(t, int32(0), heads.Load())
}

func TestPickRotatesVariants(t *testing.T) {
	assets := []Asset{
		{ID: "a", Setting: "s", Path: "/a"},
		{ID: "b", Setting: "s", Path: "/b"},
		{ID: "c", Setting: "s", Path: "/c"},
	}
	g := New(config.BackgroundConfig{AssetBaseURL: "http://assets.invalid"}, testLogger(),
		WithAssets(assets), WithRand(rand.New(rand.NewPCG(7, 11))))

	for round := 0; round < 4; round++ {
		seen := map[string]bool{}
		for range assets {
			a, ok := g.pick("s")
			require.True(t, ok)
			seen[a.ID] = true
		}
		if round == 0 {
			assert.Len(t, seen, 3, "first pass shows every variant once")
		}
	}

	_, ok := g.pick("none")
	assert.False(t, ok)
}

func TestGenerateCoalesces(t *testing.T) {
	release := make(chan struct{})
	var heads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		heads.Add(1)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := New(config.BackgroundConfig{AssetBaseURL: srv.URL}, testLogger(), WithHTTPClient(srv.Client()))

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Generate(context.Background(), domain.SettingBathroom, nil, Options{})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	// Let the first lookup reach the server before releasing it.
	for heads.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "/assets/backgrounds/bathroom-1.jpg", v)
	}
	assert.Equal(t, int32(1), heads.Load())
}

func TestGenerateCanceled(t *testing.T) {
	g := New(config.BackgroundConfig{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A canceled caller may still get a value if it resolves immediately,
	// but never a wrong one.
	v, err := g.Generate(ctx, domain.SettingKitchen, nil, Options{})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	} else {
		assert.Equal(t, Gradient(domain.SettingKitchen), v)
	}
}

func TestPrewarm(t *testing.T) {
	srv, heads := assetServer(t)
	g := New(config.BackgroundConfig{AssetBaseURL: srv.URL}, testLogger(), WithHTTPClient(srv.Client()))

	require.NoError(t, g.Prewarm(context.Background(), Settings()...))
	assert.Equal(t, int32(len(Settings())), heads.Load())

	_, err := g.Generate(context.Background(), domain.SettingKitchen, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(len(Settings())), heads.Load())
}
