package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/soyeahso/advisor/internal/config"
	"github.com/soyeahso/advisor/internal/version"
)

// tokenEarlyExpiry is how long before its expiry a cached token is refreshed.
const tokenEarlyExpiry = 60 * time.Second

// defaultTokenLifetime applies when the token response omits expires_in.
const defaultTokenLifetime = 3600 * time.Second

// TokenURL returns the OAuth client-credentials endpoint of an instance.
func TokenURL(instanceURL string) string {
	return strings.TrimRight(instanceURL, "/") + "/services/oauth2/token"
}

// ContextTokenSource is an oauth2.TokenSource whose fetch can be bounded
// by the caller's context, so a cancelled turn stops a hanging exchange.
type ContextTokenSource interface {
	oauth2.TokenSource
	TokenContext(ctx context.Context) (*oauth2.Token, error)
}

// NewTokenSource returns a cached token source for the live agent, either
// through the gateway's token proxy or directly against the instance.
func NewTokenSource(cfg config.AgentConfig, proxyURL string, client *http.Client) (ContextTokenSource, error) {
	switch cfg.TokenMode {
	case "", "proxy":
		return ProxyTokenSource(proxyURL, cfg.ClientID, cfg.ClientSecret, cfg.InstanceURL, client), nil
	case "direct":
		return DirectTokenSource(cfg.ClientID, cfg.ClientSecret, cfg.InstanceURL, client), nil
	default:
		return nil, fmt.Errorf("unknown token mode %q", cfg.TokenMode)
	}
}

// DirectTokenSource exchanges client credentials with the instance itself.
func DirectTokenSource(clientID, clientSecret, instanceURL string, client *http.Client) ContextTokenSource {
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     TokenURL(instanceURL),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return newCachedTokenSource(func(ctx context.Context) (*oauth2.Token, error) {
		if client != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		}
		return cc.Token(ctx)
	})
}

// ProxyTokenSource fetches tokens from a token proxy that holds the
// exchange with the instance (POST {clientId, clientSecret, instanceUrl}).
func ProxyTokenSource(proxyURL, clientID, clientSecret, instanceURL string, client *http.Client) ContextTokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	src := &proxyTokenSource{
		url:    proxyURL,
		client: client,
		body: proxyTokenRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			InstanceURL:  instanceURL,
		},
		now: time.Now,
	}
	return newCachedTokenSource(src.fetch)
}

// cachedTokenSource reuses a token until tokenEarlyExpiry before it
// expires. Concurrent callers queue behind an in-flight fetch.
type cachedTokenSource struct {
	fetch func(context.Context) (*oauth2.Token, error)
	now   func() time.Time

	mu  sync.Mutex
	tok *oauth2.Token
}

func newCachedTokenSource(fetch func(context.Context) (*oauth2.Token, error)) *cachedTokenSource {
	return &cachedTokenSource{fetch: fetch, now: time.Now}
}

func (c *cachedTokenSource) Token() (*oauth2.Token, error) {
	return c.TokenContext(context.Background())
}

func (c *cachedTokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fresh() {
		return c.tok, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.tok = tok
	return tok, nil
}

func (c *cachedTokenSource) fresh() bool {
	if c.tok == nil || c.tok.AccessToken == "" {
		return false
	}
	return c.tok.Expiry.IsZero() || c.now().Add(tokenEarlyExpiry).Before(c.tok.Expiry)
}

type proxyTokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	InstanceURL  string `json:"instanceUrl"`
}

type proxyTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	InstanceURL string `json:"instance_url"`
}

type proxyTokenSource struct {
	url    string
	client *http.Client
	body   proxyTokenRequest
	now    func() time.Time
}

func (s *proxyTokenSource) Token() (*oauth2.Token, error) { return s.fetch(context.Background()) }

func (s *proxyTokenSource) fetch(ctx context.Context) (*oauth2.Token, error) {
	payload, err := json.Marshal(s.body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "token fetch", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result proxyTokenResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	lifetime := defaultTokenLifetime
	if result.ExpiresIn > 0 {
		lifetime = time.Duration(result.ExpiresIn) * time.Second
	}

	tok := &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		Expiry:      s.now().Add(lifetime),
	}
	if result.InstanceURL != "" {
		tok = tok.WithExtra(map[string]any{"instance_url": result.InstanceURL})
	}
	return tok, nil
}
