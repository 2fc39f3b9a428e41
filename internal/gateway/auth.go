package gateway

import (
	"crypto/subtle"
	"net"
	"os"
	"sync"
	"time"

	"github.com/soyeahso/advisor/internal/config"
)

// Auth modes for WebSocket clients.
const (
	AuthModeNone     = "none"
	AuthModeToken    = "token"
	AuthModePassword = "password"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "none" | "token" | "password"
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves credentials from config, falling back to the
// ADVISOR_GATEWAY_TOKEN and ADVISOR_GATEWAY_PASSWORD environment variables.
// With no mode configured, whichever secret is present picks the mode.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode, Token: cfg.Token, Password: cfg.Password}
	if auth.Token == "" {
		auth.Token = os.Getenv("ADVISOR_GATEWAY_TOKEN")
	}
	if auth.Password == "" {
		auth.Password = os.Getenv("ADVISOR_GATEWAY_PASSWORD")
	}

	if auth.Mode == "" {
		switch {
		case auth.Password != "":
			auth.Mode = AuthModePassword
		case auth.Token != "":
			auth.Mode = AuthModeToken
		default:
			auth.Mode = AuthModeNone
		}
	}
	return auth
}

// Authorize checks the provided ConnectAuth against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Mode == AuthModeNone {
		return AuthResult{OK: true, Method: AuthModeNone}
	}
	if clientAuth == nil {
		return AuthResult{Reason: "no credentials provided"}
	}

	switch serverAuth.Mode {
	case AuthModeToken:
		return checkSecret(AuthModeToken, serverAuth.Token, clientAuth.Token)
	case AuthModePassword:
		return checkSecret(AuthModePassword, serverAuth.Password, clientAuth.Password)
	default:
		return AuthResult{Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

func checkSecret(method, want, got string) AuthResult {
	switch {
	case want == "":
		return AuthResult{Reason: "server " + method + " not configured"}
	case got == "":
		return AuthResult{Reason: method + " required"}
	case !safeEqual(got, want):
		return AuthResult{Reason: method + "_mismatch"}
	}
	return AuthResult{OK: true, Method: method}
}

// safeEqual compares in constant time without leaking the secret length.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// authRateLimiter tracks failed handshakes per host. Stale entries are
// pruned when the host is seen again or when the table is full.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

// recentLocked drops expired failures for host and returns the rest.
func (l *authRateLimiter) recentLocked(host string, cutoff time.Time) []time.Time {
	times := l.failures[host]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, host)
		return nil
	}
	l.failures[host] = kept
	return kept
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recentLocked(hostOf(remoteAddr), l.now().Add(-authRateWindow))) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		cutoff := now.Add(-authRateWindow)
		for h := range l.failures {
			l.recentLocked(h, cutoff)
		}
		if len(l.failures) >= authRateMaxIPs {
			l.evictOldestLocked()
		}
	}
	l.failures[host] = append(l.failures[host], now)
}

func (l *authRateLimiter) evictOldestLocked() {
	var oldestIP string
	var oldest time.Time
	for ip, times := range l.failures {
		if len(times) > 0 && (oldestIP == "" || times[0].Before(oldest)) {
			oldestIP, oldest = ip, times[0]
		}
	}
	delete(l.failures, oldestIP)
}
