package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const (
	defaultTokenTTL     = 10 * time.Minute
	defaultRenewMargin  = 30 * time.Second
	defaultTokenTimeout = 5 * time.Second
	tokenPath           = "/token"
	tokenFlightKey      = "token"
	renewFlightKey      = "token:renew"
	tokenKindFetch      = "fetch"
	tokenKindRenew      = "renew"
	tokenBodyLimit      = 16 * 1024
)

// TokenConfig configures a TokenSource.
type TokenConfig struct {
	BaseURL     string
	Email       string
	ClientID    string
	TTL         time.Duration
	RenewMargin time.Duration
	Timeout     time.Duration
}

// TokenSource owns the bearer token of one (endpoint, credential) pair.
// Concurrent callers share a single in-flight fetch.
type TokenSource struct {
	baseURL    string
	email      string
	clientID   string
	ttl        time.Duration
	margin     time.Duration
	httpClient *http.Client
	logger     *zerolog.Logger
	now        func() time.Time

	group     singleflight.Group
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	// generation counts stored tokens; a plain fetch that started before a
	// renewal completed must not overwrite the renewed token.
	generation uint64
}

// NewTokenSource creates a token source. A nil httpClient uses a client with cfg.Timeout.
func NewTokenSource(cfg TokenConfig, httpClient *http.Client, logger *zerolog.Logger) *TokenSource {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}

	if cfg.RenewMargin < 0 || cfg.RenewMargin >= cfg.TTL {
		cfg.RenewMargin = defaultRenewMargin
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTokenTimeout
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &TokenSource{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		clientID:   cfg.ClientID,
		ttl:        cfg.TTL,
		margin:     cfg.RenewMargin,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Token returns the cached token, fetching a new one when it is missing or about to expire.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}

	return s.acquire(ctx, false)
}

// Renew discards the cached token and fetches a fresh one with renew=1.
func (s *TokenSource) Renew(ctx context.Context) (string, error) {
	s.Invalidate()

	return s.acquire(ctx, true)
}

// Invalidate drops the cached token.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *TokenSource) invalidateIfGeneration(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == gen {
		s.token = ""
		s.expiresAt = time.Time{}
	}
}

// ExpiresAt returns the absolute expiry of the cached token (zero when none).
func (s *TokenSource) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expiresAt
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" || !s.now().Before(s.expiresAt.Add(-s.margin)) {
		return "", false
	}

	return s.token, true
}

func (s *TokenSource) acquire(ctx context.Context, renew bool) (string, error) {
	key := tokenFlightKey
	if renew {
		key = renewFlightKey
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// The shared fetch must outlive any single caller's cancellation.
		return s.fetch(context.WithoutCancel(ctx), renew)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for classifier token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		token, _ := res.Val.(string) //nolint:errcheck // fetch only returns strings

		return token, nil
	}
}

func (s *TokenSource) fetch(ctx context.Context, renew bool) (string, error) {
	kind := tokenKindFetch
	if renew {
		kind = tokenKindRenew
	}

	s.mu.Lock()
	startGen := s.generation
	s.mu.Unlock()

	token, err := s.request(ctx, renew)
	if err != nil {
		if !renew {
			s.invalidateIfGeneration(startGen)
		} else {
			s.Invalidate()
		}

		observability.ClassifierTokenFetches.WithLabelValues(kind, statusError).Inc()

		return "", err
	}

	s.mu.Lock()
	if renew || s.generation == startGen {
		s.token = token
		s.expiresAt = s.now().Add(s.ttl)
		s.generation++
	}
	s.mu.Unlock()

	observability.ClassifierTokenFetches.WithLabelValues(kind, statusSuccess).Inc()
	s.logger.Info().Bool("renew", renew).Msg("classifier token acquired")

	return token, nil
}

func (s *TokenSource) request(ctx context.Context, renew bool) (string, error) {
	if s.email == "" {
		return "", fmt.Errorf("classifier token: %w (email)", coreerrors.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("email", s.email)

	if s.clientID != "" {
		params.Set("clientId", s.clientID)
	}

	if renew {
		params.Set("renew", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+tokenPath+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, tokenBodyLimit))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &RequestError{Endpoint: endpointToken, Status: resp.StatusCode, Body: truncateBody(body)}
	}

	token := parseToken(body)
	if token == "" {
		return "", fmt.Errorf("classifier token: %w", coreerrors.ErrEmptyResponse)
	}

	return token, nil
}

// parseToken accepts either a raw token body or a JSON object with a token field.
func parseToken(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if !strings.HasPrefix(raw, "{") {
		return strings.Trim(raw, `"`)
	}

	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}

	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return ""
	}

	if payload.Token != "" {
		return payload.Token
	}

	return payload.AccessToken
}
