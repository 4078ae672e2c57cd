package links

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// ErrTooManyRedirects indicates too many HTTP redirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrHTTPStatusNotOK indicates an HTTP response with a non-2xx status code.
var ErrHTTPStatusNotOK = errors.New("HTTP status not OK")

// ErrBodyTooLarge indicates a response body above the fetch size cap.
var ErrBodyTooLarge = errors.New("response body too large")

const (
	defaultFetchTimeoutSeconds = 20
	globalLimiterBurst         = 5
	maxRedirects               = 5
	maxBodySizeMB              = 50
	maxBodySizeBytes           = maxBodySizeMB * 1024 * 1024
	domainLimiterRate          = 2
	domainLimiterBurst         = 4
	retryDelay                 = 250 * time.Millisecond
	maxRetries                 = 1

	headerUserAgent   = "User-Agent"
	headerAccept      = "Accept"
	headerContentType = "Content-Type"
	mediaAccept       = "image/*;q=0.9,video/*;q=0.8,text/html;q=0.7,*/*;q=0.5"
)

// Response is the outcome of one fetch.
type Response struct {
	StatusCode  int
	ContentType string
	FinalURL    string
	Body        []byte
}

type WebFetcher struct {
	client         *http.Client
	globalLimiter  *rate.Limiter
	domainLimiters map[string]*rate.Limiter
	mu             sync.RWMutex
	userAgent      string
	retryDelay     time.Duration
	maxBody        int64
}

func NewWebFetcher(rps float64, timeout time.Duration) *WebFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeoutSeconds * time.Second
	}

	if rps <= 0 {
		rps = globalLimiterBurst
	}

	return &WebFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		},
		globalLimiter:  rate.NewLimiter(rate.Limit(rps), globalLimiterBurst),
		domainLimiters: make(map[string]*rate.Limiter),
		userAgent:      "MediaGuardBot/1.0 (+moderation)",
		retryDelay:     retryDelay,
		maxBody:        maxBodySizeBytes,
	}
}

// Head requests rawURL without downloading the body.
func (f *WebFetcher) Head(ctx context.Context, rawURL string) (*Response, error) {
	return f.fetchWithRetry(ctx, http.MethodHead, rawURL, 0)
}

// Get downloads rawURL. A body larger than maxBytes (0 = default cap) fails
// with ErrBodyTooLarge instead of being truncated.
func (f *WebFetcher) Get(ctx context.Context, rawURL string, maxBytes int64) (*Response, error) {
	if maxBytes <= 0 {
		maxBytes = f.maxBody
	}

	return f.fetchWithRetry(ctx, http.MethodGet, rawURL, maxBytes)
}

// fetchWithRetry retries transport failures and 5xx answers once after a short pause.
// Other non-2xx statuses fail immediately.
func (f *WebFetcher) fetchWithRetry(ctx context.Context, method, rawURL string, maxBytes int64) (*Response, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(f.retryDelay), maxRetries),
		ctx,
	)

	return backoff.RetryWithData(func() (*Response, error) {
		resp, err := f.fetch(ctx, method, rawURL, maxBytes)
		if err != nil && !isTransient(resp, err) {
			return resp, backoff.Permanent(err)
		}

		return resp, err
	}, policy)
}

func isTransient(resp *Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrTooManyRedirects) {
		return false
	}

	if resp == nil {
		return true
	}

	return resp.StatusCode >= http.StatusInternalServerError
}

func (f *WebFetcher) fetch(ctx context.Context, method, rawURL string, maxBytes int64) (*Response, error) {
	// Global rate limit
	if err := f.globalLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("global rate limiter wait: %w", err)
	}

	domainLimiter := f.getDomainLimiter(f.extractDomain(rawURL))
	if err := domainLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("domain rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set(headerUserAgent, f.userAgent)
	req.Header.Set(headerAccept, mediaAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	out := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get(headerContentType),
		FinalURL:    resp.Request.URL.String(),
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return out, fmt.Errorf("%w: %d", ErrHTTPStatusNotOK, resp.StatusCode)
	}

	if method == http.MethodHead {
		return out, nil
	}

	if resp.ContentLength > maxBytes {
		return out, fmt.Errorf("%w: %d bytes declared, cap %d", ErrBodyTooLarge, resp.ContentLength, maxBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if int64(len(body)) > maxBytes {
		return out, fmt.Errorf("%w: cap %d", ErrBodyTooLarge, maxBytes)
	}

	out.Body = body

	return out, nil
}

func (f *WebFetcher) getDomainLimiter(domain string) *rate.Limiter {
	f.mu.RLock()
	limiter, exists := f.domainLimiters[domain]
	f.mu.RUnlock()

	if exists {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double check
	if limiter, exists := f.domainLimiters[domain]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(domainLimiterRate, domainLimiterBurst)
	f.domainLimiters[domain] = limiter

	return limiter
}

func (f *WebFetcher) extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
