// Package classifier provides a client for the external image/video classification service.
//
// The Client is used for:
//   - Single-image classification (POST /check, multipart field "image")
//   - Batch classification of animated or video media (POST /batch, multipart field "file")
//   - The authenticated stats check (GET /stats)
//
// Every request carries the token of a TokenSource. A 403 answer invalidates the
// token, forces one renewal and repeats the request exactly once.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const (
	defaultSubmitTimeout = 30 * time.Second
	statsTimeout         = 10 * time.Second
	maxResponseBodySize  = 10 * 1024 * 1024
	statusForbidden      = http.StatusForbidden
	statusSuccess        = "success"
	statusError          = "error"
	headerAuthorization  = "Authorization"
	headerContentType    = "Content-Type"
	defaultFilename      = "discord-upload"
	defaultImageType     = "image/jpeg"
	defaultBatchType     = "application/octet-stream"
	logKeyEndpoint       = "endpoint"
	logKeyStatus         = "status"
	logKeyAttempt        = "attempt"
)

// Endpoint names, also used as metric labels.
const (
	endpointToken = "token"
	endpointCheck = "check"
	endpointBatch = "batch"
	endpointStats = "stats"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   TokenConfig
}

// Client submits media to the classification service.
type Client struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
	logger     *zerolog.Logger
}

// New creates a classifier client. An empty BaseURL yields a disabled client.
func New(cfg Config, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	tokenCfg := cfg.Token
	tokenCfg.BaseURL = baseURL

	clientLogger := logger.With().Str("scope", "classifier").Logger()

	return &Client{
		baseURL:    baseURL,
		tokens:     NewTokenSource(tokenCfg, nil, &clientLogger),
		httpClient: &http.Client{Timeout: timeout},
		logger:     &clientLogger,
	}
}

// Enabled reports whether a classifier endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Tokens exposes the token source; the maintenance check reports its expiry.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// Scan classifies media on the endpoint matching its batch mode.
func (c *Client) Scan(ctx context.Context, media *domain.DownloadedMedia) (*domain.Classification, error) {
	if media.RequiresBatchMode {
		return c.ScanBatch(ctx, media)
	}

	return c.ScanImage(ctx, media)
}

// ScanImage submits a static image to /check.
func (c *Client) ScanImage(ctx context.Context, media *domain.DownloadedMedia) (*domain.Classification, error) {
	return c.submit(ctx, upload{
		endpoint:    endpointCheck,
		field:       "image",
		filename:    coalesce(media.Filename, defaultFilename),
		contentType: coalesce(media.MimeType, defaultImageType),
		data:        media.Bytes,
	})
}

// ScanBatch submits animated or video media to /batch.
func (c *Client) ScanBatch(ctx context.Context, media *domain.DownloadedMedia) (*domain.Classification, error) {
	return c.submit(ctx, upload{
		endpoint:    endpointBatch,
		field:       "file",
		filename:    coalesce(media.Filename, defaultFilename),
		contentType: coalesce(media.MimeType, defaultBatchType),
		data:        media.Bytes,
	})
}

// Stats calls the authenticated health endpoint and returns its raw JSON payload.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, coreerrors.ErrClientDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	body, err := c.do(ctx, endpointStats, func(ctx context.Context, token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpointStats, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set(headerAuthorization, token)

		return req, nil
	}, 0)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(body), nil
}

// Ping is the readiness check used by the health server.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Stats(ctx)
	return err
}

type upload struct {
	endpoint    string
	field       string
	filename    string
	contentType string
	data        []byte
}

func (c *Client) submit(ctx context.Context, up upload) (*domain.Classification, error) {
	if !c.Enabled() {
		return nil, coreerrors.ErrClientDisabled
	}

	body, err := c.do(ctx, up.endpoint, func(ctx context.Context, token string) (*http.Request, error) {
		return c.buildUpload(ctx, up, token)
	}, 0)
	if err != nil {
		return nil, err
	}

	return Normalize(body)
}

type requestBuilder func(ctx context.Context, token string) (*http.Request, error)

// do performs one authenticated request. attempt 0 uses the cached token; attempt 1
// follows a 403 and runs with a freshly renewed token. There is no attempt 2.
func (c *Client) do(ctx context.Context, endpoint string, build requestBuilder, attempt int) ([]byte, error) {
	token, err := c.tokenFor(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("classifier %s: %w", endpoint, err)
	}

	req, err := build(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	observability.ClassifierRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.ClassifierRequests.WithLabelValues(endpoint, statusError).Inc()
		c.logger.Error().Err(err).Str(logKeyEndpoint, endpoint).Msg("classifier request failed")

		return nil, fmt.Errorf("classifier %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	observability.ClassifierRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == statusForbidden && attempt == 0 {
		c.logger.Warn().Str(logKeyEndpoint, endpoint).Msg("classifier answered 403, renewing token and retrying once")
		c.tokens.Invalidate()

		return c.do(ctx, endpoint, build, attempt+1)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Error().
			Str(logKeyEndpoint, endpoint).
			Int(logKeyStatus, resp.StatusCode).
			Int(logKeyAttempt, attempt).
			Msg("classifier returned non-success status")

		return nil, &RequestError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncateBody(body)}
	}

	return body, nil
}

func (c *Client) tokenFor(ctx context.Context, attempt int) (string, error) {
	if attempt > 0 {
		return c.tokens.Renew(ctx)
	}

	return c.tokens.Token(ctx)
}

func (c *Client) buildUpload(ctx context.Context, up upload, token string) (*http.Request, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, up.field, up.filename))
	header.Set(headerContentType, up.contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}

	if _, err := part.Write(up.data); err != nil {
		return nil, fmt.Errorf("write multipart part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+up.endpoint, &buf)
	if err != nil {
		return nil, err
	}

	req.Header.Set(headerContentType, writer.FormDataContentType())
	req.Header.Set(headerAuthorization, token)

	return req, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errBodyReadLimit {
		return s[:errBodyReadLimit]
	}

	return s
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
