package links

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const (
	logKeyURL             = "url"
	logKeyDepth           = "depth"
	defaultResolveTimeout = 10 * time.Second
	maxResolveDepth       = 2

	rejectReasonStatus   = "status"
	rejectReasonNotMedia = "not_media"
	rejectReasonDepth    = "depth"
)

// ResolvedMedia is a link that was confirmed to point at image or video content.
// Body is set when resolution already downloaded the content.
type ResolvedMedia struct {
	URL         string
	ContentType string
	Body        []byte
}

// Resolver decides whether a bare link is displayable media, following og:image on HTML pages.
type Resolver struct {
	fetcher        *WebFetcher
	rejects        *RejectLog
	logger         *zerolog.Logger
	resolveTimeout time.Duration
}

func NewResolver(fetcher *WebFetcher, rejects *RejectLog, resolveTimeout time.Duration, logger *zerolog.Logger) *Resolver {
	if resolveTimeout <= 0 {
		resolveTimeout = defaultResolveTimeout
	}

	return &Resolver{
		fetcher:        fetcher,
		rejects:        rejects,
		logger:         logger,
		resolveTimeout: resolveTimeout,
	}
}

// Resolve inspects rawURL. A link that cannot be resolved returns ErrMediaRejected
// and is recorded in the reject log.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*ResolvedMedia, error) {
	return r.resolve(ctx, rawURL, 0)
}

func (r *Resolver) resolve(ctx context.Context, rawURL string, depth int) (*ResolvedMedia, error) {
	if depth > maxResolveDepth {
		return nil, r.reject(rawURL, rejectReasonDepth)
	}

	head, err := r.fetcher.Head(ctx, rawURL)
	if err == nil && IsLikelyMedia(head.ContentType) {
		return &ResolvedMedia{URL: head.FinalURL, ContentType: head.ContentType}, nil
	}

	if err != nil {
		r.logger.Debug().Err(err).Str(logKeyURL, rawURL).Msg("HEAD request failed, falling back to GET")
	}

	getCtx, cancel := context.WithTimeout(ctx, r.resolveTimeout)
	defer cancel()

	resp, err := r.fetcher.Get(getCtx, rawURL, 0)
	if err != nil {
		r.logger.Warn().Err(err).Str(logKeyURL, rawURL).Msg("GET request failed")
		return nil, r.reject(rawURL, rejectReasonStatus)
	}

	if IsLikelyMedia(resp.ContentType) {
		return &ResolvedMedia{URL: resp.FinalURL, ContentType: resp.ContentType, Body: resp.Body}, nil
	}

	if strings.Contains(strings.ToLower(resp.ContentType), "text/html") {
		if og := extractOGImage(resp.Body, resp.FinalURL); og != "" {
			r.logger.Debug().Str(logKeyURL, rawURL).Str("og_image", og).Int(logKeyDepth, depth).Msg("following og:image")
			return r.resolve(ctx, og, depth+1)
		}
	}

	return nil, r.reject(rawURL, rejectReasonNotMedia)
}

func (r *Resolver) reject(rawURL, reason string) error {
	observability.MediaRejections.WithLabelValues(reason).Inc()

	if err := r.rejects.Record(rawURL); err != nil {
		r.logger.Warn().Err(err).Msg("failed to write reject log")
	}

	return fmt.Errorf("%w: %s (%s)", coreerrors.ErrMediaRejected, rawURL, reason)
}

// IsLikelyMedia reports whether a content type is image, video or opaque binary.
func IsLikelyMedia(contentType string) bool {
	ct := normalizeContentType(contentType)

	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") || ct == octetStream
}

func normalizeContentType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")

	return strings.ToLower(strings.TrimSpace(ct))
}
