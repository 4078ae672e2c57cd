package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

const (
	octetStream             = "application/octet-stream"
	defaultDownloadTimeout  = 20 * time.Second
	defaultDownloadFilename = "upload"

	rejectReasonUnsupported = "unsupported_type"
	rejectReasonTooLarge    = "too_large"
)

var (
	batchExtensions = map[string]bool{".gif": true, ".mp4": true, ".webm": true, ".mov": true, ".m4v": true}
	imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".bmp": true}
)

// Downloader fetches the bytes of scan targets.
type Downloader struct {
	fetcher  *WebFetcher
	resolver *Resolver
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewDownloader(fetcher *WebFetcher, resolver *Resolver, timeout time.Duration, logger *zerolog.Logger) *Downloader {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}

	return &Downloader{
		fetcher:  fetcher,
		resolver: resolver,
		timeout:  timeout,
		logger:   logger,
	}
}

// Download fetches target and decides between single-image and batch classification.
// Link targets are resolved first; unscannable content returns an error the caller skips.
func (d *Downloader) Download(ctx context.Context, target domain.ScanTarget) (*domain.DownloadedMedia, error) {
	rawURL := target.URL
	mimeType := target.DeclaredContentType

	var body []byte

	if target.MediaKind == domain.MediaKindLink {
		resolved, err := d.resolver.Resolve(ctx, rawURL)
		if err != nil {
			return nil, err
		}

		rawURL = resolved.URL
		mimeType = firstNonEmpty(resolved.ContentType, mimeType)
		body = resolved.Body
	}

	finalURL := rawURL

	if body == nil {
		dlCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		resp, err := d.fetcher.Get(dlCtx, rawURL, 0)
		if err != nil {
			if errors.Is(err, ErrBodyTooLarge) {
				observability.MediaRejections.WithLabelValues(rejectReasonTooLarge).Inc()
			}

			return nil, fmt.Errorf("download %s: %w", rawURL, err)
		}

		body = resp.Body
		finalURL = firstNonEmpty(resp.FinalURL, rawURL)
		mimeType = firstNonEmpty(mimeType, resp.ContentType)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("download %s: %w", rawURL, coreerrors.ErrEmptyResponse)
	}

	mimeType = normalizeContentType(mimeType)
	if mimeType == "" || mimeType == octetStream {
		if sniffed := normalizeContentType(mimetype.Detect(body).String()); isImageOrVideo(sniffed) {
			mimeType = sniffed
		}
	}

	filename := target.DeclaredName
	if filename == "" {
		filename = basename(finalURL)
	}

	ext := firstNonEmpty(extension(filename), extension(finalURL), extension(target.URL))

	if !isImageOrVideo(mimeType) && !imageExtensions[ext] && !batchExtensions[ext] {
		observability.MediaRejections.WithLabelValues(rejectReasonUnsupported).Inc()
		d.logger.Debug().Str(logKeyURL, finalURL).Str("mime_type", mimeType).Msg("unknown content type, skipping")

		return nil, fmt.Errorf("%w: %s (%s)", coreerrors.ErrUnsupportedMedia, finalURL, mimeType)
	}

	return &domain.DownloadedMedia{
		Bytes:             body,
		MimeType:          mimeType,
		Filename:          filename,
		ResolvedURL:       finalURL,
		RequiresBatchMode: requiresBatch(ext, mimeType),
	}, nil
}

func requiresBatch(ext, mimeType string) bool {
	if batchExtensions[ext] {
		return true
	}

	return strings.HasPrefix(mimeType, "video/") || mimeType == "image/gif"
}

func isImageOrVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}

// extension returns the lowercased extension of a file name or URL path, ignoring the query.
func extension(name string) string {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}

	name, _, _ = strings.Cut(name, "?")

	return strings.ToLower(path.Ext(name))
}

func basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultDownloadFilename
	}

	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return defaultDownloadFilename
	}

	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
