package links

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
)

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()

	logger := zerolog.Nop()
	r, _ := newTestResolver(t)

	return NewDownloader(r.fetcher, r, time.Second, &logger)
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "image/png")
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/anim.gif", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "image/gif")
		_, _ = w.Write([]byte("GIF89a...."))
	})
	mux.HandleFunc("/blob", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, octetStream)
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/clip.mp4", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, octetStream)
		_, _ = w.Write([]byte("not really sniffable"))
	})
	mux.HandleFunc("/doc.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "text/plain")
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestDownloaderDownload(t *testing.T) {
	srv := mediaServer(t)
	d := newTestDownloader(t)

	tests := []struct {
		name         string
		target       domain.ScanTarget
		wantMime     string
		wantFilename string
		wantBatch    bool
	}{
		{
			name:         "attachment with declared name",
			target:       domain.ScanTarget{URL: srv.URL + "/cat.png", MediaKind: domain.MediaKindAttachment, DeclaredName: "kitty.png", DeclaredContentType: "image/png"},
			wantMime:     "image/png",
			wantFilename: "kitty.png",
		},
		{
			name:         "gif goes to batch",
			target:       domain.ScanTarget{URL: srv.URL + "/anim.gif", MediaKind: domain.MediaKindEmbed},
			wantMime:     "image/gif",
			wantFilename: "anim.gif",
			wantBatch:    true,
		},
		{
			name:         "octet stream sniffed",
			target:       domain.ScanTarget{URL: srv.URL + "/blob", MediaKind: domain.MediaKindEmbed},
			wantMime:     "image/png",
			wantFilename: "blob",
		},
		{
			name:         "octet stream with video extension",
			target:       domain.ScanTarget{URL: srv.URL + "/clip.mp4?ex=1", MediaKind: domain.MediaKindAttachment},
			wantMime:     octetStream,
			wantFilename: "clip.mp4",
			wantBatch:    true,
		},
		{
			name:         "link resolved through head request",
			target:       domain.ScanTarget{URL: srv.URL + "/cat.png", MediaKind: domain.MediaKindLink},
			wantMime:     "image/png",
			wantFilename: "cat.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Download(context.Background(), tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, got.MimeType)
			assert.Equal(t, tt.wantFilename, got.Filename)
			assert.Equal(t, tt.wantBatch, got.RequiresBatchMode)
			assert.NotEmpty(t, got.Bytes)
		})
	}
}

func TestDownloaderRejects(t *testing.T) {
	srv := mediaServer(t)
	d := newTestDownloader(t)

	_, err := d.Download(context.Background(), domain.ScanTarget{URL: srv.URL + "/doc.txt", MediaKind: domain.MediaKindEmbed})
	require.ErrorIs(t, err, coreerrors.ErrUnsupportedMedia)

	_, err = d.Download(context.Background(), domain.ScanTarget{URL: srv.URL + "/missing.png", MediaKind: domain.MediaKindAttachment})
	require.ErrorIs(t, err, ErrHTTPStatusNotOK)

	_, err = d.Download(context.Background(), domain.ScanTarget{URL: srv.URL + "/doc.txt", MediaKind: domain.MediaKindLink})
	require.ErrorIs(t, err, coreerrors.ErrMediaRejected)
}

func TestDownloaderRejectsOversizedMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "image/png")
		_, _ = w.Write(append(append([]byte{}, pngHeader...), make([]byte, 64)...))
	}))
	defer srv.Close()

	d := newTestDownloader(t)
	d.fetcher.maxBody = 32

	got, err := d.Download(context.Background(), domain.ScanTarget{URL: srv.URL + "/huge.png", MediaKind: domain.MediaKindAttachment})
	require.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Nil(t, got)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", extension("Cat.PNG"))
	assert.Equal(t, ".mp4", extension("https://cdn.example/a/clip.mp4?ex=123&is=456"))
	assert.Equal(t, "", extension("https://cdn.example/a/"))
}
