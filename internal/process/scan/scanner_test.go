package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
	"github.com/lueurxax/media-guard-bot/internal/core/ports/mocks"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/process/dedup"
)

var errBroken = errors.New("broken")

type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (d *fakeDownloader) Download(_ context.Context, target domain.ScanTarget) (*domain.DownloadedMedia, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, target.URL)

	if err := d.fail[target.URL]; err != nil {
		return nil, err
	}

	return &domain.DownloadedMedia{
		Bytes:       []byte("img"),
		MimeType:    "image/png",
		Filename:    "file.png",
		ResolvedURL: target.URL,
	}, nil
}

type fakeClassifier struct {
	disabled bool
	calls    atomic.Int32
	byURL    map[string]*domain.Classification
	fail     map[string]bool
}

func (c *fakeClassifier) Enabled() bool { return !c.disabled }

func (c *fakeClassifier) Scan(_ context.Context, media *domain.DownloadedMedia) (*domain.Classification, error) {
	c.calls.Add(1)

	if c.fail[media.ResolvedURL] {
		return nil, errBroken
	}

	if res, ok := c.byURL[media.ResolvedURL]; ok {
		return res, nil
	}

	return &domain.Classification{Tags: []string{}, Scores: map[string]float64{}}, nil
}

func enabledCommunity() config.Community {
	on := true

	return config.Community{
		GuildID: "g1",
		Global: config.GuildSettings{Scan: config.ScanSettings{
			Enabled:    &on,
			TagFilters: config.TagFilters{"0": {"loli"}, "1": {"Nude"}},
		}},
	}
}

func newTestScanner(dl Downloader, cl Classifier, cache ports.DedupCache) *Scanner {
	logger := zerolog.Nop()

	return New(NewCollector(mocks.NewPlatform(), &logger), dl, cl, cache, 2, &logger)
}

func attachmentMessage(id string, urls ...string) *domain.Message {
	msg := &domain.Message{ID: id, ChannelID: "c1", GuildID: "g1"}
	for _, u := range urls {
		msg.Attachments = append(msg.Attachments, domain.Attachment{URL: u})
	}

	return msg
}

func TestScanMessageSummarizesInOrder(t *testing.T) {
	cl := &fakeClassifier{byURL: map[string]*domain.Classification{
		"https://cdn.example/1.png": {Tags: []string{"outdoors"}, Scores: map[string]float64{"porn": 0.1}},
		"https://cdn.example/2.png": {Tags: []string{"NUDE"}, Scores: map[string]float64{"porn": 0.3}},
		"https://cdn.example/3.png": {Tags: []string{}, Scores: map[string]float64{"porn": 0.5, "sexy": 0.2}},
	}}

	s := newTestScanner(&fakeDownloader{}, cl, mocks.NewDedupCache())

	run, err := s.ScanMessage(context.Background(),
		attachmentMessage("m1", "https://cdn.example/1.png", "https://cdn.example/2.png", "https://cdn.example/3.png"),
		enabledCommunity())
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	assert.Equal(t, "https://cdn.example/1.png", run.Results[0].Target.URL)
	assert.Equal(t, "https://cdn.example/3.png", run.Results[2].Target.URL)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, TriggerMessage, run.Trigger)

	assert.Equal(t, domain.ActionFlag, run.Summary.Action)
	assert.Equal(t, "tag-level-1", run.Summary.Reason)
	assert.Equal(t, 1, run.Summary.LowestTierSeen)
	assert.InDelta(t, 0.7, run.Summary.HighestRisk, 1e-9)
	assert.Equal(t, []string{"nude"}, run.Summary.MatchedTags)
	assert.Equal(t, []string{"tag-level-1", "risk-flag"}, run.Summary.Reasons)
	assert.Len(t, run.Summary.ActedTargets, 2)
}

func TestScanMessageSkipsFailingTargets(t *testing.T) {
	dl := &fakeDownloader{fail: map[string]error{
		"https://cdn.example/gone.png": coreerrors.ErrEmptyResponse,
	}}
	cl := &fakeClassifier{
		fail: map[string]bool{"https://cdn.example/bad.png": true},
		byURL: map[string]*domain.Classification{
			"https://cdn.example/ok.png": {Tags: []string{"loli"}, Scores: map[string]float64{}},
		},
	}
	cache := mocks.NewDedupCache()

	s := newTestScanner(dl, cl, cache)

	run, err := s.ScanMessage(context.Background(),
		attachmentMessage("m1", "https://cdn.example/gone.png", "https://cdn.example/bad.png", "https://cdn.example/ok.png"),
		enabledCommunity())
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	assert.Equal(t, domain.ActionDelete, run.Summary.Action)
	assert.Equal(t, "tag-level-0", run.Summary.Reason)

	assert.ElementsMatch(t, []string{
		"m1:https://cdn.example/gone.png",
		"m1:https://cdn.example/bad.png",
		"m1:https://cdn.example/ok.png",
	}, cache.Marks, "every download attempt is marked")
}

func TestScanMessagePreconditions(t *testing.T) {
	off := false

	tests := []struct {
		name      string
		msg       *domain.Message
		community config.Community
		disabled  bool
		wantErr   error
	}{
		{
			name:      "no guild",
			msg:       &domain.Message{ID: "m1"},
			community: enabledCommunity(),
			wantErr:   coreerrors.ErrScanDisabled,
		},
		{
			name:      "scan disabled",
			msg:       attachmentMessage("m1", "https://cdn.example/a.png"),
			community: config.Community{Guild: config.GuildSettings{Scan: config.ScanSettings{Enabled: &off}}},
			wantErr:   coreerrors.ErrScanDisabled,
		},
		{
			name:      "classifier disabled",
			msg:       attachmentMessage("m1", "https://cdn.example/a.png"),
			community: enabledCommunity(),
			disabled:  true,
			wantErr:   coreerrors.ErrClientDisabled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := &fakeDownloader{}
			s := newTestScanner(dl, &fakeClassifier{disabled: tt.disabled}, mocks.NewDedupCache())

			run, err := s.ScanMessage(context.Background(), tt.msg, tt.community)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, run)
			assert.Empty(t, dl.calls)
		})
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestScanMessageDedupWindow(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := dedup.NewCache(10*time.Minute, 100).WithClock(clk.Now)
	cl := &fakeClassifier{}

	s := newTestScanner(&fakeDownloader{}, cl, cache)
	msg := attachmentMessage("m1", "https://cdn.example/a.png")

	_, err := s.ScanMessage(context.Background(), msg, enabledCommunity())
	require.NoError(t, err)
	require.Equal(t, int32(1), cl.calls.Load())

	clk.now = clk.now.Add(5 * time.Minute)

	_, err = s.ScanMessage(context.Background(), msg, enabledCommunity())
	require.NoError(t, err)
	assert.Equal(t, int32(1), cl.calls.Load(), "second scan inside the window is skipped")

	clk.now = clk.now.Add(6 * time.Minute)

	_, err = s.ScanMessage(context.Background(), msg, enabledCommunity())
	require.NoError(t, err)
	assert.Equal(t, int32(2), cl.calls.Load(), "scan after the window classifies again")
}

func TestPublicScanOncePerWindow(t *testing.T) {
	cache := mocks.NewDedupCache()
	cl := &fakeClassifier{}
	s := newTestScanner(&fakeDownloader{}, cl, cache)
	msg := attachmentMessage("m1", "https://cdn.example/a.png")

	run, err := s.PublicScan(context.Background(), msg, enabledCommunity())
	require.NoError(t, err)
	assert.Equal(t, TriggerReaction, run.Trigger)
	assert.Contains(t, cache.Marks, "public:m1")

	_, err = s.PublicScan(context.Background(), msg, enabledCommunity())
	require.ErrorIs(t, err, coreerrors.ErrRecentlyScanned)
}

func TestPolicyForLayersGuildOverDefaults(t *testing.T) {
	flag := 0.4
	deleteAt := 0.8

	c := config.Community{
		Global: config.GuildSettings{Scan: config.ScanSettings{
			TagFilters: config.TagFilters{"1": {"nude"}},
			Thresholds: config.Thresholds{Delete: &deleteAt},
		}},
		Guild: config.GuildSettings{Scan: config.ScanSettings{
			TagFilters: config.TagFilters{"1": {"Topless"}},
			Thresholds: config.Thresholds{Flag: &flag},
		}},
	}

	p := PolicyFor(c)

	assert.ElementsMatch(t, []string{"nude", "topless"}, p.Filters[1])
	assert.InDelta(t, 0.4, p.Thresholds.Flag, 1e-9)
	assert.InDelta(t, 0.8, p.Thresholds.Delete, 1e-9)
}
