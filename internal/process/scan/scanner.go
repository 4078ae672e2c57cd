// Package scan runs the per-message media scan: collect targets, download,
// classify and evaluate them, and summarize the results.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
	"github.com/lueurxax/media-guard-bot/internal/core/risk"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
	"github.com/lueurxax/media-guard-bot/internal/process/dedup"
)

type Downloader interface {
	Download(ctx context.Context, target domain.ScanTarget) (*domain.DownloadedMedia, error)
}

type Classifier interface {
	Enabled() bool
	Scan(ctx context.Context, media *domain.DownloadedMedia) (*domain.Classification, error)
}

// Run is the outcome of scanning one message.
type Run struct {
	ID       string
	Trigger  string
	Message  *domain.Message
	Targets  []domain.ScanTarget
	Results  []domain.ScanResult
	Summary  domain.ScanSummary
	Duration time.Duration
}

type Scanner struct {
	collector   *Collector
	downloader  Downloader
	classifier  Classifier
	dedup       ports.DedupCache
	concurrency int
	logger      *zerolog.Logger
}

func New(collector *Collector, downloader Downloader, classifier Classifier, cache ports.DedupCache, concurrency int, logger *zerolog.Logger) *Scanner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Scanner{
		collector:   collector,
		downloader:  downloader,
		classifier:  classifier,
		dedup:       cache,
		concurrency: concurrency,
		logger:      logger,
	}
}

// PolicyFor resolves the filters and thresholds of a community.
func PolicyFor(c config.Community) risk.Policy {
	return risk.Policy{
		Filters:    risk.ResolveFilters(c.Global.Scan.TagFilters, c.Guild.Scan.TagFilters),
		Thresholds: risk.ResolveThresholds(risk.Limits(c.Guild.Scan.Thresholds), risk.Limits(c.Global.Scan.Thresholds)),
	}
}

// ScanMessage scans every target of msg. It returns ErrScanDisabled when msg is
// outside a guild or scanning is off for the community, and ErrClientDisabled
// when no classifier is configured. Failing targets are skipped.
func (s *Scanner) ScanMessage(ctx context.Context, msg *domain.Message, community config.Community) (*Run, error) {
	if err := s.precheck(msg, community); err != nil {
		return nil, err
	}

	return s.run(ctx, msg, community, TriggerMessage), nil
}

// PublicScan is a manually triggered scan. A message is scanned at most once
// per dedup window; repeats return ErrRecentlyScanned.
func (s *Scanner) PublicScan(ctx context.Context, msg *domain.Message, community config.Community) (*Run, error) {
	if err := s.precheck(msg, community); err != nil {
		return nil, err
	}

	key := dedup.PublicKey(msg.ID)
	if s.dedup.Seen(ctx, key) {
		return nil, fmt.Errorf("public scan %s: %w", msg.ID, coreerrors.ErrRecentlyScanned)
	}

	s.dedup.Mark(ctx, key)

	return s.run(ctx, msg, community, TriggerReaction), nil
}

func (s *Scanner) precheck(msg *domain.Message, community config.Community) error {
	if msg.GuildID == "" {
		return fmt.Errorf("message %s outside a guild: %w", msg.ID, coreerrors.ErrScanDisabled)
	}

	if !community.ScanEnabled() {
		return fmt.Errorf("guild %s: %w", msg.GuildID, coreerrors.ErrScanDisabled)
	}

	if !s.classifier.Enabled() {
		return fmt.Errorf("classifier: %w", coreerrors.ErrClientDisabled)
	}

	return nil
}

func (s *Scanner) run(ctx context.Context, msg *domain.Message, community config.Community, trigger string) *Run {
	start := time.Now()
	run := &Run{
		ID:      uuid.New().String(),
		Trigger: trigger,
		Message: msg,
	}

	logger := s.logger.With().
		Str(LogFieldRunID, run.ID).
		Str(LogFieldMessageID, msg.ID).
		Str(LogFieldGuildID, msg.GuildID).
		Logger()

	observability.MessagesScanned.WithLabelValues(trigger).Inc()

	run.Targets = s.collector.Collect(ctx, msg)
	policy := PolicyFor(community)

	slots := make([]*domain.ScanResult, len(run.Targets))

	var g errgroup.Group

	g.SetLimit(s.concurrency)

	for i, target := range run.Targets {
		g.Go(func() error {
			slots[i] = s.scanTarget(ctx, &logger, policy, target)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // target failures are recorded per slot

	for _, r := range slots {
		if r != nil {
			run.Results = append(run.Results, *r)
		}
	}

	run.Summary = risk.Summarize(run.Results)
	run.Duration = time.Since(start)

	observability.ScanDuration.Observe(run.Duration.Seconds())
	observability.ScanDecisions.WithLabelValues(string(run.Summary.Action)).Inc()

	logger.Info().
		Int("targets", len(run.Targets)).
		Int("results", len(run.Results)).
		Str("action", string(run.Summary.Action)).
		Str("reason", run.Summary.Reason).
		Float64("risk", run.Summary.HighestRisk).
		Dur("duration", run.Duration).
		Msg("message scanned")

	return run
}

// scanTarget returns nil when the target was skipped. The dedup key is marked
// after the download attempt whether or not it succeeded.
func (s *Scanner) scanTarget(ctx context.Context, logger *zerolog.Logger, policy risk.Policy, target domain.ScanTarget) *domain.ScanResult {
	key := dedup.TargetKey(target.SourceMessageID, target.URL)
	if s.dedup.Seen(ctx, key) {
		observability.ScanTargets.WithLabelValues(outcomeDeduped).Inc()
		return nil
	}

	media, err := s.downloader.Download(ctx, target)
	s.dedup.Mark(ctx, key)

	if err != nil {
		observability.ScanTargets.WithLabelValues(outcomeDownloadFailed).Inc()
		logTargetError(logger, err, target, "target not downloadable")

		return nil
	}

	classification, err := s.classifier.Scan(ctx, media)
	if err != nil {
		observability.ScanTargets.WithLabelValues(outcomeClassifyFailed).Inc()
		logger.Warn().Err(err).Str(LogFieldURL, media.ResolvedURL).Msg("classification failed")

		return nil
	}

	observability.ScanTargets.WithLabelValues(outcomeScanned).Inc()

	result := policy.Apply(target, media, classification)

	return &result
}

func logTargetError(logger *zerolog.Logger, err error, target domain.ScanTarget, msg string) {
	ev := logger.Warn()
	if errors.Is(err, coreerrors.ErrMediaRejected) || errors.Is(err, coreerrors.ErrUnsupportedMedia) {
		ev = logger.Debug()
	}

	ev.Err(err).Str(LogFieldURL, target.URL).Str(LogFieldOrigin, string(target.Origin)).Msg(msg)
}
