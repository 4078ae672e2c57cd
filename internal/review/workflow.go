// Package review executes scan decisions and runs the moderator review of
// flagged messages.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
	"github.com/lueurxax/media-guard-bot/internal/process/scan"
)

const (
	logKeyMessageID       = "message_id"
	logKeyGuildID         = "guild_id"
	logKeyChannelID       = "channel_id"
	logKeyReviewMessageID = "review_message_id"
	logKeyUserID          = "user_id"
	logKeyEmoji           = "emoji"
	logKeyEvent           = "event"

	systemActor = "auto"

	failureAutoDelete = "auto_delete"
	failureDelete     = "delete"
	failureWarn       = "warn"
	failureEdit       = "edit"
	failureReact      = "react"
	failurePersist    = "persist"
)

type Workflow struct {
	platform ports.Platform
	store    ports.CaseStore
	logger   *zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(platform ports.Platform, store ports.CaseStore, logger *zerolog.Logger) *Workflow {
	return &Workflow{
		platform: platform,
		store:    store,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// HandleOutcome acts on the summary of a scan run. Delete decisions remove the
// original message on the spot. Flag and delete decisions are posted to the
// moderation channel and persisted as a case; without a reachable channel the
// case is persisted unposted. Ignore decisions return nil.
func (w *Workflow) HandleOutcome(ctx context.Context, run *scan.Run, community config.Community) *domain.FlaggedCase {
	if run == nil || run.Summary.Action == domain.ActionIgnore {
		return nil
	}

	msg := run.Message
	logger := w.logger.With().Str(logKeyMessageID, msg.ID).Str(logKeyGuildID, msg.GuildID).Logger()
	c := buildCase(run)

	if c.Action == domain.ActionDelete {
		if err := w.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
			observability.ReviewSideEffectFailures.WithLabelValues(failureAutoDelete).Inc()
			logger.Warn().Err(err).Msg("failed to delete message")

			c.History = append(c.History, domain.HistoryEntry{Action: HistoryAutoDeleteFailed, ModeratorID: systemActor, Timestamp: w.now()})
		} else {
			logger.Info().Msg("message deleted by auto moderation")
		}
	}

	channelID := community.ModLogChannel()
	if channelID == "" {
		logger.Warn().Msg("no moderation channel configured, case stored without review post")
		return w.persist(ctx, &logger, c)
	}

	sent, err := w.platform.SendMessage(ctx, channelID, RenderCase(c, ""))
	if err != nil {
		logger.Error().Err(err).Str(logKeyChannelID, channelID).Msg("failed to post review")
		return w.persist(ctx, &logger, c)
	}

	if c.Action == domain.ActionFlag {
		for _, emoji := range Controls {
			if err := w.platform.React(ctx, sent.ChannelID, sent.ID, emoji); err != nil {
				observability.ReviewSideEffectFailures.WithLabelValues(failureReact).Inc()
				logger.Debug().Err(err).Str(logKeyEmoji, emoji).Msg("failed to add review control")
			}
		}
	}

	c.ReviewMessageID = sent.ID
	c.ReviewChannelID = sent.ChannelID

	return w.persist(ctx, &logger, c)
}

func (w *Workflow) persist(ctx context.Context, logger *zerolog.Logger, c domain.FlaggedCase) *domain.FlaggedCase {
	stored, err := w.store.Upsert(ctx, domain.NewCasePatch(c))
	if err != nil {
		observability.ReviewSideEffectFailures.WithLabelValues(failurePersist).Inc()
		logger.Error().Err(err).Msg("failed to persist case")

		return &c
	}

	return &stored
}

func buildCase(run *scan.Run) domain.FlaggedCase {
	msg := run.Message
	summary := run.Summary

	status := domain.StatusPending
	if summary.Action == domain.ActionDelete {
		status = domain.StatusDeleted
	}

	attachments := make([]domain.CaseAttachment, 0, len(run.Results))
	tags := []string{}

	for _, r := range run.Results {
		a := domain.CaseAttachment{
			URL:    r.Target.URL,
			Type:   r.Target.MediaKind,
			Origin: r.Target.Origin,
			Name:   r.Target.DeclaredName,
		}

		if r.Media != nil {
			a.URL = r.Media.ResolvedURL
			if a.Name == "" {
				a.Name = r.Media.Filename
			}
		}

		attachments = append(attachments, a)
		tags = append(tags, r.Tags...)
	}

	return domain.FlaggedCase{
		MessageID:   msg.ID,
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		UserID:      msg.AuthorID,
		MessageURL:  msg.URL,
		Action:      summary.Action,
		Status:      status,
		Risk:        summary.HighestRisk,
		TierLevel:   summary.LowestTierSeen,
		MatchedTags: summary.MatchedTags,
		Reasons:     summary.Reasons,
		Attachments: attachments,
		Tags:        tags,
		History:     []domain.HistoryEntry{},
	}
}

// PostScanResult answers a manual scan in the scanned message's channel. A
// clean result with zero risk is not posted.
func (w *Workflow) PostScanResult(ctx context.Context, run *scan.Run) error {
	if run == nil || (run.Summary.Action == domain.ActionIgnore && run.Summary.HighestRisk <= 0) {
		return nil
	}

	if _, err := w.platform.SendMessage(ctx, run.Message.ChannelID, RenderScanResult(run)); err != nil {
		return fmt.Errorf("post scan result: %w", err)
	}

	return nil
}
