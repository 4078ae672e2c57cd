package review

import (
	"context"
	"fmt"
	"slices"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
)

// Reaction is a reaction added to or removed from a message.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

// HandleReactionAdd applies a review control. It reports whether the reaction
// targeted a review post, so callers can route other reactions elsewhere.
func (w *Workflow) HandleReactionAdd(ctx context.Context, r Reaction, community config.Community) (bool, error) {
	return w.handleReaction(ctx, r, community, true)
}

// HandleReactionRemove reverses an approve or warn control.
func (w *Workflow) HandleReactionRemove(ctx context.Context, r Reaction, community config.Community) (bool, error) {
	return w.handleReaction(ctx, r, community, false)
}

func (w *Workflow) handleReaction(ctx context.Context, r Reaction, community config.Community, added bool) (bool, error) {
	c, ok, err := w.store.FindByReviewMessage(ctx, r.MessageID)
	if err != nil {
		return false, fmt.Errorf("find case by review message: %w", err)
	}

	if !ok {
		return false, nil
	}

	ev, ok := EventForEmoji(r.Emoji, added)
	if !ok {
		return false, nil
	}

	logger := w.logger.With().
		Str(logKeyMessageID, c.MessageID).
		Str(logKeyReviewMessageID, r.MessageID).
		Str(logKeyUserID, r.UserID).
		Str(logKeyEvent, string(ev)).
		Logger()

	if !w.acquire(r.MessageID) {
		logger.Info().Msg("review reaction dropped, another one is in flight")
		return true, coreerrors.ErrReviewInFlight
	}
	defer w.release(r.MessageID)

	access, err := w.platform.MemberAccess(ctx, r.GuildID, r.ChannelID, r.UserID)
	if err != nil {
		return true, fmt.Errorf("member access: %w", err)
	}

	if !IsModerator(access, community) {
		logger.Debug().Msg("reaction by non-moderator ignored")
		return true, coreerrors.ErrNotModerator
	}

	// Re-read under the in-flight marker so the step sees the latest status.
	if latest, found, err := w.store.Get(ctx, c.MessageID); err == nil && found {
		c = latest
	}

	step, ok := Transition(c, ev)
	if !ok {
		logger.Debug().Str("status", string(c.Status)).Msg("case does not accept event")
		return true, nil
	}

	updated, err := w.apply(ctx, c, step, r.UserID, community)
	if err != nil {
		return true, err
	}

	observability.ReviewTransitions.WithLabelValues(string(ev)).Inc()
	logger.Info().Str("status", string(updated.Status)).Msg("review transition applied")

	return true, nil
}

// apply runs the side effects of step best-effort and persists the result.
// Failed effects are recorded in the case history.
func (w *Workflow) apply(ctx context.Context, c domain.FlaggedCase, step Step, moderatorID string, community config.Community) (domain.FlaggedCase, error) {
	now := w.now()
	next := step.Next
	action := step.History
	note := noteFor(step.History, moderatorID)

	var history []domain.HistoryEntry

	if step.Has(EffectDeleteOriginal) {
		if err := w.platform.DeleteMessage(ctx, c.ChannelID, c.MessageID); err != nil {
			observability.ReviewSideEffectFailures.WithLabelValues(failureDelete).Inc()
			w.logger.Warn().Err(err).Str(logKeyMessageID, c.MessageID).Msg("moderator delete of original failed")

			history = append(history, domain.HistoryEntry{Action: HistoryDeleteFailed, ModeratorID: moderatorID, Timestamp: now})
		}
	}

	if step.Has(EffectWarnUser) {
		if err := w.platform.DirectMessage(ctx, c.UserID, WarningText(c.UserID, community.RulesLink())); err != nil {
			observability.ReviewSideEffectFailures.WithLabelValues(failureWarn).Inc()
			w.logger.Warn().Err(err).Str(logKeyUserID, c.UserID).Msg("warning DM failed")

			next = c.Status
			action = HistoryWarnFailed
			note = noteFor(HistoryWarnFailed, moderatorID)
		}
	}

	history = append(history, domain.HistoryEntry{Action: action, ModeratorID: moderatorID, Timestamp: now})

	updated, err := w.store.Upsert(ctx, domain.WithStatus(c.MessageID, next, history...))
	if err != nil {
		observability.ReviewSideEffectFailures.WithLabelValues(failurePersist).Inc()
		return c, fmt.Errorf("persist review transition: %w", err)
	}

	if step.Has(EffectUpdateReview) && updated.ReviewMessageID != "" && updated.ReviewChannelID != "" {
		if err := w.platform.EditMessage(ctx, updated.ReviewChannelID, updated.ReviewMessageID, RenderCase(updated, note)); err != nil {
			observability.ReviewSideEffectFailures.WithLabelValues(failureEdit).Inc()
			w.logger.Debug().Err(err).Str(logKeyReviewMessageID, updated.ReviewMessageID).Msg("failed to update review post")
		}
	}

	return updated, nil
}

func noteFor(historyAction, moderatorID string) string {
	by := mention(moderatorID)

	switch historyAction {
	case HistoryApproved:
		return "Approved by " + by
	case HistoryDeleted:
		return "Deleted by " + by
	case HistoryWarned:
		return "Warned by " + by
	case HistoryWarnFailed:
		return "Warn failed by " + by
	case HistoryReset:
		return "Reset by " + by
	default:
		return "Pending review (reset by " + by + ")"
	}
}

// IsModerator reports whether a member holds the administrator permission,
// an admin role or a moderator role of the community.
func IsModerator(access domain.MemberAccess, community config.Community) bool {
	if access.Administrator {
		return true
	}

	for _, role := range access.RoleIDs {
		if slices.Contains(community.AdminRoles(), role) || slices.Contains(community.ModRoles(), role) {
			return true
		}
	}

	return false
}

func (w *Workflow) acquire(reviewMessageID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, busy := w.inFlight[reviewMessageID]; busy {
		return false
	}

	w.inFlight[reviewMessageID] = struct{}{}

	return true
}

func (w *Workflow) release(reviewMessageID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.inFlight, reviewMessageID)
}
