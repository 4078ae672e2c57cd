package review

import (
	"strings"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

// Event is a moderator action on a review post.
type Event string

const (
	EventApprove       Event = "approve"
	EventDelete        Event = "delete"
	EventWarn          Event = "warn"
	EventReset         Event = "reset"
	EventRemoveApprove Event = "remove-approve"
	EventRemoveWarn    Event = "remove-warn"
)

// Effect is a side effect that accompanies a transition.
type Effect string

const (
	EffectDeleteOriginal Effect = "delete-original"
	EffectWarnUser       Effect = "warn-user"
	EffectUpdateReview   Effect = "update-review"
)

// Review control emojis.
const (
	EmojiApprove = "✅"
	EmojiDelete  = "❌"
	EmojiWarn    = "\u26a0\ufe0f"
	EmojiReset   = "🔁"
)

const (
	variationSelector = "\ufe0f"
	emojiWarnBase     = "\u26a0"
)

// Controls are the reactions added to a flagged review post, in order.
var Controls = []string{EmojiApprove, EmojiDelete, EmojiWarn, EmojiReset}

// History actions.
const (
	HistoryApproved         = "approved"
	HistoryDeleted          = "deleted"
	HistoryWarned           = "warned"
	HistoryWarnFailed       = "warn_failed"
	HistoryReset            = "reset"
	HistoryRemovedApprove   = "removed_approve"
	HistoryRemovedWarn      = "removed_warn"
	HistoryDeleteFailed     = "delete_failed"
	HistoryAutoDeleteFailed = "auto_delete_failed"
)

// Step is the planned outcome of an event on a case.
type Step struct {
	Next    domain.CaseStatus
	History string
	Effects []Effect
}

// Transition plans the effect of ev on c. It reports false when the case does
// not accept the event: a deleted case is terminal.
func Transition(c domain.FlaggedCase, ev Event) (Step, bool) {
	if c.Status == domain.StatusDeleted {
		return Step{}, false
	}

	switch ev {
	case EventApprove:
		return Step{Next: domain.StatusApproved, History: HistoryApproved, Effects: []Effect{EffectUpdateReview}}, true
	case EventDelete:
		return Step{Next: domain.StatusDeleted, History: HistoryDeleted, Effects: []Effect{EffectDeleteOriginal, EffectUpdateReview}}, true
	case EventWarn:
		return Step{Next: domain.StatusWarned, History: HistoryWarned, Effects: []Effect{EffectWarnUser, EffectUpdateReview}}, true
	case EventReset:
		return Step{Next: domain.StatusPending, History: HistoryReset, Effects: []Effect{EffectUpdateReview}}, true
	case EventRemoveApprove:
		return Step{Next: domain.StatusPending, History: HistoryRemovedApprove, Effects: []Effect{EffectUpdateReview}}, true
	case EventRemoveWarn:
		return Step{Next: domain.StatusPending, History: HistoryRemovedWarn, Effects: []Effect{EffectUpdateReview}}, true
	default:
		return Step{}, false
	}
}

// Has reports whether the step carries effect e.
func (s Step) Has(e Effect) bool {
	for _, eff := range s.Effects {
		if eff == e {
			return true
		}
	}

	return false
}

// EventForEmoji maps a reaction to an event. Only approve and warn can be
// reversed by removing the reaction.
func EventForEmoji(emoji string, added bool) (Event, bool) {
	emoji = strings.TrimSuffix(emoji, variationSelector)

	if !added {
		switch emoji {
		case EmojiApprove:
			return EventRemoveApprove, true
		case emojiWarnBase:
			return EventRemoveWarn, true
		}

		return "", false
	}

	switch emoji {
	case EmojiApprove:
		return EventApprove, true
	case EmojiDelete:
		return EventDelete, true
	case emojiWarnBase:
		return EventWarn, true
	case EmojiReset:
		return EventReset, true
	}

	return "", false
}
