// Package ports provides domain-centric interfaces for external dependencies.
// These interfaces follow the ports and adapters (hexagonal) architecture pattern,
// allowing business logic to remain independent of infrastructure concerns.
package ports

import (
	"context"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

// MessageFetcher resolves messages referenced by other messages.
type MessageFetcher interface {
	// FetchMessage loads a message. The returned message carries the guild id
	// of its channel (empty for direct messages).
	FetchMessage(ctx context.Context, channelID, messageID string) (*domain.Message, error)
}

// MessageSender sends and edits bot messages.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID string, post domain.Post) (*domain.PostedMessage, error)
	EditMessage(ctx context.Context, channelID, messageID string, post domain.Post) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	DirectMessage(ctx context.Context, userID, content string) error
}

// MessageModerator deletes messages and inspects member capabilities.
type MessageModerator interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	MemberAccess(ctx context.Context, guildID, channelID, userID string) (domain.MemberAccess, error)
}

// Platform is the subset of the chat platform the moderation core consumes.
type Platform interface {
	MessageFetcher
	MessageSender
	MessageModerator
}

// CaseStore persists flagged cases keyed by the original message id.
type CaseStore interface {
	// Upsert merges patch onto the stored case (creating it when absent) and returns the result.
	Upsert(ctx context.Context, patch domain.CasePatch) (domain.FlaggedCase, error)
	Get(ctx context.Context, messageID string) (domain.FlaggedCase, bool, error)
	// FindByReviewMessage resolves a case from the id of its posted review message.
	FindByReviewMessage(ctx context.Context, reviewMessageID string) (domain.FlaggedCase, bool, error)
	List(ctx context.Context) ([]domain.FlaggedCase, error)
	Remove(ctx context.Context, messageID string) (bool, error)
	Size(ctx context.Context) (int, error)
}

// DedupCache remembers recently processed scan keys.
type DedupCache interface {
	Seen(ctx context.Context, key string) bool
	Mark(ctx context.Context, key string)
}
