package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/platform/worker"
	"github.com/lueurxax/media-guard-bot/internal/process/scan"
	"github.com/lueurxax/media-guard-bot/internal/review"
)

const (
	DefaultEventTimeout = 2 * time.Minute

	Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentMessageContent

	logFieldMessageID = "message_id"
	logFieldGuildID   = "guild_id"
	logFieldUserID    = "user_id"
	logFieldEmoji     = "emoji"
)

type Scanner interface {
	ScanMessage(ctx context.Context, msg *domain.Message, community config.Community) (*scan.Run, error)
	PublicScan(ctx context.Context, msg *domain.Message, community config.Community) (*scan.Run, error)
}

type Reviewer interface {
	HandleOutcome(ctx context.Context, run *scan.Run, community config.Community) *domain.FlaggedCase
	PostScanResult(ctx context.Context, run *scan.Run) error
	HandleReactionAdd(ctx context.Context, r review.Reaction, community config.Community) (bool, error)
	HandleReactionRemove(ctx context.Context, r review.Reaction, community config.Community) (bool, error)
}

// Bot routes gateway events. discordgo runs each handler in its own goroutine,
// so every event is an independent pipeline invocation.
type Bot struct {
	session      *discordgo.Session
	fetcher      ports.MessageFetcher
	scanner      Scanner
	reviewer     Reviewer
	communities  config.CommunitySource
	eventTimeout time.Duration
	logger       *zerolog.Logger

	baseCtx context.Context //nolint:containedctx // handlers are invoked by discordgo without a context
}

func NewBot(session *discordgo.Session, fetcher ports.MessageFetcher, scanner Scanner, reviewer Reviewer, communities config.CommunitySource, logger *zerolog.Logger) *Bot {
	return &Bot{
		session:      session,
		fetcher:      fetcher,
		scanner:      scanner,
		reviewer:     reviewer,
		communities:  communities,
		eventTimeout: DefaultEventTimeout,
		logger:       logger,
		baseCtx:      context.Background(),
	}
}

// Run connects to the gateway and blocks until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.baseCtx = ctx
	b.session.Identify.Intents = Intents

	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected to gateway")
	})
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway session: %w", err)
	}

	<-ctx.Done()

	if err := b.session.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to close gateway session")
	}

	return fmt.Errorf("bot run context canceled: %w", ctx.Err())
}

func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.baseCtx, b.eventTimeout)
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.GuildID == "" || (m.Author != nil && m.Author.Bot) {
		return
	}

	defer worker.RecoverPanic(b.logger, "message_create")

	ctx, cancel := b.eventContext()
	defer cancel()

	msg := toMessage(m.Message)
	community := b.communities.For(msg.GuildID)

	run, err := b.scanner.ScanMessage(ctx, msg, community)
	if err != nil {
		b.logSkip(err, msg.ID, "message scan skipped")
		return
	}

	b.reviewer.HandleOutcome(ctx, run, community)
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || r.GuildID == "" || b.isSelf(r.UserID) {
		return
	}

	defer worker.RecoverPanic(b.logger, "reaction_add")

	ctx, cancel := b.eventContext()
	defer cancel()

	community := b.communities.For(r.GuildID)
	reaction := toReaction(r.MessageReaction)

	handled, err := b.reviewer.HandleReactionAdd(ctx, reaction, community)
	if err != nil {
		b.logReactionError(err, reaction)
	}

	if handled {
		return
	}

	if !slices.Contains(community.PublicScanEmojis(), reaction.Emoji) {
		return
	}

	msg, err := b.fetcher.FetchMessage(ctx, r.ChannelID, r.MessageID)
	if err != nil {
		b.logger.Debug().Err(err).Str(logFieldMessageID, r.MessageID).Msg("reacted message not resolvable")
		return
	}

	run, err := b.scanner.PublicScan(ctx, msg, community)
	if err != nil {
		b.logSkip(err, msg.ID, "public scan skipped")
		return
	}

	if err := b.reviewer.PostScanResult(ctx, run); err != nil {
		b.logger.Warn().Err(err).Str(logFieldMessageID, msg.ID).Str(logFieldGuildID, msg.GuildID).Msg("public scan by reaction failed")
	}
}

func (b *Bot) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.MessageReaction == nil || r.GuildID == "" || b.isSelf(r.UserID) {
		return
	}

	defer worker.RecoverPanic(b.logger, "reaction_remove")

	ctx, cancel := b.eventContext()
	defer cancel()

	reaction := toReaction(r.MessageReaction)

	if _, err := b.reviewer.HandleReactionRemove(ctx, reaction, b.communities.For(r.GuildID)); err != nil {
		b.logReactionError(err, reaction)
	}
}

func (b *Bot) isSelf(userID string) bool {
	return b.session != nil && b.session.State != nil && b.session.State.User != nil && b.session.State.User.ID == userID
}

func (b *Bot) logSkip(err error, messageID, msg string) {
	ev := b.logger.Warn()
	if errors.Is(err, coreerrors.ErrScanDisabled) || errors.Is(err, coreerrors.ErrClientDisabled) || errors.Is(err, coreerrors.ErrRecentlyScanned) {
		ev = b.logger.Debug()
	}

	ev.Err(err).Str(logFieldMessageID, messageID).Msg(msg)
}

func (b *Bot) logReactionError(err error, r review.Reaction) {
	ev := b.logger.Warn()
	if errors.Is(err, coreerrors.ErrNotModerator) {
		ev = b.logger.Debug()
	}

	ev.Err(err).Str(logFieldMessageID, r.MessageID).Str(logFieldUserID, r.UserID).Str(logFieldEmoji, r.Emoji).Msg("review reaction not applied")
}

func toReaction(r *discordgo.MessageReaction) review.Reaction {
	return review.Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
	}
}
