package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports/mocks"
	"github.com/lueurxax/media-guard-bot/internal/platform/config"
	"github.com/lueurxax/media-guard-bot/internal/process/scan"
	"github.com/lueurxax/media-guard-bot/internal/review"
)

type fakeScanner struct {
	mu        sync.Mutex
	scanned   []string
	public    []string
	scanErr   error
	publicErr error
}

func (s *fakeScanner) ScanMessage(_ context.Context, msg *domain.Message, _ config.Community) (*scan.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanned = append(s.scanned, msg.ID)
	if s.scanErr != nil {
		return nil, s.scanErr
	}

	return &scan.Run{Message: msg}, nil
}

func (s *fakeScanner) PublicScan(_ context.Context, msg *domain.Message, _ config.Community) (*scan.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.public = append(s.public, msg.ID)
	if s.publicErr != nil {
		return nil, s.publicErr
	}

	return &scan.Run{Message: msg}, nil
}

type fakeReviewer struct {
	mu       sync.Mutex
	outcomes int
	posted   int
	added    []review.Reaction
	removed  []review.Reaction
	handles  bool
}

func (r *fakeReviewer) HandleOutcome(context.Context, *scan.Run, config.Community) *domain.FlaggedCase {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes++

	return nil
}

func (r *fakeReviewer) PostScanResult(context.Context, *scan.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posted++

	return nil
}

func (r *fakeReviewer) HandleReactionAdd(_ context.Context, reaction review.Reaction, _ config.Community) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.added = append(r.added, reaction)

	return r.handles, nil
}

func (r *fakeReviewer) HandleReactionRemove(_ context.Context, reaction review.Reaction, _ config.Community) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removed = append(r.removed, reaction)

	return r.handles, nil
}

func newTestBot(t *testing.T, sc *fakeScanner, rv *fakeReviewer, platform *mocks.Platform) *Bot {
	t.Helper()

	communities, err := config.ParseCommunities([]byte(`
guilds:
  g1:
    scan:
      enabled: true
      publicScanEmojis: ["🔍"]
`))
	require.NoError(t, err)

	logger := zerolog.Nop()

	return NewBot(nil, platform, sc, rv, communities, &logger)
}

func TestOnMessageCreateRoutesToScanAndReview(t *testing.T) {
	sc := &fakeScanner{}
	rv := &fakeReviewer{}
	b := newTestBot(t, sc, rv, mocks.NewPlatform())

	b.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1", Author: &discordgo.User{ID: "u1"},
	}})

	assert.Equal(t, []string{"m1"}, sc.scanned)
	assert.Equal(t, 1, rv.outcomes)
}

func TestOnMessageCreateIgnores(t *testing.T) {
	sc := &fakeScanner{}
	rv := &fakeReviewer{}
	b := newTestBot(t, sc, rv, mocks.NewPlatform())

	b.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{ID: "dm", ChannelID: "c1"}})
	b.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "bot", ChannelID: "c1", GuildID: "g1", Author: &discordgo.User{ID: "b", Bot: true},
	}})

	assert.Empty(t, sc.scanned)

	sc.scanErr = coreerrors.ErrScanDisabled
	b.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{ID: "m2", ChannelID: "c1", GuildID: "g1"}})

	assert.Equal(t, []string{"m2"}, sc.scanned)
	assert.Zero(t, rv.outcomes)
}

func reactionAdd(emoji string) *discordgo.MessageReactionAdd {
	return &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "u2", MessageID: "m1", ChannelID: "c1", GuildID: "g1",
		Emoji: discordgo.Emoji{Name: emoji},
	}}
}

func TestOnReactionAddPublicScan(t *testing.T) {
	platform := mocks.NewPlatform()
	platform.AddMessage(&domain.Message{ID: "m1", ChannelID: "c1", GuildID: "g1"})

	sc := &fakeScanner{}
	rv := &fakeReviewer{}
	b := newTestBot(t, sc, rv, platform)

	b.onReactionAdd(nil, reactionAdd("👍"))
	assert.Empty(t, sc.public)

	b.onReactionAdd(nil, reactionAdd("🔍"))
	assert.Equal(t, []string{"m1"}, sc.public)
	assert.Equal(t, 1, rv.posted)

	require.Len(t, rv.added, 2)
	assert.Equal(t, review.Reaction{GuildID: "g1", ChannelID: "c1", MessageID: "m1", UserID: "u2", Emoji: "🔍"}, rv.added[1])
}

func TestOnReactionAddHandledByReview(t *testing.T) {
	sc := &fakeScanner{}
	rv := &fakeReviewer{handles: true}
	b := newTestBot(t, sc, rv, mocks.NewPlatform())

	b.onReactionAdd(nil, reactionAdd("🔍"))

	assert.Len(t, rv.added, 1)
	assert.Empty(t, sc.public)
}

func TestOnReactionRemove(t *testing.T) {
	rv := &fakeReviewer{}
	b := newTestBot(t, &fakeScanner{}, rv, mocks.NewPlatform())

	b.onReactionRemove(nil, &discordgo.MessageReactionRemove{MessageReaction: &discordgo.MessageReaction{
		UserID: "u2", MessageID: "r1", ChannelID: "modlog", GuildID: "g1", Emoji: discordgo.Emoji{Name: review.EmojiApprove},
	}})

	require.Len(t, rv.removed, 1)
	assert.Equal(t, review.EmojiApprove, rv.removed[0].Emoji)
}

type panickingReviewer struct {
	fakeReviewer
}

func (r *panickingReviewer) HandleOutcome(context.Context, *scan.Run, config.Community) *domain.FlaggedCase {
	panic("review exploded")
}

func TestOnMessageCreateRecoversFromPanics(t *testing.T) {
	sc := &fakeScanner{}
	b := newTestBot(t, sc, &fakeReviewer{}, mocks.NewPlatform())
	b.reviewer = &panickingReviewer{}

	assert.NotPanics(t, func() {
		b.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
			ID: "m1", ChannelID: "c1", GuildID: "g1", Author: &discordgo.User{ID: "u1"},
		}})
	})

	assert.Equal(t, []string{"m1"}, sc.scanned)
}
