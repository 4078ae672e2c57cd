package review

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports/mocks"
)

func strPtr(s string) *string { return &s }

func seedCase(t *testing.T, store *mocks.CaseStore, status domain.CaseStatus) {
	t.Helper()

	_, err := store.Upsert(context.Background(), domain.CasePatch{
		MessageID:       "m1",
		GuildID:         strPtr("g1"),
		ChannelID:       strPtr("c1"),
		UserID:          strPtr("u1"),
		Status:          &status,
		ReviewMessageID: strPtr("r1"),
		ReviewChannelID: strPtr("modlog"),
	})
	require.NoError(t, err)
}

func modReaction(emoji string) Reaction {
	return Reaction{GuildID: "g1", ChannelID: "modlog", MessageID: "r1", UserID: "mod", Emoji: emoji}
}

func newReactionFixture(t *testing.T, status domain.CaseStatus) (*Workflow, *mocks.Platform, *mocks.CaseStore) {
	t.Helper()

	platform := mocks.NewPlatform()
	platform.SetMember("g1", "mod", domain.MemberAccess{RoleIDs: []string{"role-mod"}})

	store := mocks.NewCaseStore()
	seedCase(t, store, status)

	return newTestWorkflow(platform, store), platform, store
}

func getCase(t *testing.T, store *mocks.CaseStore) domain.FlaggedCase {
	t.Helper()

	c, ok, err := store.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, ok)

	return c
}

func TestReactionApproveThenRemove(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusPending)
	ctx := context.Background()
	community := communityWithModLog("modlog")

	handled, err := w.HandleReactionAdd(ctx, modReaction(EmojiApprove), community)
	require.NoError(t, err)
	require.True(t, handled)

	c := getCase(t, store)
	assert.Equal(t, domain.StatusApproved, c.Status)
	require.Len(t, c.History, 1)
	assert.Equal(t, domain.HistoryEntry{Action: HistoryApproved, ModeratorID: "mod", Timestamp: fixedNow}, c.History[0])

	require.Len(t, platform.Edits, 1)
	assert.Equal(t, "r1", platform.Edits[0].MessageID)
	assert.Equal(t, "Approved by <@mod>", platform.Edits[0].Post.Embed.Fields[0].Value)

	handled, err = w.HandleReactionRemove(ctx, modReaction(EmojiApprove), community)
	require.NoError(t, err)
	require.True(t, handled)

	c = getCase(t, store)
	assert.Equal(t, domain.StatusPending, c.Status)
	require.Len(t, c.History, 2)
	assert.Equal(t, HistoryRemovedApprove, c.History[1].Action)
	assert.Equal(t, "Pending review (reset by <@mod>)", platform.Edits[1].Post.Embed.Fields[0].Value)
}

func TestReactionRemoveOnDeletedCaseHasNoEffect(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusDeleted)

	handled, err := w.HandleReactionRemove(context.Background(), modReaction(EmojiApprove), communityWithModLog("modlog"))
	require.NoError(t, err)
	assert.True(t, handled)

	c := getCase(t, store)
	assert.Equal(t, domain.StatusDeleted, c.Status)
	assert.Empty(t, c.History)
	assert.Empty(t, platform.Edits)
}

func TestReactionDeleteIsTerminal(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusPending)
	ctx := context.Background()
	community := communityWithModLog("modlog")

	_, err := w.HandleReactionAdd(ctx, modReaction(EmojiDelete), community)
	require.NoError(t, err)

	assert.Equal(t, []string{"c1/m1"}, platform.Deleted)
	assert.Equal(t, domain.StatusDeleted, getCase(t, store).Status)

	_, err = w.HandleReactionAdd(ctx, modReaction(EmojiReset), community)
	require.NoError(t, err)

	c := getCase(t, store)
	assert.Equal(t, domain.StatusDeleted, c.Status)
	assert.Len(t, c.History, 1)
}

func TestReactionDeleteFailureIsRecorded(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusPending)
	platform.DeleteMessageFn = func(context.Context, string, string) error { return errPlatform }

	_, err := w.HandleReactionAdd(context.Background(), modReaction(EmojiDelete), communityWithModLog("modlog"))
	require.NoError(t, err)

	c := getCase(t, store)
	assert.Equal(t, domain.StatusDeleted, c.Status)
	require.Len(t, c.History, 2)
	assert.Equal(t, HistoryDeleteFailed, c.History[0].Action)
	assert.Equal(t, HistoryDeleted, c.History[1].Action)
}

func TestReactionWarn(t *testing.T) {
	t.Run("dm delivered", func(t *testing.T) {
		w, platform, store := newReactionFixture(t, domain.StatusPending)
		community := communityWithModLog("modlog")
		community.Guild.Channels.Rules = "rules"

		_, err := w.HandleReactionAdd(context.Background(), modReaction(EmojiWarn), community)
		require.NoError(t, err)

		require.Len(t, platform.DMs, 1)
		assert.Equal(t, "u1", platform.DMs[0].UserID)
		assert.Contains(t, platform.DMs[0].Content, "<#rules>")

		c := getCase(t, store)
		assert.Equal(t, domain.StatusWarned, c.Status)
		assert.Equal(t, HistoryWarned, c.History[0].Action)
	})

	t.Run("dm failed", func(t *testing.T) {
		w, platform, store := newReactionFixture(t, domain.StatusPending)
		platform.DirectMessageFn = func(context.Context, string, string) error { return errPlatform }

		_, err := w.HandleReactionAdd(context.Background(), modReaction(EmojiWarn), communityWithModLog("modlog"))
		require.NoError(t, err)

		c := getCase(t, store)
		assert.Equal(t, domain.StatusPending, c.Status)
		require.Len(t, c.History, 1)
		assert.Equal(t, HistoryWarnFailed, c.History[0].Action)
		assert.Equal(t, "Warn failed by <@mod>", platform.Edits[0].Post.Embed.Fields[0].Value)
	})
}

func TestReactionRequiresModerator(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusPending)

	r := modReaction(EmojiApprove)
	r.UserID = "random"

	handled, err := w.HandleReactionAdd(context.Background(), r, communityWithModLog("modlog"))
	require.ErrorIs(t, err, coreerrors.ErrNotModerator)
	assert.True(t, handled)
	assert.Equal(t, domain.StatusPending, getCase(t, store).Status)
	assert.Empty(t, platform.Edits)

	platform.SetMember("g1", "admin", domain.MemberAccess{Administrator: true})
	r.UserID = "admin"

	_, err = w.HandleReactionAdd(context.Background(), r, communityWithModLog("modlog"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, getCase(t, store).Status)
}

func TestReactionOnUnknownMessage(t *testing.T) {
	w, _, _ := newReactionFixture(t, domain.StatusPending)

	r := modReaction(EmojiApprove)
	r.MessageID = "not-a-review"

	handled, err := w.HandleReactionAdd(context.Background(), r, communityWithModLog("modlog"))
	require.NoError(t, err)
	assert.False(t, handled)

	r = modReaction("👍")
	handled, err = w.HandleReactionAdd(context.Background(), r, communityWithModLog("modlog"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestReactionInFlightDropsSecond(t *testing.T) {
	w, platform, store := newReactionFixture(t, domain.StatusPending)

	entered := make(chan struct{})
	release := make(chan struct{})

	platform.DeleteMessageFn = func(context.Context, string, string) error {
		close(entered)
		<-release

		return nil
	}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_, err := w.HandleReactionAdd(context.Background(), modReaction(EmojiDelete), communityWithModLog("modlog"))
		assert.NoError(t, err)
	}()

	<-entered

	handled, err := w.HandleReactionAdd(context.Background(), modReaction(EmojiApprove), communityWithModLog("modlog"))
	require.ErrorIs(t, err, coreerrors.ErrReviewInFlight)
	assert.True(t, handled)

	close(release)
	wg.Wait()

	c := getCase(t, store)
	assert.Equal(t, domain.StatusDeleted, c.Status)
	assert.Len(t, c.History, 1)
}

func TestIsModerator(t *testing.T) {
	community := communityWithModLog("modlog")
	community.Global.AdminRoles = []string{"role-admin"}

	assert.True(t, IsModerator(domain.MemberAccess{Administrator: true}, community))
	assert.True(t, IsModerator(domain.MemberAccess{RoleIDs: []string{"x", "role-admin"}}, community))
	assert.True(t, IsModerator(domain.MemberAccess{RoleIDs: []string{"role-mod"}}, community))
	assert.False(t, IsModerator(domain.MemberAccess{RoleIDs: []string{"x"}}, community))
}
