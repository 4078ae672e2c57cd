// Package discord adapts a discordgo session to the moderation core: it
// implements ports.Platform and routes gateway events to the scan pipeline and
// the review workflow.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/core/ports"
)

const messageURLFormat = "https://discord.com/channels/%s/%s/%s"

// Platform implements ports.Platform on top of a discordgo session.
type Platform struct {
	session *discordgo.Session
}

var _ ports.Platform = (*Platform)(nil)

func NewPlatform(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// FetchMessage loads a message and fills its guild id from the channel, which
// REST responses leave empty.
func (p *Platform) FetchMessage(ctx context.Context, channelID, messageID string) (*domain.Message, error) {
	ch, err := p.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if !isTextChannel(ch) {
		return nil, fmt.Errorf("%w: %s is not text based", coreerrors.ErrChannelNotFound, channelID)
	}

	m, err := p.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapNotFound(err, coreerrors.ErrMessageNotFound, "fetch message "+messageID)
	}

	if m.GuildID == "" {
		m.GuildID = ch.GuildID
	}

	return toMessage(m), nil
}

func (p *Platform) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if p.session.State != nil {
		if ch, err := p.session.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}

	ch, err := p.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapNotFound(err, coreerrors.ErrChannelNotFound, "fetch channel "+channelID)
	}

	return ch, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, post domain.Post) (*domain.PostedMessage, error) {
	send := &discordgo.MessageSend{Content: post.Content}
	if post.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(post.Embed)}
	}

	m, err := p.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapNotFound(err, coreerrors.ErrChannelNotFound, "send message to "+channelID)
	}

	return &domain.PostedMessage{ID: m.ID, ChannelID: m.ChannelID}, nil
}

func (p *Platform) EditMessage(ctx context.Context, channelID, messageID string, post domain.Post) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(post.Content)
	if post.Embed != nil {
		edit.SetEmbeds([]*discordgo.MessageEmbed{toEmbed(post.Embed)})
	}

	if _, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return wrapNotFound(err, coreerrors.ErrMessageNotFound, "edit message "+messageID)
	}

	return nil
}

func (p *Platform) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := p.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("react to %s: %w", messageID, err)
	}

	return nil
}

func (p *Platform) DirectMessage(ctx context.Context, userID, content string) error {
	ch, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel with %s: %w", userID, err)
	}

	if _, err := p.session.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send DM to %s: %w", userID, err)
	}

	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := p.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return wrapNotFound(err, coreerrors.ErrMessageNotFound, "delete message "+messageID)
	}

	return nil
}

func (p *Platform) MemberAccess(ctx context.Context, guildID, channelID, userID string) (domain.MemberAccess, error) {
	member, err := p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.MemberAccess{}, fmt.Errorf("fetch member %s: %w", userID, err)
	}

	access := domain.MemberAccess{RoleIDs: member.Roles}

	perms, err := p.session.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err == nil {
		access.Administrator = perms&discordgo.PermissionAdministrator != 0
	}

	return access, nil
}

func isTextChannel(ch *discordgo.Channel) bool {
	switch ch.Type {
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildCategory, discordgo.ChannelTypeGuildStageVoice, discordgo.ChannelTypeGuildForum:
		return false
	default:
		return true
	}
}

func wrapNotFound(err error, sentinel error, op string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, sentinel)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func toMessage(m *discordgo.Message) *domain.Message {
	out := &domain.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}

	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorName = m.Author.Username
	}

	if m.GuildID != "" {
		out.URL = fmt.Sprintf(messageURLFormat, m.GuildID, m.ChannelID, m.ID)
	}

	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, domain.Attachment{
			URL:         a.URL,
			ProxyURL:    a.ProxyURL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
		})
	}

	for _, e := range m.Embeds {
		emb := domain.Embed{URL: e.URL}
		if e.Image != nil {
			emb.ImageURL = e.Image.URL
			emb.ImageProxyURL = e.Image.ProxyURL
		}

		if e.Thumbnail != nil {
			emb.ThumbnailURL = e.Thumbnail.URL
			emb.ThumbnailProxyURL = e.Thumbnail.ProxyURL
		}

		out.Embeds = append(out.Embeds, emb)
	}

	if ref := m.MessageReference; ref != nil && ref.MessageID != "" {
		out.Reference = &domain.MessageRef{
			GuildID:   ref.GuildID,
			ChannelID: ref.ChannelID,
			MessageID: ref.MessageID,
		}
	}

	return out
}

func toEmbed(e *domain.PostEmbed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}

	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}

	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}

	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	return out
}
