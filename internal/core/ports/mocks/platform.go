package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

// SentMessage is a message recorded by Platform.SendMessage or EditMessage.
type SentMessage struct {
	ChannelID string
	MessageID string
	Post      domain.Post
}

// Reaction is a reaction recorded by Platform.React.
type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// DM is a direct message recorded by Platform.DirectMessage.
type DM struct {
	UserID  string
	Content string
}

// Platform is a thread-safe in-memory implementation of ports.Platform.
type Platform struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	members  map[string]domain.MemberAccess
	nextID   int

	Sent      []SentMessage
	Edits     []SentMessage
	Reactions []Reaction
	Deleted   []string
	DMs       []DM

	// FetchMessageFn allows overriding FetchMessage behavior.
	FetchMessageFn func(ctx context.Context, channelID, messageID string) (*domain.Message, error)

	// SendMessageFn allows overriding SendMessage behavior.
	SendMessageFn func(ctx context.Context, channelID string, post domain.Post) (*domain.PostedMessage, error)

	// DeleteMessageFn allows overriding DeleteMessage behavior.
	DeleteMessageFn func(ctx context.Context, channelID, messageID string) error

	// DirectMessageFn allows overriding DirectMessage behavior.
	DirectMessageFn func(ctx context.Context, userID, content string) error

	// EditMessageFn allows overriding EditMessage behavior.
	EditMessageFn func(ctx context.Context, channelID, messageID string, post domain.Post) error
}

// NewPlatform creates a new mock platform.
func NewPlatform() *Platform {
	return &Platform{
		messages: make(map[string]*domain.Message),
		members:  make(map[string]domain.MemberAccess),
	}
}

// AddMessage makes msg fetchable by its channel and id.
func (p *Platform) AddMessage(msg *domain.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.messages[msg.ChannelID+"/"+msg.ID] = msg
}

// SetMember sets the access of userID in guildID.
func (p *Platform) SetMember(guildID, userID string, access domain.MemberAccess) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.members[guildID+"/"+userID] = access
}

func (p *Platform) FetchMessage(ctx context.Context, channelID, messageID string) (*domain.Message, error) {
	if p.FetchMessageFn != nil {
		return p.FetchMessageFn(ctx, channelID, messageID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg, ok := p.messages[channelID+"/"+messageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrMessageNotFound, channelID, messageID)
	}

	return msg, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, post domain.Post) (*domain.PostedMessage, error) {
	if p.SendMessageFn != nil {
		return p.SendMessageFn(ctx, channelID, post)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := "sent-" + strconv.Itoa(p.nextID)
	p.Sent = append(p.Sent, SentMessage{ChannelID: channelID, MessageID: id, Post: post})

	return &domain.PostedMessage{ID: id, ChannelID: channelID}, nil
}

func (p *Platform) EditMessage(ctx context.Context, channelID, messageID string, post domain.Post) error {
	if p.EditMessageFn != nil {
		return p.EditMessageFn(ctx, channelID, messageID, post)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Edits = append(p.Edits, SentMessage{ChannelID: channelID, MessageID: messageID, Post: post})

	return nil
}

func (p *Platform) React(_ context.Context, channelID, messageID, emoji string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Reactions = append(p.Reactions, Reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})

	return nil
}

func (p *Platform) DirectMessage(ctx context.Context, userID, content string) error {
	if p.DirectMessageFn != nil {
		return p.DirectMessageFn(ctx, userID, content)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.DMs = append(p.DMs, DM{UserID: userID, Content: content})

	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if p.DeleteMessageFn != nil {
		return p.DeleteMessageFn(ctx, channelID, messageID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.Deleted = append(p.Deleted, channelID+"/"+messageID)

	return nil
}

func (p *Platform) MemberAccess(_ context.Context, guildID, _, userID string) (domain.MemberAccess, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.members[guildID+"/"+userID], nil
}

// SentCount returns the number of messages sent so far.
func (p *Platform) SentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.Sent)
}
