package domain

import "time"

// CasePatch is a shallow update of a FlaggedCase. Nil fields are left untouched;
// AppendHistory is appended to the stored history instead of replacing it.
type CasePatch struct {
	MessageID       string
	GuildID         *string
	ChannelID       *string
	UserID          *string
	MessageURL      *string
	Action          *Action
	Status          *CaseStatus
	Risk            *float64
	TierLevel       *int
	MatchedTags     []string
	Reasons         []string
	Attachments     []CaseAttachment
	Tags            []string
	ReviewMessageID *string
	ReviewChannelID *string
	AppendHistory   []HistoryEntry
}

// NewCasePatch returns a patch carrying every field of c.
func NewCasePatch(c FlaggedCase) CasePatch {
	return CasePatch{
		MessageID:       c.MessageID,
		GuildID:         &c.GuildID,
		ChannelID:       &c.ChannelID,
		UserID:          &c.UserID,
		MessageURL:      &c.MessageURL,
		Action:          &c.Action,
		Status:          &c.Status,
		Risk:            &c.Risk,
		TierLevel:       &c.TierLevel,
		MatchedTags:     c.MatchedTags,
		Reasons:         c.Reasons,
		Attachments:     c.Attachments,
		Tags:            c.Tags,
		ReviewMessageID: optionalString(c.ReviewMessageID),
		ReviewChannelID: optionalString(c.ReviewChannelID),
		AppendHistory:   c.History,
	}
}

// Apply merges the patch onto c and stamps the timestamps.
func (p CasePatch) Apply(c *FlaggedCase, now time.Time) {
	c.MessageID = p.MessageID
	setIf(&c.GuildID, p.GuildID)
	setIf(&c.ChannelID, p.ChannelID)
	setIf(&c.UserID, p.UserID)
	setIf(&c.MessageURL, p.MessageURL)
	setIf(&c.Action, p.Action)
	setIf(&c.Status, p.Status)
	setIf(&c.Risk, p.Risk)
	setIf(&c.TierLevel, p.TierLevel)
	setIf(&c.ReviewMessageID, p.ReviewMessageID)
	setIf(&c.ReviewChannelID, p.ReviewChannelID)

	if p.MatchedTags != nil {
		c.MatchedTags = p.MatchedTags
	}

	if p.Reasons != nil {
		c.Reasons = p.Reasons
	}

	if p.Attachments != nil {
		c.Attachments = p.Attachments
	}

	if p.Tags != nil {
		c.Tags = p.Tags
	}

	if len(p.AppendHistory) > 0 {
		c.History = append(c.History, p.AppendHistory...)
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}

	c.UpdatedAt = now
}

// WithStatus is a convenience for building a status-only patch.
func WithStatus(messageID string, status CaseStatus, history ...HistoryEntry) CasePatch {
	return CasePatch{
		MessageID:     messageID,
		Status:        &status,
		AppendHistory: history,
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
