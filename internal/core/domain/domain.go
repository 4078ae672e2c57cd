package domain

import "time"

// Origin records where a scan target was discovered.
type Origin string

const (
	OriginMessage     Origin = "message"
	OriginReply       Origin = "reply"
	OriginMessageLink Origin = "message-link"
	OriginLink        Origin = "link"
)

// MediaKind is the kind of reference a scan target came from.
type MediaKind string

const (
	MediaKindAttachment MediaKind = "attachment"
	MediaKindEmbed      MediaKind = "embed"
	MediaKindLink       MediaKind = "link"
)

// Message is the platform-neutral view of a chat message.
type Message struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string
	Content     string
	URL         string
	Attachments []Attachment
	Embeds      []Embed
	Reference   *MessageRef
}

// Attachment is a file uploaded with a message.
type Attachment struct {
	URL         string
	ProxyURL    string
	Filename    string
	ContentType string
}

// Embed holds the media URLs of a rich embed.
type Embed struct {
	URL               string
	ImageURL          string
	ImageProxyURL     string
	ThumbnailURL      string
	ThumbnailProxyURL string
}

// MessageRef points at another message, e.g. a reply target or a permalink.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// ScanTarget is one media reference discovered in a message.
type ScanTarget struct {
	URL                 string
	Origin              Origin
	MediaKind           MediaKind
	DeclaredName        string
	DeclaredContentType string
	SourceMessageID     string
}

// DownloadedMedia is the fetched payload of a scan target.
type DownloadedMedia struct {
	Bytes             []byte
	MimeType          string
	Filename          string
	ResolvedURL       string
	RequiresBatchMode bool
}

// Classification is the classifier output in canonical form.
type Classification struct {
	Tags   []string
	Scores map[string]float64
}

// Tier levels of the tag denylist. TierSafe means no denylisted tag matched.
const (
	TierInstantDelete = 0
	TierExplicit      = 1
	TierQuestionable  = 2
	TierSafe          = 3
)

// Action is the moderation decision for a target or a message.
type Action string

const (
	ActionIgnore Action = "ignore"
	ActionFlag   Action = "flag"
	ActionDelete Action = "delete"
)

// Severity orders actions: ignore < flag < delete.
func (a Action) Severity() int {
	switch a {
	case ActionDelete:
		return 2
	case ActionFlag:
		return 1
	default:
		return 0
	}
}

// Decision is an action together with the reason code that produced it.
type Decision struct {
	Action Action
	Reason string
}

// ScanResult is the evaluation of one scan target.
type ScanResult struct {
	Target         ScanTarget
	Media          *DownloadedMedia
	Tags           []string
	LowercasedTags []string
	MatchedTags    []string
	Scores         map[string]float64
	TierLevel      int
	RiskScore      float64
	Decision       Decision
}

// ScanSummary aggregates all scan results of one message.
type ScanSummary struct {
	Action         Action
	Reason         string
	HighestRisk    float64
	LowestTierSeen int
	MatchedTags    []string
	Reasons        []string
	ActedTargets   []ScanResult
}

// CaseStatus is the review state of a flagged case.
type CaseStatus string

const (
	StatusPending  CaseStatus = "pending"
	StatusApproved CaseStatus = "approved"
	StatusDeleted  CaseStatus = "deleted"
	StatusWarned   CaseStatus = "warned"
)

// CaseAttachment describes one scanned media item of a case.
type CaseAttachment struct {
	URL    string    `json:"url"`
	Type   MediaKind `json:"type"`
	Origin Origin    `json:"origin"`
	Name   string    `json:"name"`
}

// HistoryEntry records one moderator or system action on a case.
type HistoryEntry struct {
	Action      string    `json:"action"`
	ModeratorID string    `json:"moderatorId"`
	Timestamp   time.Time `json:"timestamp"`
}

// FlaggedCase is the persisted moderation record for one message.
type FlaggedCase struct {
	MessageID       string           `json:"messageId"`
	GuildID         string           `json:"guildId"`
	ChannelID       string           `json:"channelId"`
	UserID          string           `json:"userId"`
	MessageURL      string           `json:"messageUrl,omitempty"`
	Action          Action           `json:"action"`
	Status          CaseStatus       `json:"status"`
	Risk            float64          `json:"risk"`
	TierLevel       int              `json:"tierLevel"`
	MatchedTags     []string         `json:"matchedTags"`
	Reasons         []string         `json:"reasons"`
	Attachments     []CaseAttachment `json:"attachments"`
	Tags            []string         `json:"tags"`
	ReviewMessageID string           `json:"reviewMessageId,omitempty"`
	ReviewChannelID string           `json:"reviewChannelId,omitempty"`
	History         []HistoryEntry   `json:"history"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}
