package domain

// Post is an outbound message with an optional rich embed.
type Post struct {
	Content string
	Embed   *PostEmbed
}

// PostEmbed is the platform-neutral rich embed of an outbound message.
type PostEmbed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Fields      []PostField
	Footer      string
}

// PostField is one name/value pair of a PostEmbed.
type PostField struct {
	Name   string
	Value  string
	Inline bool
}

// PostedMessage identifies a message the bot sent.
type PostedMessage struct {
	ID        string
	ChannelID string
}

// MemberAccess describes what a guild member may do.
type MemberAccess struct {
	Administrator bool
	RoleIDs       []string
}
