package scan

// Log field names.
const (
	LogFieldRunID     = "run_id"
	LogFieldMessageID = "message_id"
	LogFieldGuildID   = "guild_id"
	LogFieldChannelID = "channel_id"
	LogFieldURL       = "url"
	LogFieldOrigin    = "origin"
)

// Scan triggers, used as metric labels.
const (
	TriggerMessage  = "message"
	TriggerReaction = "reaction"
)

// Per-target outcomes, used as metric labels.
const (
	outcomeScanned        = "scanned"
	outcomeDeduped        = "deduped"
	outcomeDownloadFailed = "download_failed"
	outcomeClassifyFailed = "classify_failed"
)

const DefaultConcurrency = 4
