package db

import "time"

// Case store file constants
const (
	// CaseStoreFilename is the name of the JSON case file inside the store directory
	CaseStoreFilename = "flagged.json"

	caseFilePerm = 0o644
	caseDirPerm  = 0o755
)

// Database connection constants
const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10

	defaultMaxConns          = 5
	defaultMinConns          = 1
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultMaxConnLifetime   = time.Hour
	defaultHealthCheckPeriod = time.Minute
)

// Write outcome labels for the case store metric
const (
	writeStatusOK    = "ok"
	writeStatusError = "error"
)

const (
	logKeyMessageID       = "message_id"
	logKeyReviewMessageID = "review_message_id"
)
