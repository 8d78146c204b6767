package cfg

import "time"

type Command string

const (
	CommandServe      Command = "serve"
	CommandIngest     Command = "ingest"
	CommandReclassify Command = "reclassify"
	CommandStatuses   Command = "statuses"
)

func (c Command) Valid() bool {
	switch c {
	case CommandServe, CommandIngest, CommandReclassify, CommandStatuses:
		return true
	}
	return false
}

type Cfg struct {
	Command Command

	// Database configuration
	DBDriver string
	DBDSN    string

	// HTTP server
	Port          string
	BaseURL       string
	APIAccessKey  string
	AdminPassword string
	HTTPRate      float64
	HTTPBurst     int

	// Ingestion
	SourcesFile   string
	IngestMode    string
	Lookahead     time.Duration
	FetchFullText bool

	// Votes
	VoteRateLimit  int
	VoteRateWindow time.Duration

	// Classification
	MistralAPIKey   string
	MistralEndpoint string
	MistralModel    string
	MistralTimeout  time.Duration
	MistralAttempts int
	MistralBackoff  time.Duration
	ClassifyDelay   time.Duration
	ReclassifyLimit int
	Force           bool

	// Cache
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	// Scheduling
	IngestSchedule     string
	StatusSchedule     string
	ReclassifySchedule string

	// Application metadata
	UserAgent string
	Location  *time.Location
	Debug     bool
	Version   string
}
