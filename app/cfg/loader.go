package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/constituant/constituant/app/database"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"postgres" choice:"postgres" choice:"sqlite" description:"Database driver"`
	DBDSN      string `long:"db-dsn" env:"DB_DSN" description:"Database DSN; for sqlite the database file path"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"constituant" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"constituant" description:"Database name"`

	// HTTP server
	Port          string  `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseURL       string  `long:"base-url" env:"BASE_URL" default:"https://constituant.fr" description:"Public base URL, used in the RSS feed"`
	APIAccessKey  string  `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the review and import endpoints (optional)"`
	AdminPassword string  `long:"admin-password" env:"ADMIN_PASSWORD" description:"Password for manual bill management (optional)"`
	HTTPRate      float64 `long:"http-rate" env:"HTTP_RATE" default:"2" description:"Vote requests per second allowed per IP"`
	HTTPBurst     int     `long:"http-burst" env:"HTTP_BURST" default:"5" description:"Vote request burst allowed per IP"`

	// Ingestion
	SourcesFile   string `long:"sources-file" env:"SOURCES_FILE" default:"sources.yml" description:"Source configuration file"`
	IngestMode    string `long:"ingest-mode" env:"INGEST_MODE" default:"review" choice:"review" choice:"direct" description:"Store fetched bills for review or publish them directly"`
	LookaheadDays int    `long:"lookahead-days" env:"LOOKAHEAD_DAYS" default:"7" description:"Days before a vote during which a bill is open for voting"`
	FetchFullText bool   `long:"fetch-full-text" env:"FETCH_FULL_TEXT" description:"Download bill pages to feed the classifier"`

	// Votes
	VoteRateLimit  int `long:"vote-rate-limit" env:"VOTE_RATE_LIMIT" default:"10" description:"Votes allowed per IP within the rate window"`
	VoteRateWindow int `long:"vote-rate-window" env:"VOTE_RATE_WINDOW" default:"3600" description:"Vote rate window in seconds"`

	// Classification
	MistralAPIKey   string `long:"mistral-api-key" env:"MISTRAL_API_KEY" description:"Mistral API key; classification is disabled without it"`
	MistralEndpoint string `long:"mistral-endpoint" env:"MISTRAL_ENDPOINT" default:"https://api.mistral.ai/v1/chat/completions" description:"Chat completions endpoint"`
	MistralModel    string `long:"mistral-model" env:"MISTRAL_MODEL" default:"mistral-small-latest" description:"Model name"`
	MistralTimeout  int    `long:"mistral-timeout" env:"MISTRAL_TIMEOUT" default:"30" description:"Classification request timeout in seconds"`
	MistralAttempts int    `long:"mistral-attempts" env:"MISTRAL_ATTEMPTS" default:"3" description:"Classification attempts per bill"`
	MistralBackoff  int    `long:"mistral-backoff" env:"MISTRAL_BACKOFF" default:"2" description:"Seconds between classification attempts"`
	ClassifyDelay   int    `long:"classify-delay" env:"CLASSIFY_DELAY" default:"1" description:"Seconds between two classified bills"`
	ReclassifyLimit int    `long:"limit" env:"RECLASSIFY_LIMIT" default:"10" description:"Bills handled by one reclassify run"`
	Force           bool   `long:"force" description:"Reclassify every pending bill, not only unclassified ones"`

	// Cache
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address; caching is disabled without it"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	CacheTTL      int    `long:"cache-ttl" env:"CACHE_TTL" default:"60" description:"Cache TTL in seconds"`

	// Scheduling
	IngestSchedule     string `long:"ingest-schedule" env:"INGEST_SCHEDULE" default:"0 */6 * * *" description:"Cron schedule of ingestion runs (empty disables)"`
	StatusSchedule     string `long:"status-schedule" env:"STATUS_SCHEDULE" default:"*/15 * * * *" description:"Cron schedule of the status job (empty disables)"`
	ReclassifySchedule string `long:"reclassify-schedule" env:"RECLASSIFY_SCHEDULE" default:"30 */6 * * *" description:"Cron schedule of pending bill reclassification (empty disables)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Constituant/1.0 (Civic Platform; +https://constituant.fr)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Europe/Paris" description:"Timezone for source dates and timelines"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Command string `positional-arg-name:"command" description:"serve, ingest, reclassify or statuses"`
	} `positional-args:"yes"`
}

// Load reads .env, the environment and the process arguments.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit arguments. Variables already present in the
// environment win over the .env file. It returns (nil, nil) when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	envFile := cmp.Or(os.Getenv("ENV_FILE"), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	var raw rawCfg
	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return build(raw)
}

func build(raw rawCfg) (*Cfg, error) {
	command := Command(cmp.Or(raw.Args.Command, string(CommandServe)))
	if !command.Valid() {
		return nil, fmt.Errorf("unknown command %q", raw.Args.Command)
	}

	for name, v := range map[string]int{
		"lookahead-days":   raw.LookaheadDays,
		"vote-rate-limit":  raw.VoteRateLimit,
		"vote-rate-window": raw.VoteRateWindow,
		"mistral-timeout":  raw.MistralTimeout,
		"mistral-attempts": raw.MistralAttempts,
		"mistral-backoff":  raw.MistralBackoff,
		"classify-delay":   raw.ClassifyDelay,
		"limit":            raw.ReclassifyLimit,
		"cache-ttl":        raw.CacheTTL,
		"http-burst":       raw.HTTPBurst,
	} {
		if v < 0 {
			return nil, fmt.Errorf("--%s cannot be negative", name)
		}
	}
	if raw.HTTPRate < 0 {
		return nil, fmt.Errorf("--http-rate cannot be negative")
	}

	dsn := raw.DBDSN
	if dsn == "" {
		switch raw.DBDriver {
		case string(database.DialectPostgres):
			dsn = database.PostgresDSN(raw.DBHost, raw.DBPort, raw.DBUser, raw.DBPassword, raw.DBName)
		default:
			dsn = "constituant.db"
		}
	}

	loc, err := time.LoadLocation(raw.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", raw.Timezone, err)
	}

	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }

	return &Cfg{
		Command:            command,
		DBDriver:           raw.DBDriver,
		DBDSN:              dsn,
		Port:               raw.Port,
		BaseURL:            raw.BaseURL,
		APIAccessKey:       raw.APIAccessKey,
		AdminPassword:      raw.AdminPassword,
		HTTPRate:           raw.HTTPRate,
		HTTPBurst:          raw.HTTPBurst,
		SourcesFile:        raw.SourcesFile,
		IngestMode:         raw.IngestMode,
		Lookahead:          time.Duration(raw.LookaheadDays) * 24 * time.Hour,
		FetchFullText:      raw.FetchFullText,
		VoteRateLimit:      raw.VoteRateLimit,
		VoteRateWindow:     seconds(raw.VoteRateWindow),
		MistralAPIKey:      raw.MistralAPIKey,
		MistralEndpoint:    raw.MistralEndpoint,
		MistralModel:       raw.MistralModel,
		MistralTimeout:     seconds(raw.MistralTimeout),
		MistralAttempts:    raw.MistralAttempts,
		MistralBackoff:     seconds(raw.MistralBackoff),
		ClassifyDelay:      seconds(raw.ClassifyDelay),
		ReclassifyLimit:    raw.ReclassifyLimit,
		Force:              raw.Force,
		RedisAddr:          raw.RedisAddr,
		RedisPassword:      raw.RedisPassword,
		CacheTTL:           seconds(raw.CacheTTL),
		IngestSchedule:     raw.IngestSchedule,
		StatusSchedule:     raw.StatusSchedule,
		ReclassifySchedule: raw.ReclassifySchedule,
		UserAgent:          raw.UserAgent,
		Location:           loc,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}, nil
}
