package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/retry"
	"time-to-sell/internal/series"

	"github.com/rs/zerolog/log"
)

type Config struct {
	ScoringAPIURL       string
	ScoringHTTPRetryMax int
	ScoringRatePerSec   float64

	RefreshIntervalSecs int
	RetrySchedule       []time.Duration

	DefaultIndex  domain.IndexType
	Position      domain.Position
	ScoreMA       int
	DefaultWindow series.Window

	RedisURL          string
	PriceCacheTTLSecs int

	LogLevel  string
	LogFile   string
	LogPretty bool

	HTTPPort           int
	CORSAllowedOrigins []string
	TelegramBotToken   string

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	SSHEnabled            bool
	SSHBind               string
	SSHPort               int
	SSHHostKeyPath        string
	SSHAuthorizedKeysPath string
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:              strings.TrimSpace(os.Getenv("REDIS_URL")),
		MCPAuthToken:          os.Getenv("MCP_AUTH_TOKEN"),
		LogFile:               strings.TrimSpace(os.Getenv("LOG_FILE")),
		SSHAuthorizedKeysPath: strings.TrimSpace(os.Getenv("SSH_AUTHORIZED_KEYS_PATH")),
	}

	cfg.ScoringAPIURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SCORING_API_URL")), "/")
	if cfg.ScoringAPIURL == "" {
		log.Warn().Msg("SCORING_API_URL not set, defaulting to http://localhost:8000")
		cfg.ScoringAPIURL = "http://localhost:8000"
	}

	cfg.ScoringHTTPRetryMax = 1
	if v := strings.TrimSpace(os.Getenv("SCORING_HTTP_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ScoringHTTPRetryMax = n
		}
	}

	cfg.ScoringRatePerSec = 5
	if v := strings.TrimSpace(os.Getenv("SCORING_RATE_LIMIT_PER_SEC")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.ScoringRatePerSec = n
		}
	}

	cfg.RefreshIntervalSecs = 60
	if v := strings.TrimSpace(os.Getenv("REFRESH_INTERVAL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshIntervalSecs = n
		}
	}

	cfg.RetrySchedule = parseRetrySchedule(os.Getenv("RETRY_SCHEDULE_MS"))

	cfg.DefaultIndex = domain.IndexSP500
	if v := strings.TrimSpace(os.Getenv("DEFAULT_INDEX")); v != "" {
		if t, err := domain.ParseIndexType(v); err == nil {
			cfg.DefaultIndex = t
		} else {
			log.Warn().Str("value", v).Msg("unsupported DEFAULT_INDEX, defaulting to SP500")
		}
	}

	if v := strings.TrimSpace(os.Getenv("POSITION_QUANTITY")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			cfg.Position.TotalQuantity = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("POSITION_AVG_COST")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			cfg.Position.AvgCost = n
		}
	}

	cfg.ScoreMA = domain.DefaultScoreMA
	if v := strings.TrimSpace(os.Getenv("SCORE_MA")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && domain.IsSupportedScoreMA(n) {
			cfg.ScoreMA = n
		} else {
			log.Warn().Str("value", v).Msg("unsupported SCORE_MA, defaulting to 200")
		}
	}

	cfg.DefaultWindow = series.Window1Y
	if v := strings.TrimSpace(os.Getenv("DEFAULT_WINDOW")); v != "" {
		if w, err := series.ParseWindow(v); err == nil {
			cfg.DefaultWindow = w
		}
	}

	cfg.PriceCacheTTLSecs = 60
	if v := strings.TrimSpace(os.Getenv("PRICE_CACHE_TTL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PriceCacheTTLSecs = n
		}
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogPretty = strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_PRETTY")), "true")

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("value", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}

	cfg.MCPHTTPEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("MCP_HTTP_ENABLED")), "true")

	cfg.MCPHTTPBind = strings.TrimSpace(os.Getenv("MCP_HTTP_BIND"))
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}

	cfg.MCPHTTPPort = 8090
	if v := strings.TrimSpace(os.Getenv("MCP_HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPHTTPPort = n
		}
	}

	cfg.MCPRequestTimeoutSecs = 5
	if v := strings.TrimSpace(os.Getenv("MCP_REQUEST_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRequestTimeoutSecs = n
		}
	}

	cfg.MCPRateLimitPerMin = 60
	if v := strings.TrimSpace(os.Getenv("MCP_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MCPRateLimitPerMin = n
		}
	}

	cfg.SSHEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("SSH_ENABLED")), "true")

	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "127.0.0.1"
	}

	cfg.SSHPort = 23234
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKeyPath = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/id_ed25519"
	}

	return cfg
}

// PriceCacheTTL returns the Redis TTL for price-history responses.
func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLSecs) * time.Second
}

// RefreshInterval returns the periodic refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSecs) * time.Second
}

// parseRetrySchedule reads a comma-separated list of millisecond delays. Any
// invalid entry falls back to the default schedule.
func parseRetrySchedule(raw string) []time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]time.Duration(nil), retry.DefaultSchedule...)
	}

	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			log.Warn().Str("value", raw).Msg("invalid RETRY_SCHEDULE_MS, using default schedule")
			return append([]time.Duration(nil), retry.DefaultSchedule...)
		}
		out = append(out, time.Duration(n)*time.Millisecond)
	}
	if len(out) == 0 {
		return append([]time.Duration(nil), retry.DefaultSchedule...)
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
