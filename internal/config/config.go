package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Search    SearchConfig
	Merge     MergeConfig
	Refresh   RefreshConfig
	Crawler   CrawlerConfig
	Browser   BrowserConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// CORSOrigins empty allows any origin
	CORSOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type SearchConfig struct {
	MaxResults int
	// PreferredStores overrides the preferred flags of the store table when set
	PreferredStores []int
	// CatalogFile overrides the embedded category/store/exclusion tables
	CatalogFile string
}

type MergeConfig struct {
	NotifyThreshold int64 // VND
}

type RefreshConfig struct {
	Enabled         bool
	Schedule        string
	BatchSize       int
	StaleAfter      time.Duration
	NotifyThreshold int64 // VND
}

type CrawlerConfig struct {
	Timeout     time.Duration
	UserAgent   string
	CacheTTL    time.Duration
	SourcesFile string
}

type BrowserConfig struct {
	Enabled   bool
	RemoteURL string
	NoSandbox bool
	Settle    time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func Load() *Config {
	// .env values become process env so every consumer sees the same settings
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: no .env file loaded: %v", err)
	}

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_ENABLED", true)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SEARCH_MAX_RESULTS", 50)
	viper.SetDefault("SEARCH_PREFERRED_STORES", "")
	viper.SetDefault("SEARCH_CATALOG_FILE", "")
	viper.SetDefault("MERGE_NOTIFY_THRESHOLD", 0)
	viper.SetDefault("REFRESH_ENABLED", true)
	viper.SetDefault("REFRESH_SCHEDULE", "0 0 * * * *")
	viper.SetDefault("REFRESH_BATCH_SIZE", 10)
	viper.SetDefault("REFRESH_STALE_AFTER", "24h")
	viper.SetDefault("REFRESH_NOTIFY_THRESHOLD", 1000)
	viper.SetDefault("CRAWLER_TIMEOUT", "30s")
	viper.SetDefault("CRAWLER_USER_AGENT", defaultUserAgent)
	viper.SetDefault("CRAWLER_CACHE_TTL", "10m")
	viper.SetDefault("CRAWLER_SOURCES", "")
	viper.SetDefault("BROWSER_ENABLED", true)
	viper.SetDefault("BROWSER_REMOTE_URL", "")
	viper.SetDefault("BROWSER_NO_SANDBOX", false)
	viper.SetDefault("BROWSER_SETTLE", "3s")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Env:         viper.GetString("SERVER_ENV"),
			LogLevel:    viper.GetString("LOG_LEVEL"),
			CORSOrigins: parseStringList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Search: SearchConfig{
			MaxResults:      viper.GetInt("SEARCH_MAX_RESULTS"),
			PreferredStores: parseIntList(viper.GetString("SEARCH_PREFERRED_STORES")),
			CatalogFile:     viper.GetString("SEARCH_CATALOG_FILE"),
		},
		Merge: MergeConfig{
			NotifyThreshold: viper.GetInt64("MERGE_NOTIFY_THRESHOLD"),
		},
		Refresh: RefreshConfig{
			Enabled:         viper.GetBool("REFRESH_ENABLED"),
			Schedule:        viper.GetString("REFRESH_SCHEDULE"),
			BatchSize:       viper.GetInt("REFRESH_BATCH_SIZE"),
			StaleAfter:      viper.GetDuration("REFRESH_STALE_AFTER"),
			NotifyThreshold: viper.GetInt64("REFRESH_NOTIFY_THRESHOLD"),
		},
		Crawler: CrawlerConfig{
			Timeout:     viper.GetDuration("CRAWLER_TIMEOUT"),
			UserAgent:   viper.GetString("CRAWLER_USER_AGENT"),
			CacheTTL:    viper.GetDuration("CRAWLER_CACHE_TTL"),
			SourcesFile: viper.GetString("CRAWLER_SOURCES"),
		},
		Browser: BrowserConfig{
			Enabled:   viper.GetBool("BROWSER_ENABLED"),
			RemoteURL: viper.GetString("BROWSER_REMOTE_URL"),
			NoSandbox: viper.GetBool("BROWSER_NO_SANDBOX"),
			Settle:    viper.GetDuration("BROWSER_SETTLE"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           viper.GetBool("RATE_LIMIT_ENABLED"),
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

// parseIntList parses "2,3,4"; invalid entries are skipped
func parseIntList(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("Warning: ignoring invalid store id %q", part)
			continue
		}
		out = append(out, n)
	}
	return out
}

func parseStringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
