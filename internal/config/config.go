package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the daily update run.
type Config struct {
	Fetcher    FetcherConfig     `mapstructure:"fetcher"    yaml:"fetcher"`
	Browser    BrowserConfig     `mapstructure:"browser"    yaml:"browser"`
	Run        RunConfig         `mapstructure:"run"        yaml:"run"`
	Store      StoreConfig       `mapstructure:"store"      yaml:"store"`
	Categories map[string]string `mapstructure:"categories" yaml:"categories"`
	Ledger     LedgerConfig      `mapstructure:"ledger"     yaml:"ledger"`
	Naver      NaverConfig       `mapstructure:"naver"      yaml:"naver"`
	Logging    LoggingConfig     `mapstructure:"logging"    yaml:"logging"`
}

// FetcherConfig controls the plain HTTP page fetcher.
type FetcherConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
	AcceptLanguage  string        `mapstructure:"accept_language"  yaml:"accept_language"`
	MaxBodySize     int64         `mapstructure:"max_body_size"    yaml:"max_body_size"`
	MaxRedirects    int           `mapstructure:"max_redirects"    yaml:"max_redirects"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"     yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
}

// BrowserConfig controls the headless browser used for rendering sources.
type BrowserConfig struct {
	Enabled     bool          `mapstructure:"enabled"      yaml:"enabled"`
	Headless    bool          `mapstructure:"headless"     yaml:"headless"`
	Bin         string        `mapstructure:"bin"          yaml:"bin"`
	Stealth     bool          `mapstructure:"stealth"      yaml:"stealth"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"  yaml:"nav_timeout"`
	IdleWindow  time.Duration `mapstructure:"idle_window"  yaml:"idle_window"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// RunConfig holds per-run caps, delays and extraction thresholds.
type RunConfig struct {
	RowCap           int           `mapstructure:"row_cap"            yaml:"row_cap"`
	ItemCap          int           `mapstructure:"item_cap"           yaml:"item_cap"`
	ItemDelay        time.Duration `mapstructure:"item_delay"         yaml:"item_delay"`
	SourceDelay      time.Duration `mapstructure:"source_delay"       yaml:"source_delay"`
	MinTitleLength   int           `mapstructure:"min_title_length"   yaml:"min_title_length"`
	MinContentLength int           `mapstructure:"min_content_length" yaml:"min_content_length"`
	SummaryLength    int           `mapstructure:"summary_length"     yaml:"summary_length"`
	TitleLength      int           `mapstructure:"title_length"       yaml:"title_length"`
	DedupPrefix      int           `mapstructure:"dedup_prefix"       yaml:"dedup_prefix"`
	ImageMinBytes    int64         `mapstructure:"image_min_bytes"    yaml:"image_min_bytes"`
	ImageMaxBytes    int64         `mapstructure:"image_max_bytes"    yaml:"image_max_bytes"`
	ImageTimeout     time.Duration `mapstructure:"image_timeout"      yaml:"image_timeout"`
	MaxTags          int           `mapstructure:"max_tags"           yaml:"max_tags"`
	Sources          []string      `mapstructure:"sources"            yaml:"sources"`
}

// StoreConfig points at the record store the pipeline writes to.
type StoreConfig struct {
	BaseURL    string        `mapstructure:"base_url"    yaml:"base_url"`
	Collection string        `mapstructure:"collection"  yaml:"collection"`
	ImageField string        `mapstructure:"image_field" yaml:"image_field"`
	AuthToken  string        `mapstructure:"auth_token"  yaml:"auth_token"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// LedgerConfig controls where per-item outcomes and run summaries are recorded.
type LedgerConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"` // none, jsonl, mongodb
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	MongoURI   string `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	Database   string `mapstructure:"database"    yaml:"database"`
	Collection string `mapstructure:"collection"  yaml:"collection"`
}

// NaverConfig holds the news search API credentials.
type NaverConfig struct {
	ClientID     string `mapstructure:"client_id"     yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	Endpoint     string `mapstructure:"endpoint"      yaml:"endpoint"`
	Display      int    `mapstructure:"display"       yaml:"display"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultCategories maps taxonomy keys to the store's category record ids.
func DefaultCategories() map[string]string {
	return map[string]string{
		"politics": "mq8899s58bf0699",
		"economy":  "k9r3229a8774k70",
		"society":  "05q79x0comk524d",
		"culture":  "150tdl8949xydgm",
		"sports":   "2se1eh4n9pdfsc5",
		"it":       "575wm01lh7c29c6",
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			Timeout:         15 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:  "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			MaxRedirects:    10,
			IdleConnTimeout: 90 * time.Second,
		},
		Browser: BrowserConfig{
			Enabled:     true,
			Headless:    true,
			Stealth:     true,
			NavTimeout:  30 * time.Second,
			IdleWindow:  500 * time.Millisecond,
			SettleDelay: 2 * time.Second,
		},
		Run: RunConfig{
			RowCap:           5,
			ItemCap:          3,
			ItemDelay:        1 * time.Second,
			SourceDelay:      1500 * time.Millisecond,
			MinTitleLength:   5,
			MinContentLength: 50,
			SummaryLength:    150,
			TitleLength:      200,
			DedupPrefix:      30,
			ImageMinBytes:    5000,
			ImageMaxBytes:    15 * 1024 * 1024,
			ImageTimeout:     15 * time.Second,
			MaxTags:          5,
		},
		Store: StoreConfig{
			BaseURL:    "http://127.0.0.1:8090",
			Collection: "articles",
			ImageField: "thumbnail",
			Timeout:    20 * time.Second,
		},
		Categories: DefaultCategories(),
		Ledger: LedgerConfig{
			Type:       "none",
			OutputPath: "./output/ledger.jsonl",
			MongoURI:   "mongodb://localhost:27017",
			Database:   "dailyfeed",
			Collection: "ingest_ledger",
		},
		Naver: NaverConfig{
			Endpoint: "https://openapi.naver.com/v1/search/news.json",
			Display:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
