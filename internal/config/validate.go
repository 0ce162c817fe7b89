package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Browser.Enabled && cfg.Browser.NavTimeout <= 0 {
		return fmt.Errorf("browser.nav_timeout must be > 0")
	}
	if cfg.Browser.SettleDelay < 0 || cfg.Browser.IdleWindow < 0 {
		return fmt.Errorf("browser.settle_delay and browser.idle_window must be >= 0")
	}

	r := cfg.Run
	if r.RowCap < 1 {
		return fmt.Errorf("run.row_cap must be >= 1, got %d", r.RowCap)
	}
	if r.ItemCap < 1 {
		return fmt.Errorf("run.item_cap must be >= 1, got %d", r.ItemCap)
	}
	if r.ItemDelay < 0 || r.SourceDelay < 0 {
		return fmt.Errorf("run.item_delay and run.source_delay must be >= 0")
	}
	if r.SummaryLength < 1 || r.TitleLength < 1 {
		return fmt.Errorf("run.summary_length and run.title_length must be >= 1")
	}
	if r.DedupPrefix < 1 {
		return fmt.Errorf("run.dedup_prefix must be >= 1, got %d", r.DedupPrefix)
	}
	if r.ImageMinBytes < 0 {
		return fmt.Errorf("run.image_min_bytes must be >= 0")
	}
	if r.ImageMaxBytes > 0 && r.ImageMaxBytes < r.ImageMinBytes {
		return fmt.Errorf("run.image_max_bytes must be >= run.image_min_bytes")
	}
	if r.ImageTimeout <= 0 {
		return fmt.Errorf("run.image_timeout must be > 0")
	}
	if r.MaxTags < 1 {
		return fmt.Errorf("run.max_tags must be >= 1, got %d", r.MaxTags)
	}

	if err := ValidateURL(cfg.Store.BaseURL); err != nil {
		return fmt.Errorf("store.base_url: %w", err)
	}
	if cfg.Store.Collection == "" {
		return fmt.Errorf("store.collection must not be empty")
	}
	if cfg.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be > 0")
	}

	for _, key := range []string{"politics", "economy", "society", "culture", "sports", "it"} {
		if cfg.Categories[key] == "" {
			return fmt.Errorf("categories.%s must map to a category id", key)
		}
	}

	switch cfg.Ledger.Type {
	case "", "none":
	case "jsonl":
		if cfg.Ledger.OutputPath == "" {
			return fmt.Errorf("ledger.output_path is required for jsonl ledger")
		}
	case "mongodb":
		if cfg.Ledger.MongoURI == "" || cfg.Ledger.Database == "" || cfg.Ledger.Collection == "" {
			return fmt.Errorf("ledger.mongo_uri, ledger.database and ledger.collection are required for mongodb ledger")
		}
	default:
		return fmt.Errorf("ledger.type %q is not supported (valid: none, jsonl, mongodb)", cfg.Ledger.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
