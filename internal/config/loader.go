package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("DAILYFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names the rest of the system already uses for the same settings.
	_ = v.BindEnv("store.base_url", "DAILYFEED_STORE_BASE_URL", "POCKETBASE_URL", "NEXT_PUBLIC_POCKETBASE_URL")
	_ = v.BindEnv("naver.client_id", "DAILYFEED_NAVER_CLIENT_ID", "NAVER_CLIENT_ID")
	_ = v.BindEnv("naver.client_secret", "DAILYFEED_NAVER_CLIENT_SECRET", "NAVER_CLIENT_SECRET")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dailyfeed")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".dailyfeed"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// A partial categories map in the file keeps the remaining defaults.
	for key, id := range DefaultCategories() {
		if cfg.Categories[key] == "" {
			cfg.Categories[key] = id
		}
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)

	v.SetDefault("browser.enabled", cfg.Browser.Enabled)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.nav_timeout", cfg.Browser.NavTimeout)
	v.SetDefault("browser.idle_window", cfg.Browser.IdleWindow)
	v.SetDefault("browser.settle_delay", cfg.Browser.SettleDelay)

	v.SetDefault("run.row_cap", cfg.Run.RowCap)
	v.SetDefault("run.item_cap", cfg.Run.ItemCap)
	v.SetDefault("run.item_delay", cfg.Run.ItemDelay)
	v.SetDefault("run.source_delay", cfg.Run.SourceDelay)
	v.SetDefault("run.min_title_length", cfg.Run.MinTitleLength)
	v.SetDefault("run.min_content_length", cfg.Run.MinContentLength)
	v.SetDefault("run.summary_length", cfg.Run.SummaryLength)
	v.SetDefault("run.title_length", cfg.Run.TitleLength)
	v.SetDefault("run.dedup_prefix", cfg.Run.DedupPrefix)
	v.SetDefault("run.image_min_bytes", cfg.Run.ImageMinBytes)
	v.SetDefault("run.image_max_bytes", cfg.Run.ImageMaxBytes)
	v.SetDefault("run.image_timeout", cfg.Run.ImageTimeout)
	v.SetDefault("run.max_tags", cfg.Run.MaxTags)
	v.SetDefault("run.sources", cfg.Run.Sources)

	v.SetDefault("store.base_url", cfg.Store.BaseURL)
	v.SetDefault("store.collection", cfg.Store.Collection)
	v.SetDefault("store.image_field", cfg.Store.ImageField)
	v.SetDefault("store.auth_token", cfg.Store.AuthToken)
	v.SetDefault("store.timeout", cfg.Store.Timeout)

	for key, id := range cfg.Categories {
		v.SetDefault("categories."+key, id)
	}

	v.SetDefault("ledger.type", cfg.Ledger.Type)
	v.SetDefault("ledger.output_path", cfg.Ledger.OutputPath)
	v.SetDefault("ledger.mongo_uri", cfg.Ledger.MongoURI)
	v.SetDefault("ledger.database", cfg.Ledger.Database)
	v.SetDefault("ledger.collection", cfg.Ledger.Collection)

	v.SetDefault("naver.client_id", cfg.Naver.ClientID)
	v.SetDefault("naver.client_secret", cfg.Naver.ClientSecret)
	v.SetDefault("naver.endpoint", cfg.Naver.Endpoint)
	v.SetDefault("naver.display", cfg.Naver.Display)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
