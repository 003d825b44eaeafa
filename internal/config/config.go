package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "IMMOSYNC_CONFIG"
	airtableTokenEnv = "AIRTABLE_TOKEN"
	airtableBaseEnv  = "AIRTABLE_BASE"
	airtableTableEnv = "AIRTABLE_TABLE_ID"
	openAIKeyEnv     = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	postgresDSNEnv   = "POSTGRES_DSN"
	fullReplaceEnv   = "FULL_REPLACE"
	requestDelayEnv  = "REQUEST_DELAY_MS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Airtable AirtableConfig `yaml:"airtable"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Sync     SyncConfig     `yaml:"sync"`
	Export   ExportConfig   `yaml:"export"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig describes the source site and how politely to crawl it.
type SiteConfig struct {
	BaseURL        string   `yaml:"baseUrl"`
	ListPath       string   `yaml:"listPath"`
	ViewerHost     string   `yaml:"viewerHost"`
	UserAgents     []string `yaml:"userAgents"`
	RequestDelayMs int      `yaml:"requestDelayMs"`
	MaxRetries     int      `yaml:"maxRetries"`
}

// ListURL resolves the overview page URL.
func (s SiteConfig) ListURL() string {
	return strings.TrimSuffix(s.BaseURL, "/") + s.ListPath
}

// RequestDelay returns the base inter-request delay.
func (s SiteConfig) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelayMs) * time.Millisecond
}

// AirtableConfig wires the remote tabular store. Empty credentials switch
// the run into export-only mode.
type AirtableConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Base     string `yaml:"base"`
	TableID  string `yaml:"tableId"`
}

// Configured reports whether sync against the store is possible.
func (a AirtableConfig) Configured() bool {
	return a.Token != "" && a.Base != "" && a.TableID != ""
}

// OpenAIConfig defines how to contact the completion API.
type OpenAIConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// SyncConfig selects the reconciliation mode.
type SyncConfig struct {
	FullReplace bool `yaml:"fullReplace"`
}

// ExportConfig points to the CSV output file.
type ExportConfig struct {
	CSVPath string `yaml:"csvPath"`
}

// ArchiveConfig describes the optional Postgres scrape-history archive.
type ArchiveConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// fileConfig mirrors Config for YAML decoding. FullReplace is a pointer so
// an explicit false in the file is distinguishable from an absent key.
type fileConfig struct {
	Site     SiteConfig     `yaml:"site"`
	Airtable AirtableConfig `yaml:"airtable"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Sync     fileSyncConfig `yaml:"sync"`
	Export   ExportConfig   `yaml:"export"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type fileSyncConfig struct {
	FullReplace *bool `yaml:"fullReplace"`
}

// Load reads .env, the YAML configuration (if present) and applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using process environment")
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg fileConfig
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(airtableTokenEnv); v != "" {
		c.Airtable.Token = v
	}
	if v := os.Getenv(airtableBaseEnv); v != "" {
		c.Airtable.Base = v
	}
	if v := os.Getenv(airtableTableEnv); v != "" {
		c.Airtable.TableID = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv(postgresDSNEnv); v != "" {
		c.Archive.DSN = v
	}
	if v := os.Getenv(fullReplaceEnv); v != "" {
		c.Sync.FullReplace = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v := os.Getenv(requestDelayEnv); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Site.RequestDelayMs = ms
		}
	}
}

func mergeConfig(base Config, override fileConfig) Config {
	if override.Site.BaseURL != "" {
		base.Site.BaseURL = override.Site.BaseURL
	}
	if override.Site.ListPath != "" {
		base.Site.ListPath = override.Site.ListPath
	}
	if override.Site.ViewerHost != "" {
		base.Site.ViewerHost = override.Site.ViewerHost
	}
	if len(override.Site.UserAgents) > 0 {
		base.Site.UserAgents = override.Site.UserAgents
	}
	if override.Site.RequestDelayMs > 0 {
		base.Site.RequestDelayMs = override.Site.RequestDelayMs
	}
	if override.Site.MaxRetries > 0 {
		base.Site.MaxRetries = override.Site.MaxRetries
	}

	if override.Airtable.Endpoint != "" {
		base.Airtable.Endpoint = override.Airtable.Endpoint
	}
	if override.Airtable.Token != "" {
		base.Airtable.Token = override.Airtable.Token
	}
	if override.Airtable.Base != "" {
		base.Airtable.Base = override.Airtable.Base
	}
	if override.Airtable.TableID != "" {
		base.Airtable.TableID = override.Airtable.TableID
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}

	if override.Sync.FullReplace != nil {
		base.Sync.FullReplace = *override.Sync.FullReplace
	}
	if override.Export.CSVPath != "" {
		base.Export.CSVPath = override.Export.CSVPath
	}
	if override.Archive.DSN != "" {
		base.Archive.DSN = override.Archive.DSN
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Site: SiteConfig{
			BaseURL:    "https://alainreinickeimmobilien.de",
			ListPath:   "/aktuelle-angebote/",
			ViewerHost: "landingpage.immobilien",
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
			},
			RequestDelayMs: 1500,
			MaxRetries:     4,
		},
		Airtable: AirtableConfig{
			Endpoint: "https://api.airtable.com/v0",
		},
		OpenAI: OpenAIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Sync:    SyncConfig{FullReplace: true},
		Export:  ExportConfig{CSVPath: "immosync_records.csv"},
		Logging: LoggingConfig{Level: "info"},
	}
}
