package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xhad/primarysources/pkg/composer"
	"github.com/xhad/primarysources/pkg/extract"
	"github.com/xhad/primarysources/pkg/fetcher"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Sources struct {
		LaunchURL        string `yaml:"launch_url"`
		RFCInfoURL       string `yaml:"rfc_info_url"`
		RFCTextURL       string `yaml:"rfc_text_url"`
		EmojiTableURL    string `yaml:"emoji_table_url"`
		GenesisSourceURL string `yaml:"genesis_source_url"`
		SearchURL        string `yaml:"search_url"`
		CodepointKeyword string `yaml:"codepoint_keyword"`
		Search           struct {
			Title  string `yaml:"title"`
			Author string `yaml:"author"`
			Limit  int    `yaml:"limit"`
		} `yaml:"search"`
	} `yaml:"sources"`

	Fetcher struct {
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
		Burst     int           `yaml:"burst"`
	} `yaml:"fetcher"`

	Composer struct {
		Prefix string `yaml:"prefix"`
	} `yaml:"composer"`

	Database struct {
		URL         string `yaml:"url"`
		TablePrefix string `yaml:"table_prefix"`
	} `yaml:"database"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/primarysources/config.yaml"),
			"/etc/primarysources/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	s := &config.Sources
	if s.LaunchURL == "" {
		s.LaunchURL = extract.DefaultLaunchURL
	}
	if s.RFCInfoURL == "" {
		s.RFCInfoURL = extract.DefaultRFCInfoURL
	}
	if s.RFCTextURL == "" {
		s.RFCTextURL = extract.DefaultRFCTextURL
	}
	if s.EmojiTableURL == "" {
		s.EmojiTableURL = extract.DefaultEmojiTableURL
	}
	if s.GenesisSourceURL == "" {
		s.GenesisSourceURL = extract.DefaultGenesisSourceURL
	}
	if s.SearchURL == "" {
		s.SearchURL = extract.DefaultSearchURL
	}
	if s.CodepointKeyword == "" {
		s.CodepointKeyword = "brain"
	}
	if s.Search.Title == "" {
		s.Search.Title = "The C Programming Language"
	}
	if s.Search.Author == "" {
		s.Search.Author = "Kernighan"
	}
	if s.Search.Limit == 0 {
		s.Search.Limit = 20
	}

	if config.Fetcher.UserAgent == "" {
		config.Fetcher.UserAgent = fetcher.DefaultUserAgent
	}
	if config.Fetcher.Timeout == 0 {
		config.Fetcher.Timeout = 15 * time.Second
	}
	if config.Fetcher.RateLimit == 0 {
		config.Fetcher.RateLimit = 5
	}
	if config.Fetcher.Burst == 0 {
		config.Fetcher.Burst = 5
	}

	if config.Composer.Prefix == "" {
		config.Composer.Prefix = composer.DefaultPrefix
	}

	if config.Database.TablePrefix == "" {
		config.Database.TablePrefix = "primary_sources"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if ua := os.Getenv("PRIMARY_SOURCES_USER_AGENT"); ua != "" {
		config.Fetcher.UserAgent = ua
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
}

// ExtractConfig maps the sources section onto the extractor settings.
func (c *Config) ExtractConfig() extract.Config {
	return extract.Config{
		LaunchURL:        c.Sources.LaunchURL,
		RFCInfoURL:       c.Sources.RFCInfoURL,
		RFCTextURL:       c.Sources.RFCTextURL,
		EmojiTableURL:    c.Sources.EmojiTableURL,
		GenesisSourceURL: c.Sources.GenesisSourceURL,
		SearchURL:        c.Sources.SearchURL,
		CodepointKeyword: c.Sources.CodepointKeyword,
		SearchTitle:      c.Sources.Search.Title,
		SearchAuthor:     c.Sources.Search.Author,
		SearchLimit:      c.Sources.Search.Limit,
	}
}

func (c *Config) FetcherConfig() fetcher.FetcherConfig {
	return fetcher.FetcherConfig{
		UserAgent: c.Fetcher.UserAgent,
		Timeout:   c.Fetcher.Timeout,
		RateLimit: c.Fetcher.RateLimit,
		Burst:     c.Fetcher.Burst,
	}
}
