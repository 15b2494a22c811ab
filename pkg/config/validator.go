package config

import (
	"fmt"
	"net/url"

	"go.uber.org/zap/zapcore"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate source URLs
	sources := []struct {
		field string
		value string
	}{
		{"sources.launch_url", c.Sources.LaunchURL},
		{"sources.rfc_info_url", c.Sources.RFCInfoURL},
		{"sources.rfc_text_url", c.Sources.RFCTextURL},
		{"sources.emoji_table_url", c.Sources.EmojiTableURL},
		{"sources.genesis_source_url", c.Sources.GenesisSourceURL},
		{"sources.search_url", c.Sources.SearchURL},
	}
	for _, s := range sources {
		if !isHTTPURL(s.value) {
			errors = append(errors, ValidationError{
				Field:   s.field,
				Message: fmt.Sprintf("invalid source URL: %q", s.value),
			})
		}
	}

	if c.Sources.CodepointKeyword == "" {
		errors = append(errors, ValidationError{
			Field:   "sources.codepoint_keyword",
			Message: "codepoint_keyword is required",
		})
	}

	if c.Sources.Search.Limit < 1 || c.Sources.Search.Limit > 1000 {
		errors = append(errors, ValidationError{
			Field:   "sources.search.limit",
			Message: "limit must be between 1 and 1000",
		})
	}

	// Validate Fetcher config
	if c.Fetcher.UserAgent == "" {
		errors = append(errors, ValidationError{
			Field:   "fetcher.user_agent",
			Message: "user_agent is required",
		})
	}

	if c.Fetcher.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.timeout",
			Message: "timeout must be positive",
		})
	}

	if c.Fetcher.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Fetcher.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.burst",
			Message: "burst must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown log level: %s", c.Log.Level),
		})
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
