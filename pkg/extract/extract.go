// Package extract holds one extractor per remote source. Each extractor
// fetches its content, walks an ordered chain of matching rules and returns a
// models.Outcome.
package extract

import (
	"context"
	"net/url"
	"regexp"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultLaunchURL        = "https://science.nasa.gov/mission/voyager/voyager-1/"
	DefaultRFCInfoURL       = "https://www.rfc-editor.org/info/rfc1149"
	DefaultRFCTextURL       = "https://www.rfc-editor.org/rfc/rfc1149.txt"
	DefaultEmojiTableURL    = "https://www.unicode.org/Public/emoji/16.0/emoji-test.txt"
	DefaultGenesisSourceURL = "https://raw.githubusercontent.com/bitcoin/bitcoin/master/src/chainparams.cpp"
	DefaultSearchURL        = "https://openlibrary.org/search.json"
)

type Config struct {
	LaunchURL        string
	RFCInfoURL       string
	RFCTextURL       string
	EmojiTableURL    string
	GenesisSourceURL string
	SearchURL        string
	CodepointKeyword string
	SearchTitle      string
	SearchAuthor     string
	SearchLimit      int
	Logger           *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.LaunchURL == "" {
		c.LaunchURL = DefaultLaunchURL
	}
	if c.RFCInfoURL == "" {
		c.RFCInfoURL = DefaultRFCInfoURL
	}
	if c.RFCTextURL == "" {
		c.RFCTextURL = DefaultRFCTextURL
	}
	if c.EmojiTableURL == "" {
		c.EmojiTableURL = DefaultEmojiTableURL
	}
	if c.GenesisSourceURL == "" {
		c.GenesisSourceURL = DefaultGenesisSourceURL
	}
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.CodepointKeyword == "" {
		c.CodepointKeyword = "brain"
	}
	if c.SearchTitle == "" {
		c.SearchTitle = "The C Programming Language"
	}
	if c.SearchAuthor == "" {
		c.SearchAuthor = "Kernighan"
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = 20
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// All returns the five extractors in token order.
func All(fetcher types.Fetcher, config Config) []types.Extractor {
	config = config.withDefaults()
	return []types.Extractor{
		NewLaunch(fetcher, config),
		NewRFC(fetcher, config),
		NewCodepoint(fetcher, config),
		NewGenesis(fetcher, config),
		NewISBN(fetcher, config),
	}
}

// rule is one step of a fallback chain: if pattern matches, build turns the
// submatches into a fact.
type rule struct {
	name    string
	pattern *regexp.Regexp
	build   func(groups []string) (models.Fact, error)
}

// firstMatch runs rules in order and stops at the first pattern that
// matches. A matching rule whose build fails ends the chain with that error.
func firstMatch(text string, rules []rule) (models.Fact, string, bool, error) {
	for _, r := range rules {
		groups := r.pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		fact, err := r.build(groups)
		return fact, r.name, true, err
	}
	return models.Fact{}, "", false, nil
}

func fetch(ctx context.Context, f types.Fetcher, source models.SourceID, rawURL string, query url.Values) (*models.RawContent, error) {
	return f.Fetch(ctx, models.FetchRequest{Source: source, URL: rawURL, Query: query})
}
