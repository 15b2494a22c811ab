package extract

import (
	"context"
	"regexp"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"github.com/xhad/primarysources/pkg/dates"
	"github.com/xhad/primarysources/pkg/fetcher"
)

var launchRules = []rule{
	{
		name:    "launch-label",
		pattern: regexp.MustCompile(`(?i)Launch Date and Time\s*[:,]?\s*([A-Za-z]+\.?\s+\d{1,2},?\s+\d{4})`),
		build:   dateFromGroup(1),
	},
}

// Launch reads the mission page and returns the labelled launch date. It has
// no default.
type Launch struct {
	fetcher types.Fetcher
	url     string
}

func NewLaunch(f types.Fetcher, config Config) *Launch {
	config = config.withDefaults()
	return &Launch{fetcher: f, url: config.LaunchURL}
}

func (e *Launch) Source() models.SourceID { return models.SourceLaunch }

func (e *Launch) Extract(ctx context.Context) models.Outcome {
	content, err := fetch(ctx, e.fetcher, e.Source(), e.url, nil)
	if err != nil {
		return models.Failed(e.Source(), err)
	}

	text, err := fetcher.TextView(content.Body)
	if err != nil {
		return models.Failed(e.Source(), err)
	}

	fact, name, ok, err := firstMatch(text, launchRules)
	if !ok {
		return models.Failed(e.Source(), &models.NotFoundError{Source: e.Source(), What: "launch date label"})
	}
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	return models.Verified(e.Source(), fact, name)
}

func dateFromGroup(i int) func([]string) (models.Fact, error) {
	return func(groups []string) (models.Fact, error) {
		return dates.NormalizeFact(groups[i])
	}
}
