package extract

import (
	"context"
	"regexp"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"github.com/xhad/primarysources/pkg/dates"
)

const (
	rfcMarker     = "April 1 1990"
	rfcMarkerDate = "April 1, 1990"
)

// rfcStage pairs a document with the rules run against it. Stages are tried
// in order and a later document is only fetched if the earlier ones had no
// match.
type rfcStage struct {
	url   string
	rules []rule
}

// RFC resolves the publication date of the protocol document: first from a
// known marker on the info page, then from the first "DD Month YYYY" in the
// full text.
type RFC struct {
	fetcher types.Fetcher
	stages  []rfcStage
}

func NewRFC(f types.Fetcher, config Config) *RFC {
	config = config.withDefaults()
	return &RFC{
		fetcher: f,
		stages: []rfcStage{
			{
				url: config.RFCInfoURL,
				rules: []rule{{
					name:    "info-page-marker",
					pattern: regexp.MustCompile(regexp.QuoteMeta(rfcMarker)),
					build: func([]string) (models.Fact, error) {
						return dates.NormalizeFact(rfcMarkerDate)
					},
				}},
			},
			{
				url: config.RFCTextURL,
				rules: []rule{{
					name:    "text-document-date",
					pattern: regexp.MustCompile(`\b(\d{1,2}\s+[A-Za-z]+\s+\d{4})\b`),
					build:   dateFromGroup(1),
				}},
			},
		},
	}
}

func (e *RFC) Source() models.SourceID { return models.SourceRFC }

func (e *RFC) Extract(ctx context.Context) models.Outcome {
	for _, stage := range e.stages {
		content, err := fetch(ctx, e.fetcher, e.Source(), stage.url, nil)
		if err != nil {
			return models.Failed(e.Source(), err)
		}

		fact, name, ok, err := firstMatch(content.Text(), stage.rules)
		if !ok {
			continue
		}
		if err != nil {
			return models.Failed(e.Source(), err)
		}
		return models.Verified(e.Source(), fact, name)
	}
	return models.Failed(e.Source(), &models.NotFoundError{Source: e.Source(), What: "publication date"})
}
