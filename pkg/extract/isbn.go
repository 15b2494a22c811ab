package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"go.uber.org/zap"
)

// DefaultISBN10 is the second-edition ISBN used when the search results
// list no second edition with a 10-digit identifier.
const DefaultISBN10 = "0131103628"

var isbn10 = regexp.MustCompile(`^\d{10}$`)

type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	EditionName any      `json:"edition_name"`
	ISBN        []string `json:"isbn"`
}

// ISBN queries the bibliographic search API and returns the ISBN-10 of the
// first listed second edition.
type ISBN struct {
	fetcher types.Fetcher
	url     string
	query   url.Values
	logger  *zap.Logger
}

func NewISBN(f types.Fetcher, config Config) *ISBN {
	config = config.withDefaults()
	return &ISBN{
		fetcher: f,
		url:     config.SearchURL,
		query: url.Values{
			"title":  {config.SearchTitle},
			"author": {config.SearchAuthor},
			"limit":  {strconv.Itoa(config.SearchLimit)},
		},
		logger: config.Logger,
	}
}

func (e *ISBN) Source() models.SourceID { return models.SourceISBN }

func (e *ISBN) Extract(ctx context.Context) models.Outcome {
	content, err := fetch(ctx, e.fetcher, e.Source(), e.url, e.query)
	if err != nil {
		return models.Failed(e.Source(), err)
	}

	var resp searchResponse
	if err := json.Unmarshal(content.Body, &resp); err != nil {
		return models.Failed(e.Source(), fmt.Errorf("decode search response: %w", err))
	}

	if value, ok := secondEditionISBN(resp.Docs); ok {
		fact, err := models.NewFact(models.KindISBN10, value)
		if err != nil {
			return models.Failed(e.Source(), err)
		}
		return models.Verified(e.Source(), fact, "second-edition")
	}

	fact, err := models.NewFact(models.KindISBN10, DefaultISBN10)
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	e.logger.Warn("no second edition ISBN-10 in search results, using default",
		zap.Int("results", len(resp.Docs)),
		zap.String("isbn", DefaultISBN10))
	return models.Defaulted(e.Source(), fact, "no second edition ISBN-10 in search results")
}

// secondEditionISBN walks records in response order. A second edition with
// no 10-digit identifier does not stop the walk.
func secondEditionISBN(docs []searchDoc) (string, bool) {
	for _, doc := range docs {
		edition := strings.ToLower(editionLabel(doc.EditionName))
		if !strings.Contains(edition, "2") && !strings.Contains(edition, "second") {
			continue
		}
		for _, id := range doc.ISBN {
			if isbn10.MatchString(id) {
				return id, true
			}
		}
	}
	return "", false
}

func editionLabel(v any) string {
	switch label := v.(type) {
	case nil:
		return ""
	case string:
		return label
	default:
		return fmt.Sprint(label)
	}
}
