package extract

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
)

var hexField = regexp.MustCompile(`^[0-9A-Fa-f]{4,6}$`)

// Codepoint scans a semicolon-separated data table for the first record
// mentioning the keyword and returns its leading code point.
type Codepoint struct {
	fetcher types.Fetcher
	url     string
	keyword string
}

func NewCodepoint(f types.Fetcher, config Config) *Codepoint {
	config = config.withDefaults()
	return &Codepoint{
		fetcher: f,
		url:     config.EmojiTableURL,
		keyword: strings.ToLower(config.CodepointKeyword),
	}
}

func (e *Codepoint) Source() models.SourceID { return models.SourceCodepoint }

func (e *Codepoint) Extract(ctx context.Context) models.Outcome {
	content, err := fetch(ctx, e.fetcher, e.Source(), e.url, nil)
	if err != nil {
		return models.Failed(e.Source(), err)
	}

	value, ok, err := scanTable(content.Body, e.keyword)
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	if !ok {
		return models.Failed(e.Source(), &models.NotFoundError{Source: e.Source(), What: "codepoint for " + e.keyword})
	}

	fact, err := models.NewFact(models.KindHexCodepoint, value)
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	return models.Verified(e.Source(), fact, "table-record")
}

func scanTable(table []byte, keyword string) (string, bool, error) {
	scanner := bufio.NewScanner(bytes.NewReader(table))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}
		field, _, _ := strings.Cut(line, ";")
		field = strings.TrimSpace(field)
		if hexField.MatchString(field) {
			return strings.ToUpper(field), true, nil
		}
	}
	return "", false, scanner.Err()
}
