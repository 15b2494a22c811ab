// Package dates turns human-written date text into the canonical YYYYMMDD form.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/xhad/primarysources/internal/models"
)

// Canonical is the output layout of Normalize.
const Canonical = "20060102"

// Layouts are tried in order and the first one that consumes the whole
// string wins. Some inputs fit more than one layout, so the order matters.
var Layouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-1-2",
	"2006 Jan 2",
	"2006 January 2",
}

var (
	spaceRun       = regexp.MustCompile(`\s+`)
	trailingPeriod = regexp.MustCompile(`\.(\s|$)`)
	septAbbrev     = regexp.MustCompile(`(?i)\bsept\b`)
)

// Normalize parses text against Layouts and returns it as YYYYMMDD. On
// failure it returns a *models.ParseError holding the text as given.
func Normalize(text string) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Format(Canonical), nil
}

// Parse is Normalize without the final formatting: it returns the time from
// the first layout that matches the preprocessed text, or a
// *models.ParseError carrying the untrimmed input.
func Parse(text string) (time.Time, error) {
	cleaned := preprocess(text)

	var lastErr error
	for _, layout := range Layouts {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &models.ParseError{Text: text, Err: lastErr}
}

// NormalizeFact is Normalize wrapped into a date Fact.
func NormalizeFact(text string) (models.Fact, error) {
	value, err := Normalize(text)
	if err != nil {
		return models.Fact{}, err
	}
	return models.NewFact(models.KindDate, value)
}

func preprocess(text string) string {
	text = strings.TrimSpace(text)
	text = spaceRun.ReplaceAllString(text, " ")
	// "Sept. 5, 1977." -> "Sept 5, 1977"; periods inside tokens stay.
	text = trailingPeriod.ReplaceAllString(text, "$1")
	return septAbbrev.ReplaceAllString(text, "Sep")
}
