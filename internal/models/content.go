package models

import (
	"net/url"
	"time"
)

// SourceID names one of the remote sources a fact is extracted from.
type SourceID string

const (
	SourceLaunch    SourceID = "launch-date"
	SourceRFC       SourceID = "rfc-date"
	SourceCodepoint SourceID = "codepoint"
	SourceGenesis   SourceID = "genesis-date"
	SourceISBN      SourceID = "isbn10"
)

type FetchRequest struct {
	Source SourceID
	URL    string
	Query  url.Values
}

// RawContent is the payload of a single fetch. It is owned by the extractor
// that requested it and dropped once extraction is done.
type RawContent struct {
	Source      SourceID
	URL         string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

func (c *RawContent) Text() string {
	return string(c.Body)
}
