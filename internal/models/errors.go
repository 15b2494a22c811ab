package models

import "fmt"

// TransportError is returned by the fetcher for network failures, timeouts
// and non-2xx responses.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError means the content arrived but the expected label, pattern or
// line was not in it.
type NotFoundError struct {
	Source SourceID
	What   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Source, e.What)
}

// ParseError carries the raw date text that matched no known layout.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse date %q", e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }
