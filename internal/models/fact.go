package models

import (
	"fmt"
	"regexp"
	"time"
)

type Kind string

const (
	KindDate         Kind = "date"
	KindHexCodepoint Kind = "hex-codepoint"
	KindISBN10       Kind = "isbn10"
)

var (
	dateShape      = regexp.MustCompile(`^\d{8}$`)
	codepointShape = regexp.MustCompile(`^[0-9A-F]{4,6}$`)
	isbn10Shape    = regexp.MustCompile(`^\d{10}$`)
)

// Fact is a canonical value. The only way to build one is NewFact, so a Fact
// in hand always matches the shape of its kind.
type Fact struct {
	kind  Kind
	value string
}

func NewFact(kind Kind, value string) (Fact, error) {
	switch kind {
	case KindDate:
		if !dateShape.MatchString(value) {
			return Fact{}, fmt.Errorf("date %q is not 8 digits", value)
		}
		if _, err := time.Parse("20060102", value); err != nil {
			return Fact{}, fmt.Errorf("date %q is not a calendar date: %w", value, err)
		}
	case KindHexCodepoint:
		if !codepointShape.MatchString(value) {
			return Fact{}, fmt.Errorf("codepoint %q is not 4-6 uppercase hex digits", value)
		}
	case KindISBN10:
		if !isbn10Shape.MatchString(value) {
			return Fact{}, fmt.Errorf("isbn %q is not 10 digits", value)
		}
	default:
		return Fact{}, fmt.Errorf("unknown fact kind %q", kind)
	}
	return Fact{kind: kind, value: value}, nil
}

func (f Fact) Kind() Kind { return f.kind }
func (f Fact) Value() string { return f.value }
func (f Fact) String() string { return f.value }
func (f Fact) IsZero() bool { return f.kind == "" }
