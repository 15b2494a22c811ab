package models

import "time"

type Status string

const (
	StatusVerified  Status = "verified"
	StatusDefaulted Status = "defaulted"
	StatusFailed    Status = "failed"
)

// Outcome is the result of one extractor run. A defaulted outcome carries a
// usable Fact but is never reported as verified.
type Outcome struct {
	Source SourceID
	Status Status
	Fact   Fact
	// Rule names the fallback step that produced the fact.
	Rule   string
	Reason string
	Err    error
}

func Verified(source SourceID, fact Fact, rule string) Outcome {
	return Outcome{Source: source, Status: StatusVerified, Fact: fact, Rule: rule}
}

func Defaulted(source SourceID, fact Fact, reason string) Outcome {
	return Outcome{Source: source, Status: StatusDefaulted, Fact: fact, Rule: "default", Reason: reason}
}

func Failed(source SourceID, err error) Outcome {
	return Outcome{Source: source, Status: StatusFailed, Err: err}
}

func (o Outcome) OK() bool {
	return o.Status == StatusVerified || o.Status == StatusDefaulted
}

// Token is the composite string built from all five facts and its digest.
type Token struct {
	Value  string
	Digest string
	Facts  []Fact
}

// Run is one full assembly, as persisted by the run ledger.
type Run struct {
	ID        string
	Token     Token
	Outcomes  []Outcome
	StartedAt time.Time
	Elapsed   time.Duration
}
