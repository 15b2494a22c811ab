package composer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultPrefix = "FLAG"

// TokenFacts is the number of facts a composite token is built from.
const TokenFacts = 5

type ComposerConfig struct {
	Prefix string
	Logger *zap.Logger
	// OnProgress is called once per extractor as soon as it finishes. It may
	// be called from several goroutines at once. Extractors cut short by an
	// earlier failure are not reported.
	OnProgress func(outcome models.Outcome)
}

type Composer struct {
	config     ComposerConfig
	extractors []types.Extractor
	logger     *zap.Logger
}

// ExtractionError reports the extractor that failed a run.
type ExtractionError struct {
	Source models.SourceID
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func NewWithConfig(config ComposerConfig, extractors ...types.Extractor) *Composer {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Composer{
		config:     config,
		extractors: extractors,
		logger:     config.Logger,
	}
}

// Assemble runs every extractor concurrently and joins the results in
// extractor order. The first failure cancels the remaining fetches and is
// returned as an *ExtractionError; no token is built in that case.
func (c *Composer) Assemble(ctx context.Context) (*models.Run, error) {
	if len(c.extractors) != TokenFacts {
		return nil, fmt.Errorf("need %d extractors, have %d", TokenFacts, len(c.extractors))
	}

	run := &models.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Outcomes:  make([]models.Outcome, len(c.extractors)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, extractor := range c.extractors {
		i, extractor := i, extractor
		g.Go(func() error {
			start := time.Now()
			outcome := extractor.Extract(gctx)
			run.Outcomes[i] = outcome
			if !outcome.OK() && gctx.Err() != nil {
				// A sibling already failed the run.
				c.logger.Debug("extraction cancelled", zap.String("source", string(outcome.Source)))
				return &ExtractionError{Source: outcome.Source, Err: outcome.Err}
			}
			c.report(outcome, time.Since(start))
			if !outcome.OK() {
				return &ExtractionError{Source: outcome.Source, Err: outcome.Err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("assembly failed", zap.String("run", run.ID), zap.Error(err))
		return nil, err
	}

	facts := make([]models.Fact, len(run.Outcomes))
	for i, outcome := range run.Outcomes {
		facts[i] = outcome.Fact
	}
	token, err := Compose(c.config.Prefix, facts)
	if err != nil {
		return nil, err
	}
	run.Token = token
	run.Elapsed = time.Since(run.StartedAt)

	c.logger.Info("assembled token",
		zap.String("run", run.ID),
		zap.String("token", run.Token.Value),
		zap.String("digest", run.Token.Digest),
		zap.Duration("elapsed", run.Elapsed))
	return run, nil
}

func (c *Composer) report(outcome models.Outcome, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("source", string(outcome.Source)),
		zap.String("status", string(outcome.Status)),
		zap.Duration("elapsed", elapsed),
	}
	switch outcome.Status {
	case models.StatusVerified:
		c.logger.Debug("extracted", append(fields, zap.String("value", outcome.Fact.Value()), zap.String("rule", outcome.Rule))...)
	case models.StatusDefaulted:
		c.logger.Warn("used default", append(fields, zap.String("value", outcome.Fact.Value()), zap.String("reason", outcome.Reason))...)
	default:
		c.logger.Warn("extraction failed", append(fields, zap.Error(outcome.Err))...)
	}

	if c.config.OnProgress != nil {
		c.config.OnProgress(outcome)
	}
}

// Compose formats exactly TokenFacts facts as PREFIX{a-b-c-d-e} and digests
// the UTF-8 bytes of that string with SHA-256.
func Compose(prefix string, facts []models.Fact) (models.Token, error) {
	if len(facts) != TokenFacts {
		return models.Token{}, fmt.Errorf("token needs %d facts, have %d", TokenFacts, len(facts))
	}
	for i, f := range facts {
		if f.IsZero() {
			return models.Token{}, fmt.Errorf("fact %d is empty", i)
		}
	}
	values := make([]string, len(facts))
	for i, f := range facts {
		values[i] = f.Value()
	}
	value := fmt.Sprintf("%s{%s}", prefix, strings.Join(values, "-"))
	sum := sha256.Sum256([]byte(value))
	return models.Token{
		Value:  value,
		Digest: hex.EncodeToString(sum[:]),
		Facts:  facts,
	}, nil
}
