package extract

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/xhad/primarysources/internal/models"
	"github.com/xhad/primarysources/internal/types"
	"go.uber.org/zap"
)

// DefaultGenesisTimestamp is the well-known genesis block time, used when the
// source no longer carries either recognised pattern.
const DefaultGenesisTimestamp int64 = 1231006505

var genesisRules = []rule{
	{
		name:    "create-genesis-block",
		pattern: regexp.MustCompile(`CreateGenesisBlock\(\s*(\d{9,10})\s*,`),
		build:   unixDateFromGroup(1),
	},
	{
		name:    "genesis-ntime",
		pattern: regexp.MustCompile(`genesis\.nTime\s*=\s*(\d{9,10})\s*;`),
		build:   unixDateFromGroup(1),
	},
}

// Genesis finds the genesis block timestamp in a source file and reports
// its UTC calendar date.
type Genesis struct {
	fetcher types.Fetcher
	url     string
	logger  *zap.Logger
}

func NewGenesis(f types.Fetcher, config Config) *Genesis {
	config = config.withDefaults()
	return &Genesis{fetcher: f, url: config.GenesisSourceURL, logger: config.Logger}
}

func (e *Genesis) Source() models.SourceID { return models.SourceGenesis }

func (e *Genesis) Extract(ctx context.Context) models.Outcome {
	content, err := fetch(ctx, e.fetcher, e.Source(), e.url, nil)
	if err != nil {
		return models.Failed(e.Source(), err)
	}

	fact, name, ok, err := firstMatch(content.Text(), genesisRules)
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	if ok {
		return models.Verified(e.Source(), fact, name)
	}

	fact, err = unixDate(DefaultGenesisTimestamp)
	if err != nil {
		return models.Failed(e.Source(), err)
	}
	e.logger.Warn("genesis timestamp not found, using default",
		zap.String("url", content.URL),
		zap.Int64("timestamp", DefaultGenesisTimestamp))
	return models.Defaulted(e.Source(), fact, "no genesis timestamp pattern in source")
}

func unixDateFromGroup(i int) func([]string) (models.Fact, error) {
	return func(groups []string) (models.Fact, error) {
		ts, err := strconv.ParseInt(groups[i], 10, 64)
		if err != nil {
			return models.Fact{}, err
		}
		return unixDate(ts)
	}
}

func unixDate(ts int64) (models.Fact, error) {
	return models.NewFact(models.KindDate, time.Unix(ts, 0).UTC().Format("20060102"))
}
