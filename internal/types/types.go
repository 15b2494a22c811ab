package types

import (
	"context"

	"github.com/xhad/primarysources/internal/models"
)

// Core interfaces
type Fetcher interface {
	Fetch(ctx context.Context, req models.FetchRequest) (*models.RawContent, error)
}

type Extractor interface {
	Source() models.SourceID
	Extract(ctx context.Context) models.Outcome
}

type RunStore interface {
	Save(ctx context.Context, run *models.Run) error
	Recent(ctx context.Context, limit int) ([]models.Run, error)
	Close()
}
