// Package store persists accessibility runs and their per-zone scores.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// Store defines the persistence interface for analysis results. Stored
// scores are always the raw rate; display rescaling happens at export time.
type Store interface {
	CreateRun(ctx context.Context, params model.AnalysisParams, demandCount, supplyCount int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, skipped []string) error
	FailRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	SaveScores(ctx context.Context, runID string, scores []model.ZoneScore) error
	Scores(ctx context.Context, runID string) ([]model.ZoneScore, error)

	Migrate(ctx context.Context) error
	Close() error
}
