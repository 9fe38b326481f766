package storage

import (
	"context"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

// Store persists networks, run summaries, per-individual report rows and
// the best network of every generation.
type Store interface {
	Init(ctx context.Context) error
	SaveNetwork(ctx context.Context, net genotype.Network) error
	GetNetwork(ctx context.Context, id string) (genotype.Network, bool, error)
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	SaveResults(ctx context.Context, runID string, results []model.IndividualResult) error
	GetResults(ctx context.Context, runID string) ([]model.IndividualResult, bool, error)
	SaveBestNetwork(ctx context.Context, runID string, generation int, net genotype.Network) error
	GetBestNetwork(ctx context.Context, runID string, generation int) (genotype.Network, bool, error)
}
