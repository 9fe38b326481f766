package evo

import (
	"context"

	"gramevo/internal/genotype"
)

// Operator returns a mutated copy of net. The argument is never modified.
type Operator interface {
	Name() string
	Apply(ctx context.Context, net genotype.Network) (genotype.Network, error)
}
