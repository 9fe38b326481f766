package evo

import (
	"fmt"
	"math/rand"
	"sort"

	"gramevo/internal/genotype"
)

// ScoredNetwork pairs a network with its evaluated accuracy.
type ScoredNetwork struct {
	Network  genotype.Network
	Accuracy float64
}

// Rank sorts by accuracy, highest first. Ties keep the fewer-layer network
// first, then the original order.
func Rank(scored []ScoredNetwork) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Accuracy != scored[j].Accuracy {
			return scored[i].Accuracy > scored[j].Accuracy
		}
		return scored[i].Network.LayerCount() < scored[j].Network.LayerCount()
	})
}

// Selector chooses parents from ranked networks for replication.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredNetwork, eliteCount int) (genotype.Network, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredNetwork, eliteCount int) (genotype.Network, error) {
	if rng == nil {
		return genotype.Network{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return genotype.Network{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return ranked[rng.Intn(eliteCount)].Network, nil
}

// TournamentSelector samples candidates and picks the most accurate among them.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredNetwork, eliteCount int) (genotype.Network, error) {
	if rng == nil {
		return genotype.Network{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return genotype.Network{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	poolSize := s.PoolSize
	if poolSize <= 0 {
		poolSize = eliteCount * 2
	}
	if poolSize < eliteCount {
		poolSize = eliteCount
	}
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > poolSize {
		tournamentSize = poolSize
	}

	best := ranked[rng.Intn(poolSize)]
	for i := 1; i < tournamentSize; i++ {
		candidate := ranked[rng.Intn(poolSize)]
		if candidate.Accuracy > best.Accuracy {
			best = candidate
		}
	}
	return best.Network, nil
}

// SelectorByName maps a configured selector name to a selector.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selector: %s", name)
	}
}
