package evo

import (
	"fmt"
	"math"
	"math/rand"

	"gramevo/internal/genotype"
)

// MutationCountPolicy determines how many mutation operations are applied
// to each replicated child network.
type MutationCountPolicy interface {
	Name() string
	MutationCount(net genotype.Network, generation int, rng *rand.Rand) (int, error)
}

type ConstMutations struct {
	Count int
}

func (ConstMutations) Name() string {
	return "const"
}

func (p ConstMutations) MutationCount(_ genotype.Network, _ int, _ *rand.Rand) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const mutation count must be > 0")
	}
	return p.Count, nil
}

// ModuleCountLinearMutations scales the count with the number of modules.
type ModuleCountLinearMutations struct {
	Multiplier float64
	MaxCount   int
}

func (ModuleCountLinearMutations) Name() string {
	return "mcount_linear"
}

func (p ModuleCountLinearMutations) MutationCount(net genotype.Network, _ int, _ *rand.Rand) (int, error) {
	if p.Multiplier <= 0 {
		return 0, fmt.Errorf("linear multiplier must be > 0")
	}
	count := int(math.Round(float64(net.FlattenedLength()) * p.Multiplier))
	if count < 1 {
		count = 1
	}
	if p.MaxCount > 0 && count > p.MaxCount {
		count = p.MaxCount
	}
	return count, nil
}

// MutationCountPolicyByName maps a configured policy name to a policy.
func MutationCountPolicyByName(name string, param float64, maxCount int) (MutationCountPolicy, error) {
	switch name {
	case "", "const":
		count := int(param)
		if count <= 0 {
			count = 1
		}
		return ConstMutations{Count: count}, nil
	case "mcount_linear":
		return ModuleCountLinearMutations{Multiplier: param, MaxCount: maxCount}, nil
	default:
		return nil, fmt.Errorf("unknown mutation count policy: %s", name)
	}
}
