package evo

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gramevo/internal/genotype"
)

type DSGEMutationType string

const (
	Grammatical DSGEMutationType = "grammatical"
	Integer     DSGEMutationType = "integer"
)

var DSGEMutationTypes = []DSGEMutationType{Grammatical, Integer}

// DSGEMutation rewrites the contents of one module while keeping the module
// layout. Any module can be targeted, the last layer included. An empty Type
// picks one of the two kinds uniformly on every call.
type DSGEMutation struct {
	Builder *genotype.Builder
	Type    DSGEMutationType
	Logger  *zap.Logger
}

func (o *DSGEMutation) Name() string {
	if o == nil || o.Type == "" {
		return "dsge_mutation"
	}
	return "dsge_" + string(o.Type)
}

func (o *DSGEMutation) Apply(_ context.Context, net genotype.Network) (genotype.Network, error) {
	if o == nil || o.Builder == nil || o.Builder.Rand == nil {
		return genotype.Network{}, errors.New("builder with random source is required")
	}
	if net.FlattenedLength() == 0 {
		return genotype.Network{}, errors.New("network has no modules")
	}
	b := o.Builder
	kind := o.Type
	if kind == "" {
		kind = DSGEMutationTypes[b.Rand.Intn(len(DSGEMutationTypes))]
	}
	index := b.Rand.Intn(net.FlattenedLength())
	logger(o.Logger).Debug("dsge mutation",
		zap.String("type", string(kind)),
		zap.String("network", net.ID),
		zap.Int("module", index),
	)

	switch kind {
	case Grammatical:
		m, err := net.ModuleAt(index)
		if err != nil {
			return genotype.Network{}, err
		}
		if m.Len() == 0 {
			return net.Clone(), nil
		}
		return RerollLayer(b, net, index, b.Rand.Intn(m.Len()))
	case Integer:
		return RebuildModule(b, net, index)
	default:
		return genotype.Network{}, errors.Errorf("unknown dsge mutation type %q", kind)
	}
}

// RerollLayer resamples the parameters of one layer, keeping its kind and
// channels. The last layer's softmax is never replaced.
func RerollLayer(b *genotype.Builder, net genotype.Network, index, layer int) (genotype.Network, error) {
	mutated := net.Clone()
	m, err := mutated.ModuleAt(index)
	if err != nil {
		return genotype.Network{}, err
	}
	if layer < 0 || layer >= m.Len() {
		return genotype.Network{}, errors.Errorf("layer %d out of range [0,%d)", layer, m.Len())
	}
	target := &m.Layers[layer]
	if m.Kind == genotype.LastLayer && target.Kind() == genotype.Activation {
		return mutated, nil
	}
	target.Params = b.RandomParams(target.Kind())
	mutated.Chain()
	return mutated, nil
}

// RebuildModule replaces the module at index with a newly built module of
// the same kind and output channels.
func RebuildModule(b *genotype.Builder, net genotype.Network, index int) (genotype.Network, error) {
	mutated := net.Clone()
	m, err := mutated.ModuleAt(index)
	if err != nil {
		return genotype.Network{}, err
	}
	rebuilt, err := b.NewModule(m.Kind, m.OutputChannels())
	if err != nil {
		return genotype.Network{}, errors.Wrapf(err, "rebuild %s module", m.Kind)
	}
	*m = rebuilt
	mutated.Chain()
	return mutated, nil
}
