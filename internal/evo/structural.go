package evo

import (
	"context"
	"math/rand"
	"slices"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gramevo/internal/config"
	"gramevo/internal/genotype"
)

type GAMutationType string

const (
	Addition GAMutationType = "addition"
	Replace  GAMutationType = "replace"
	Removal  GAMutationType = "removal"
)

var GAMutationTypes = []GAMutationType{Addition, Replace, Removal}

// GAMutation changes the module layout of a network. An empty Type picks
// one of the three kinds uniformly on every call.
type GAMutation struct {
	Builder *genotype.Builder
	Type    GAMutationType
	Logger  *zap.Logger
}

func (o *GAMutation) Name() string {
	if o == nil || o.Type == "" {
		return "ga_mutation"
	}
	return "ga_" + string(o.Type)
}

func (o *GAMutation) Apply(_ context.Context, net genotype.Network) (genotype.Network, error) {
	if o == nil || o.Builder == nil || o.Builder.Rand == nil {
		return genotype.Network{}, errors.New("builder with random source is required")
	}
	b := o.Builder
	kind := o.Type
	if kind == "" {
		kind = GAMutationTypes[b.Rand.Intn(len(GAMutationTypes))]
	}
	logger(o.Logger).Debug("ga mutation", zap.String("type", string(kind)), zap.String("network", net.ID))

	var (
		out genotype.Network
		err error
	)
	switch kind {
	case Addition:
		out, err = addAtCut(b, net)
	case Replace:
		out, err = replaceAtCut(b, net)
	case Removal:
		out, _ = RemoveModule(net, b.Rand.Intn(max(1, net.LenFeatures()+net.LenClassification())), b.Rand)
	default:
		return genotype.Network{}, errors.Errorf("unknown ga mutation type %q", kind)
	}
	if errors.Is(err, ErrStructuralLimitExceeded) {
		logger(o.Logger).Debug("no cut available", zap.Error(err))
		return net.Clone(), nil
	}
	return out, err
}

func addAtCut(b *genotype.Builder, net genotype.Network) (genotype.Network, error) {
	cut, err := ChooseCut(net, b.Limits, b.Rand)
	if err != nil {
		return genotype.Network{}, err
	}
	return AddModule(b, net, cut)
}

func replaceAtCut(b *genotype.Builder, net genotype.Network) (genotype.Network, error) {
	cut, err := ChooseCut(net, b.Limits, b.Rand)
	if err != nil {
		return genotype.Network{}, err
	}
	kind, _, err := net.Section(cut)
	if err != nil {
		return genotype.Network{}, err
	}
	target := b.Rand.Intn(sectionLen(net, kind))
	if kind == genotype.Classification {
		target += net.LenFeatures()
	}
	return ReplaceModule(net, b.Limits, cut, target)
}

// AddModule inserts a freshly built module directly after flattened index
// cut, in the cut's section. New feature modules draw their output channels
// from the addition range.
func AddModule(b *genotype.Builder, net genotype.Network, cut int) (genotype.Network, error) {
	kind, pos, err := structuralSection(net, cut)
	if err != nil {
		return genotype.Network{}, err
	}
	out := 0
	if kind == genotype.Features {
		out = b.Limits.MinChannelAddition + b.Rand.Intn(b.Limits.MaxChannelAddition-b.Limits.MinChannelAddition)
	}
	m, err := b.NewModule(kind, out)
	if err != nil {
		return genotype.Network{}, err
	}
	if sectionLen(net, kind) >= sectionCap(b.Limits, kind) {
		return genotype.Network{}, errors.Wrapf(ErrStructuralLimitExceeded, "%s section is full", kind)
	}
	mutated := net.Clone()
	insertModule(&mutated, kind, pos+1, m)
	mutated.Chain()
	return mutated, nil
}

// ReplaceModule copies the module at flattened index src and inserts the
// copy directly after flattened index dst. Both must address the same
// section, and that section must have room for one more module.
func ReplaceModule(net genotype.Network, limits config.Limits, src, dst int) (genotype.Network, error) {
	srcKind, _, err := structuralSection(net, src)
	if err != nil {
		return genotype.Network{}, err
	}
	dstKind, dstPos, err := structuralSection(net, dst)
	if err != nil {
		return genotype.Network{}, err
	}
	if srcKind != dstKind {
		return genotype.Network{}, errors.Errorf("replace from %s into %s", srcKind, dstKind)
	}
	if sectionLen(net, dstKind) >= sectionCap(limits, dstKind) {
		return genotype.Network{}, errors.Wrapf(ErrStructuralLimitExceeded, "%s section is full", dstKind)
	}
	mutated := net.Clone()
	source, err := mutated.ModuleAt(src)
	if err != nil {
		return genotype.Network{}, err
	}
	insertModule(&mutated, dstKind, dstPos+1, source.Clone())
	mutated.Chain()
	return mutated, nil
}

// RemoveModule deletes the module at flattened index. When index addresses
// the only module of its section, a module of the other section is removed
// instead if that section has more than one; otherwise the network is
// returned unchanged and removed is false.
func RemoveModule(net genotype.Network, index int, rng *rand.Rand) (out genotype.Network, removed bool) {
	kind, pos, err := structuralSection(net, index)
	if err != nil {
		return net.Clone(), false
	}
	if sectionLen(net, kind) == 1 {
		other := genotype.Classification
		if kind == genotype.Classification {
			other = genotype.Features
		}
		if sectionLen(net, other) <= 1 {
			return net.Clone(), false
		}
		kind, pos = other, rng.Intn(sectionLen(net, other))
	}

	mutated := net.Clone()
	switch kind {
	case genotype.Features:
		mutated.Features = slices.Delete(mutated.Features, pos, pos+1)
	default:
		mutated.Classification = slices.Delete(mutated.Classification, pos, pos+1)
	}
	mutated.Chain()
	return mutated, true
}

// structuralSection resolves a flattened index that must fall inside the
// features or classification sections.
func structuralSection(net genotype.Network, index int) (genotype.ModuleKind, int, error) {
	kind, pos, err := net.Section(index)
	if err != nil {
		return 0, 0, err
	}
	if kind == genotype.LastLayer {
		return 0, 0, errors.Errorf("index %d addresses the last layer", index)
	}
	return kind, pos, nil
}

func insertModule(net *genotype.Network, kind genotype.ModuleKind, pos int, m genotype.Module) {
	if kind == genotype.Features {
		net.Features = slices.Insert(net.Features, pos, m)
		return
	}
	net.Classification = slices.Insert(net.Classification, pos, m)
}

func sectionLen(net genotype.Network, kind genotype.ModuleKind) int {
	if kind == genotype.Features {
		return net.LenFeatures()
	}
	return net.LenClassification()
}

func sectionCap(limits config.Limits, kind genotype.ModuleKind) int {
	if kind == genotype.Features {
		return limits.MaxLenFeatures
	}
	return limits.MaxLenClassification
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
