package genotype

import (
	"fmt"

	"github.com/pkg/errors"

	"gramevo/internal/config"
	"gramevo/internal/model"
)

// Network is the genotype: feature modules, classification modules and a
// single last-layer module. Flattened indices [0, F+C) address features then
// classification; index F+C addresses the last layer.
type Network struct {
	model.VersionedRecord
	ID             string   `json:"id"`
	InputChannels  int      `json:"input_channels"`
	InputSize      int      `json:"input_size"`
	Features       []Module `json:"features"`
	Classification []Module `json:"classification"`
	LastLayer      []Module `json:"last_layer"`
}

func (n Network) LenFeatures() int {
	return len(n.Features)
}

func (n Network) LenClassification() int {
	return len(n.Classification)
}

// FlattenedLength counts every module, the last layer included.
func (n Network) FlattenedLength() int {
	return len(n.Features) + len(n.Classification) + len(n.LastLayer)
}

// LayerCount is the number of layers across all modules.
func (n Network) LayerCount() int {
	count := 0
	for _, section := range [][]Module{n.Features, n.Classification, n.LastLayer} {
		for _, m := range section {
			count += m.Len()
		}
	}
	return count
}

// Section reports which section index i falls in and its position there.
func (n Network) Section(i int) (ModuleKind, int, error) {
	f, c := len(n.Features), len(n.Classification)
	switch {
	case i < 0:
	case i < f:
		return Features, i, nil
	case i < f+c:
		return Classification, i - f, nil
	case i == f+c && len(n.LastLayer) == 1:
		return LastLayer, 0, nil
	}
	return 0, 0, fmt.Errorf("module index %d out of range [0,%d)", i, n.FlattenedLength())
}

// ModuleAt returns the module at flattened index i. The pointer aliases the
// network's storage.
func (n *Network) ModuleAt(i int) (*Module, error) {
	kind, pos, err := n.Section(i)
	if err != nil {
		return nil, err
	}
	return &n.section(kind)[pos], nil
}

func (n *Network) section(kind ModuleKind) []Module {
	switch kind {
	case Features:
		return n.Features
	case Classification:
		return n.Classification
	default:
		return n.LastLayer
	}
}

func (n Network) Clone() Network {
	out := n
	out.Features = cloneModules(n.Features)
	out.Classification = cloneModules(n.Classification)
	out.LastLayer = cloneModules(n.LastLayer)
	return out
}

func cloneModules(modules []Module) []Module {
	if modules == nil {
		return nil
	}
	out := make([]Module, len(modules))
	for i, m := range modules {
		out[i] = m.Clone()
	}
	return out
}

// FlattenedFeatureSize is the width of the flattened feature map: the last
// feature module's channels times the square of the spatial size left after
// every feature module. Spatial size is floored at 1 per module.
func (n Network) FlattenedFeatureSize() int {
	if len(n.Features) == 0 {
		return n.InputChannels * n.InputSize * n.InputSize
	}
	side := n.InputSize
	for _, m := range n.Features {
		side = m.ComputeShape(side)
		if side < 1 {
			side = 1
		}
	}
	return n.Features[len(n.Features)-1].OutputChannels() * side * side
}

// FixFirstClassification sets the first classification module's input to
// the flattened feature size.
func (n *Network) FixFirstClassification() {
	if len(n.Classification) == 0 {
		return
	}
	n.Classification[0].SetInputChannels(n.FlattenedFeatureSize())
}

// Chain resolves every module's input channels in order, repairing the
// features/classification boundary with FixFirstClassification.
func (n *Network) Chain() {
	prev := n.InputChannels
	for i := range n.Features {
		n.Features[i].SetInputChannels(prev)
		prev = n.Features[i].OutputChannels()
	}
	n.FixFirstClassification()
	for i := 1; i < len(n.Classification); i++ {
		n.Classification[i].SetInputChannels(n.Classification[i-1].OutputChannels())
	}
	if len(n.LastLayer) == 1 && len(n.Classification) > 0 {
		n.LastLayer[0].SetInputChannels(n.Classification[len(n.Classification)-1].OutputChannels())
	}
}

// Validate checks section bounds, module kinds and channel chaining.
func (n Network) Validate(limits config.Limits) error {
	f, c := len(n.Features), len(n.Classification)
	if f < 1 || f > limits.MaxLenFeatures {
		return errors.Wrapf(ErrSectionLength, "features=%d want [1,%d]", f, limits.MaxLenFeatures)
	}
	if c < 1 || c > limits.MaxLenClassification {
		return errors.Wrapf(ErrSectionLength, "classification=%d want [1,%d]", c, limits.MaxLenClassification)
	}
	if len(n.LastLayer) != 1 {
		return errors.Wrapf(ErrSectionLength, "last_layer=%d want 1", len(n.LastLayer))
	}

	sections := []struct {
		kind    ModuleKind
		modules []Module
	}{
		{Features, n.Features},
		{Classification, n.Classification},
		{LastLayer, n.LastLayer},
	}
	prev := n.InputChannels
	for _, s := range sections {
		for i, m := range s.modules {
			if m.Kind != s.kind {
				return fmt.Errorf("%s[%d] holds a %s module", s.kind, i, m.Kind)
			}
			if err := m.Validate(); err != nil {
				return errors.Wrapf(err, "%s[%d]", s.kind, i)
			}
			want := prev
			if s.kind == Classification && i == 0 {
				want = n.FlattenedFeatureSize()
			}
			if m.IO.InputChannels != want {
				return errors.Wrapf(ErrChannelMismatch, "%s[%d] input %d != %d", s.kind, i, m.IO.InputChannels, want)
			}
			prev = m.OutputChannels()
		}
	}
	return nil
}
