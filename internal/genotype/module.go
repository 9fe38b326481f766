package genotype

import (
	"fmt"

	"github.com/pkg/errors"
)

type IOChannels struct {
	InputChannels  int `json:"input_channels"`
	OutputChannels int `json:"output_channels"`
}

// Module is an ordered run of layers forming one block of the network.
type Module struct {
	Kind   ModuleKind `json:"kind"`
	Layers []Layer    `json:"layers"`
	IO     IOChannels `json:"io"`
}

func (m Module) Len() int {
	return len(m.Layers)
}

func (m Module) OutputChannels() int {
	return m.IO.OutputChannels
}

// ComputeShape folds every layer's shape rule over in.
func (m Module) ComputeShape(in int) int {
	out := in
	for _, layer := range m.Layers {
		out = layer.ComputeShape(out)
	}
	return out
}

func (m Module) CheckConv() bool {
	for _, layer := range m.Layers {
		if layer.Kind() == Conv {
			return true
		}
	}
	return false
}

func (m Module) Clone() Module {
	out := m
	out.Layers = append([]Layer(nil), m.Layers...)
	return out
}

// SetInputChannels resolves the module input and chains every layer to its
// predecessor.
func (m *Module) SetInputChannels(in int) {
	m.IO.InputChannels = in
	prev := in
	for i := range m.Layers {
		m.Layers[i].Channels.In = prev
		prev = m.Layers[i].Channels.Out
	}
}

// seal chains layers after construction and records the output channels.
// The first layer keeps an undefined input until the network resolves it.
func (m *Module) seal() {
	for i := 1; i < len(m.Layers); i++ {
		m.Layers[i].Channels.In = m.Layers[i-1].Channels.Out
	}
	m.IO = IOChannels{InputChannels: ChannelsUndefined}
	if len(m.Layers) > 0 {
		m.IO.OutputChannels = m.Layers[len(m.Layers)-1].Channels.Out
	}
}

// Validate checks the module's layer pattern and channel chaining.
func (m Module) Validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("%s module has no layers", m.Kind)
	}
	switch m.Kind {
	case Classification, LastLayer:
		if len(m.Layers) != 2 || m.Layers[0].Kind() != Linear || m.Layers[1].Kind() != Activation {
			return fmt.Errorf("%s module must be [linear, activation]", m.Kind)
		}
		act := m.Layers[1].Params.(ActivationParams)
		if m.Kind == LastLayer && act.Type != Softmax {
			return fmt.Errorf("last layer activation must be softmax, got %s", act.Type)
		}
		if m.Kind == Classification && act.Type == Softmax {
			return fmt.Errorf("classification module cannot use softmax")
		}
	case Features:
	default:
		return fmt.Errorf("unknown module kind %d", int(m.Kind))
	}

	for i, layer := range m.Layers {
		if err := validateParams(layer.Params); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		if i == 0 {
			if m.IO.InputChannels != ChannelsUndefined && layer.Channels.In != m.IO.InputChannels {
				return errors.Wrapf(ErrChannelMismatch, "layer 0 input %d != module input %d", layer.Channels.In, m.IO.InputChannels)
			}
			continue
		}
		if prev := m.Layers[i-1].Channels.Out; layer.Channels.In != prev {
			return errors.Wrapf(ErrChannelMismatch, "layer %d input %d != layer %d output %d", i, layer.Channels.In, i-1, prev)
		}
	}
	if last := m.Layers[len(m.Layers)-1].Channels.Out; last != m.IO.OutputChannels {
		return errors.Wrapf(ErrChannelMismatch, "module output %d != last layer output %d", m.IO.OutputChannels, last)
	}
	return nil
}
