package genotype

import (
	"encoding/json"
	"fmt"
)

// ChannelsUndefined marks an input channel count the owning network has not
// resolved yet.
const ChannelsUndefined = -1

// LayerParams is implemented only by the per-kind parameter structs below,
// so a layer's kind always agrees with its parameters.
type LayerParams interface {
	Kind() LayerKind
	layerParams()
}

type ConvParams struct {
	KernelSize int         `json:"kernel_size"`
	Stride     int         `json:"stride"`
	Padding    PaddingMode `json:"padding"`
	Bias       bool        `json:"bias"`
}

type PoolParams struct {
	Type       PoolType `json:"pool_type"`
	KernelSize int      `json:"kernel_size"`
	Stride     int      `json:"stride"`
	Padding    int      `json:"padding"`
}

type ActivationParams struct {
	Type ActivationType `json:"type"`
}

type LinearParams struct{}

type BatchNormParams struct {
	Eps      float64 `json:"eps"`
	Momentum float64 `json:"momentum"`
}

func (ConvParams) Kind() LayerKind       { return Conv }
func (PoolParams) Kind() LayerKind       { return Pooling }
func (ActivationParams) Kind() LayerKind { return Activation }
func (LinearParams) Kind() LayerKind     { return Linear }
func (BatchNormParams) Kind() LayerKind  { return BatchNorm }

func (ConvParams) layerParams()       {}
func (PoolParams) layerParams()       {}
func (ActivationParams) layerParams() {}
func (LinearParams) layerParams()     {}
func (BatchNormParams) layerParams()  {}

type Channels struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

func (c Channels) InputDefined() bool {
	return c.In != ChannelsUndefined
}

// Layer is one network operation. It is a value type: copying a Layer copies
// everything it owns.
type Layer struct {
	Params   LayerParams
	Channels Channels
}

// NewLayer returns a layer with the given output channels and an undefined
// input.
func NewLayer(params LayerParams, out int) Layer {
	return Layer{Params: params, Channels: Channels{In: ChannelsUndefined, Out: out}}
}

func (l Layer) Kind() LayerKind {
	if l.Params == nil {
		return LayerKind(-1)
	}
	return l.Params.Kind()
}

// Get is the read-only projection of the layer.
func (l Layer) Get() (LayerKind, LayerParams, Channels) {
	return l.Kind(), l.Params, l.Channels
}

// ComputeShape maps a square spatial input size to the layer's output size.
func (l Layer) ComputeShape(in int) int {
	switch p := l.Params.(type) {
	case PoolParams:
		if p.Type.adaptive() {
			return in
		}
		if p.Type == PoolAvg {
			return avgPool2DOutput(in, p.KernelSize, p.Stride, p.Padding)
		}
		return conv2DOutput(in, p.KernelSize, p.Stride, p.Padding)
	case ConvParams:
		if p.Padding == PaddingSame {
			return sameOutput(in, p.Stride)
		}
		return conv2DOutput(in, p.KernelSize, p.Stride, 0)
	default:
		return in
	}
}

func validateParams(params LayerParams) error {
	switch p := params.(type) {
	case nil:
		return fmt.Errorf("layer params are required")
	case ConvParams:
		if p.KernelSize < 1 || p.Stride < 1 {
			return fmt.Errorf("conv kernel and stride must be >= 1")
		}
		if p.Padding != PaddingSame && p.Padding != PaddingValid {
			return fmt.Errorf("unknown padding mode %q", p.Padding)
		}
		if p.Padding == PaddingSame && p.Stride != 1 {
			return fmt.Errorf("same padding requires stride 1")
		}
	case PoolParams:
		switch p.Type {
		case PoolMax, PoolAdaptiveMax, PoolAvg, PoolAdaptiveAvg:
		default:
			return fmt.Errorf("unknown pool type %q", p.Type)
		}
		if p.KernelSize < 1 || p.Stride < 1 || p.Padding < 0 {
			return fmt.Errorf("invalid pool geometry k=%d s=%d p=%d", p.KernelSize, p.Stride, p.Padding)
		}
	case ActivationParams:
		switch p.Type {
		case ReLU, Sigmoid, Softmax:
		default:
			return fmt.Errorf("unknown activation %q", p.Type)
		}
	case BatchNormParams:
		if p.Eps <= 0 || p.Momentum < 0 || p.Momentum > 1 {
			return fmt.Errorf("invalid batch norm eps=%g momentum=%g", p.Eps, p.Momentum)
		}
	}
	return nil
}

type layerJSON struct {
	Kind     LayerKind       `json:"kind"`
	Params   json.RawMessage `json:"params,omitempty"`
	Channels Channels        `json:"channels"`
}

func (l Layer) MarshalJSON() ([]byte, error) {
	if l.Params == nil {
		return nil, fmt.Errorf("marshal layer: params are required")
	}
	raw := json.RawMessage(nil)
	if _, ok := l.Params.(LinearParams); !ok {
		data, err := json.Marshal(l.Params)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(layerJSON{Kind: l.Kind(), Params: raw, Channels: l.Channels})
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var raw layerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var params LayerParams
	switch raw.Kind {
	case Conv:
		var p ConvParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return fmt.Errorf("conv params: %w", err)
		}
		params = p
	case Pooling:
		var p PoolParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return fmt.Errorf("pool params: %w", err)
		}
		params = p
	case Activation:
		var p ActivationParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return fmt.Errorf("activation params: %w", err)
		}
		params = p
	case BatchNorm:
		var p BatchNormParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return fmt.Errorf("batch norm params: %w", err)
		}
		params = p
	case Linear:
		params = LinearParams{}
	}
	if err := validateParams(params); err != nil {
		return err
	}
	*l = Layer{Params: params, Channels: raw.Channels}
	return nil
}
