package genotype

import "fmt"

type LayerKind int

const (
	Pooling LayerKind = iota
	Conv
	Activation
	Linear
	BatchNorm
)

var layerKindNames = [...]string{"pooling", "conv", "activation", "linear", "batch_norm"}

// LayerKinds lists every layer kind in declaration order.
var LayerKinds = []LayerKind{Pooling, Conv, Activation, Linear, BatchNorm}

func (k LayerKind) String() string {
	if k < 0 || int(k) >= len(layerKindNames) {
		return fmt.Sprintf("layer_kind(%d)", int(k))
	}
	return layerKindNames[k]
}

func (k LayerKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(layerKindNames) {
		return nil, fmt.Errorf("unknown layer kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *LayerKind) UnmarshalText(text []byte) error {
	for i, name := range layerKindNames {
		if name == string(text) {
			*k = LayerKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown layer kind %q", text)
}

type ModuleKind int

const (
	Features ModuleKind = iota
	Classification
	LastLayer
)

var moduleKindNames = [...]string{"features", "classification", "last_layer"}

func (k ModuleKind) String() string {
	if k < 0 || int(k) >= len(moduleKindNames) {
		return fmt.Sprintf("module_kind(%d)", int(k))
	}
	return moduleKindNames[k]
}

func (k ModuleKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(moduleKindNames) {
		return nil, fmt.Errorf("unknown module kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ModuleKind) UnmarshalText(text []byte) error {
	for i, name := range moduleKindNames {
		if name == string(text) {
			*k = ModuleKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown module kind %q", text)
}

type PoolType string

const (
	PoolMax         PoolType = "max"
	PoolAdaptiveMax PoolType = "adaptive_max"
	PoolAvg         PoolType = "avg"
	PoolAdaptiveAvg PoolType = "adaptive_avg"
)

var PoolTypes = []PoolType{PoolMax, PoolAdaptiveMax, PoolAvg, PoolAdaptiveAvg}

func (p PoolType) adaptive() bool {
	return p == PoolAdaptiveMax || p == PoolAdaptiveAvg
}

type ActivationType string

const (
	ReLU    ActivationType = "relu"
	Sigmoid ActivationType = "sigmoid"
	Softmax ActivationType = "softmax"
)

// HiddenActivations excludes Softmax, which only the last layer uses.
var HiddenActivations = []ActivationType{ReLU, Sigmoid}

type PaddingMode string

const (
	PaddingSame  PaddingMode = "same"
	PaddingValid PaddingMode = "valid"
)

var PaddingModes = []PaddingMode{PaddingSame, PaddingValid}
