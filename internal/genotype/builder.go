package genotype

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gramevo/internal/config"
	"gramevo/internal/grammar"
	"gramevo/internal/model"
)

// Builder constructs layers, modules and networks. All randomness comes
// from Rand so a seeded builder is reproducible.
type Builder struct {
	Grammar *grammar.Grammar
	Limits  config.Limits
	Rand    *rand.Rand
	Logger  *zap.Logger
}

func NewBuilder(g *grammar.Grammar, limits config.Limits, rng *rand.Rand, logger *zap.Logger) (*Builder, error) {
	if g == nil {
		return nil, errors.New("grammar is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if !g.Has(limits.FeaturesSymbol) {
		return nil, errors.Wrapf(ErrInvalidGrammarSymbol, "<%s>", limits.FeaturesSymbol)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{Grammar: g, Limits: limits, Rand: rng, Logger: logger}, nil
}

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// randRange draws from [lo, hi).
func (b *Builder) randRange(lo, hi int) int {
	return lo + b.Rand.Intn(hi-lo)
}

// RandomLayer picks a kind uniformly and samples its parameters.
func (b *Builder) RandomLayer(out int) Layer {
	kind := LayerKinds[b.Rand.Intn(len(LayerKinds))]
	return NewLayer(b.RandomParams(kind), out)
}

// RandomParams samples parameters for kind. Kernels are odd in [1,5),
// strides in [1,3) and same padding forces stride 1. Activations never
// draw softmax.
func (b *Builder) RandomParams(kind LayerKind) LayerParams {
	kernel := 1 + 2*b.Rand.Intn(2)
	stride := b.randRange(1, 3)
	padding := PaddingModes[b.Rand.Intn(len(PaddingModes))]
	if padding == PaddingSame {
		stride = 1
	}

	switch kind {
	case Pooling:
		return PoolParams{
			Type:       PoolTypes[b.Rand.Intn(len(PoolTypes))],
			KernelSize: kernel,
			Stride:     stride,
		}
	case Conv:
		return ConvParams{
			KernelSize: kernel,
			Stride:     stride,
			Padding:    padding,
			Bias:       b.Rand.Float64() < b.Limits.ConvBiasProbability,
		}
	case Activation:
		return ActivationParams{Type: HiddenActivations[b.Rand.Intn(len(HiddenActivations))]}
	case BatchNorm:
		return BatchNormParams{
			Eps:      (1 - b.Rand.Float64()) * 1e-5,
			Momentum: b.Rand.Float64(),
		}
	default:
		return LinearParams{}
	}
}

// LayerFromEncoding builds a layer of a fixed kind. Nil params are sampled;
// anything else is adopted as given.
func (b *Builder) LayerFromEncoding(kind LayerKind, out int, params LayerParams) (Layer, error) {
	if params == nil {
		return NewLayer(b.RandomParams(kind), out), nil
	}
	if params.Kind() != kind {
		return Layer{}, errors.Wrapf(ErrKindMismatch, "%s params for %s layer", params.Kind(), kind)
	}
	if err := validateParams(params); err != nil {
		return Layer{}, err
	}
	return NewLayer(params, out), nil
}

// NewModule builds a module of kind. out <= 0 lets the module draw its own
// output channels; last-layer modules then use the number of classes.
func (b *Builder) NewModule(kind ModuleKind, out int) (Module, error) {
	m := Module{Kind: kind}
	switch kind {
	case Classification:
		if out <= 0 {
			out = b.randRange(b.Limits.MinChannelClassification, b.Limits.MaxChannelClassification)
		}
		m.Layers = []Layer{
			NewLayer(LinearParams{}, out),
			NewLayer(b.RandomParams(Activation), out),
		}
	case LastLayer:
		if out <= 0 {
			out = b.Limits.NumClasses
		}
		m.Layers = []Layer{
			NewLayer(LinearParams{}, out),
			NewLayer(ActivationParams{Type: Softmax}, out),
		}
	case Features:
		layers, err := b.initialiseFeatures(b.Limits.FeaturesSymbol, b.Limits.MaxLenBlockFeatures, out)
		if err != nil {
			return Module{}, err
		}
		m.Layers = layers
	default:
		return Module{}, errors.Errorf("unknown module kind %d", int(kind))
	}
	m.seal()
	return m, nil
}

type featureStep struct {
	kind LayerKind
	spec LayerSpec
}

// planFeatures runs length grammar expansions of symbol and returns the
// elementary kind of each step plus the index of the last conv step (-1 if
// none).
func (b *Builder) planFeatures(symbol string, length int) ([]featureStep, int, error) {
	steps := make([]featureStep, 0, length)
	lastConv := -1
	for idx := 0; idx < length; idx++ {
		exp, err := b.Grammar.Initialise(symbol, b.Rand)
		if err != nil {
			return nil, 0, err
		}
		pheno, err := b.Grammar.Decode(symbol, exp)
		if err != nil {
			return nil, 0, err
		}
		specs, err := ParseLayers(pheno)
		if err != nil {
			return nil, 0, err
		}
		kind, err := layerKindOf(specs[0].Name)
		if err != nil {
			return nil, 0, err
		}
		steps = append(steps, featureStep{kind: kind, spec: specs[0]})
		if kind == Conv {
			lastConv = idx
		}
	}
	return steps, lastConv, nil
}

func (b *Builder) initialiseFeatures(symbol string, length, out int) ([]Layer, error) {
	steps, lastConv, err := b.planFeatures(symbol, length)
	if err != nil {
		return nil, err
	}
	b.logger().Debug("features block planned",
		zap.Int("steps", len(steps)),
		zap.Int("last_conv", lastConv),
	)
	return b.expandFeatures(steps, out), nil
}

func (b *Builder) expandFeatures(steps []featureStep, out int) []Layer {
	layers := make([]Layer, 0, 3*len(steps))
	for idx, step := range steps {
		channels := b.randRange(b.Limits.MinChannelFeatures, b.Limits.MaxChannelFeatures)
		if out > 0 && idx == len(steps)-1 {
			channels = out
		}
		switch step.kind {
		case Conv:
			layers = append(layers, NewLayer(b.convFromSpec(step.spec), channels))
			if b.Rand.Float64() < b.Limits.BatchNormProbability {
				layers = append(layers, NewLayer(b.RandomParams(BatchNorm), channels))
			}
			layers = append(layers, NewLayer(b.activationFromSpec(step.spec), channels))
		case Pooling:
			layers = append(layers, NewLayer(b.poolFromSpec(step.spec), channels))
			layers = append(layers, NewLayer(b.activationFromSpec(step.spec), channels))
		default:
			layers = append(layers, NewLayer(b.RandomParams(step.kind), channels))
		}
	}
	return layers
}

func (b *Builder) convFromSpec(spec LayerSpec) ConvParams {
	p := b.RandomParams(Conv).(ConvParams)
	if k, ok := positiveInt(spec, "filter-shape"); ok {
		p.KernelSize = k
	}
	if s, ok := positiveInt(spec, "stride"); ok {
		p.Stride = s
	}
	if mode, ok := spec.first("padding"); ok && (mode == string(PaddingSame) || mode == string(PaddingValid)) {
		p.Padding = PaddingMode(mode)
	}
	if raw, ok := spec.first("bias"); ok {
		if bias, err := strconv.ParseBool(raw); err == nil {
			p.Bias = bias
		}
	}
	if p.Padding == PaddingSame {
		p.Stride = 1
	}
	return p
}

func (b *Builder) poolFromSpec(spec LayerSpec) PoolParams {
	p := b.RandomParams(Pooling).(PoolParams)
	switch spec.Name {
	case "pool-avg":
		p.Type = PoolAvg
	case "pool-max":
		p.Type = PoolMax
	}
	if k, ok := positiveInt(spec, "kernel-size"); ok {
		p.KernelSize = k
	}
	if s, ok := positiveInt(spec, "stride"); ok {
		p.Stride = s
	}
	if mode, ok := spec.first("padding"); ok && mode == string(PaddingSame) {
		p.Padding = (p.KernelSize - 1) / 2
		p.Stride = 1
	}
	return p
}

func (b *Builder) activationFromSpec(spec LayerSpec) ActivationParams {
	if raw, ok := spec.first("act"); ok {
		for _, act := range HiddenActivations {
			if strings.EqualFold(raw, string(act)) {
				return ActivationParams{Type: act}
			}
		}
	}
	return b.RandomParams(Activation).(ActivationParams)
}

func positiveInt(spec LayerSpec, key string) (int, bool) {
	raw, ok := spec.first(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// NewID draws a network identifier from Rand.
func (b *Builder) NewID() (string, error) {
	id, err := uuid.NewRandomFromReader(b.Rand)
	if err != nil {
		return "", errors.Wrap(err, "network id")
	}
	return id.String(), nil
}

// NewNetwork seeds a network with uniformly drawn section lengths.
func (b *Builder) NewNetwork() (Network, error) {
	features := b.randRange(1, b.Limits.MaxLenFeatures+1)
	classification := b.randRange(1, b.Limits.MaxLenClassification+1)
	return b.NewNetworkWithLengths(features, classification)
}

func (b *Builder) NewNetworkWithLengths(features, classification int) (Network, error) {
	if features < 1 || features > b.Limits.MaxLenFeatures {
		return Network{}, errors.Wrapf(ErrSectionLength, "features=%d", features)
	}
	if classification < 1 || classification > b.Limits.MaxLenClassification {
		return Network{}, errors.Wrapf(ErrSectionLength, "classification=%d", classification)
	}
	id, err := b.NewID()
	if err != nil {
		return Network{}, err
	}

	n := Network{
		VersionedRecord: model.CurrentVersion(),
		ID:              id,
		InputChannels:   b.Limits.InputChannels,
		InputSize:       b.Limits.InputSize,
		Features:        make([]Module, 0, features),
		Classification:  make([]Module, 0, classification),
	}
	for i := 0; i < features; i++ {
		m, err := b.NewModule(Features, 0)
		if err != nil {
			return Network{}, err
		}
		n.Features = append(n.Features, m)
	}
	for i := 0; i < classification; i++ {
		m, err := b.NewModule(Classification, 0)
		if err != nil {
			return Network{}, err
		}
		n.Classification = append(n.Classification, m)
	}
	last, err := b.NewModule(LastLayer, 0)
	if err != nil {
		return Network{}, err
	}
	n.LastLayer = []Module{last}
	n.Chain()
	return n, nil
}
