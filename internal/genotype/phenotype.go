package genotype

import (
	"strings"

	"github.com/pkg/errors"
)

const layerMarker = "layer"

// LayerSpec is one layer record of a decoded phenotype.
type LayerSpec struct {
	Name       string
	Properties map[string][]string
}

// ParseLayers reduces a phenotype such as
//
//	layer:conv kernel:3,3 layer:activation type:relu
//
// into ordered layer records in a single left-to-right pass. Every record
// starts at a "layer:" token; the stream must open with one.
func ParseLayers(phenotype string) ([]LayerSpec, error) {
	tokens := strings.Fields(phenotype)
	if len(tokens) == 0 {
		return nil, errors.Wrap(ErrGrammarDecode, "empty phenotype")
	}

	layers := make([]LayerSpec, 0, 2)
	var current *LayerSpec
	for i, tok := range tokens {
		key, value, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, errors.Wrapf(ErrGrammarDecode, "token %d %q has no ':' separator", i, tok)
		}
		if key == layerMarker {
			if current != nil {
				layers = append(layers, *current)
			}
			current = &LayerSpec{Name: value, Properties: make(map[string][]string)}
			continue
		}
		if current == nil {
			return nil, errors.Wrapf(ErrGrammarDecode, "token %q precedes the first layer marker", tok)
		}
		current.Properties[key] = strings.Split(value, ",")
	}
	layers = append(layers, *current)
	return layers, nil
}

// layerKindOf maps the layer name that opens a features expansion step.
func layerKindOf(name string) (LayerKind, error) {
	switch name {
	case "conv":
		return Conv, nil
	case "pool-avg", "pool-max":
		return Pooling, nil
	case "batch-norm", "batch_norm":
		return BatchNorm, nil
	default:
		return 0, errors.Wrapf(ErrGrammarDecode, "layer %q cannot open a features step", name)
	}
}

func (s LayerSpec) first(key string) (string, bool) {
	values, ok := s.Properties[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
