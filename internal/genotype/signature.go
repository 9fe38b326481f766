package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

type TopologySummary struct {
	FeatureModules         int            `json:"feature_modules"`
	ClassificationModules  int            `json:"classification_modules"`
	TotalLayers            int            `json:"total_layers"`
	FlattenedFeatures      int            `json:"flattened_features"`
	LayerDistribution      map[string]int `json:"layer_distribution"`
	ActivationDistribution map[string]int `json:"activation_distribution"`
}

type NetworkSignature struct {
	Fingerprint string          `json:"fingerprint"`
	Summary     TopologySummary `json:"summary"`
}

// ComputeSignature fingerprints a network's architecture: layer kinds,
// channel counts and shape-relevant parameters in order. Two networks that
// materialize to the same model share a fingerprint.
func ComputeSignature(n Network) NetworkSignature {
	layerDist := make(map[string]int)
	actDist := make(map[string]int)
	parts := []string{
		fmt.Sprintf("in=%dx%d", n.InputChannels, n.InputSize),
	}

	for _, section := range [][]Module{n.Features, n.Classification, n.LastLayer} {
		for _, m := range section {
			parts = append(parts, "m:"+m.Kind.String())
			for _, layer := range m.Layers {
				layerDist[layer.Kind().String()]++
				parts = append(parts, layerToken(layer))
				if act, ok := layer.Params.(ActivationParams); ok {
					actDist[string(act.Type)]++
				}
			}
		}
	}

	summary := TopologySummary{
		FeatureModules:         len(n.Features),
		ClassificationModules:  len(n.Classification),
		TotalLayers:            n.LayerCount(),
		FlattenedFeatures:      n.FlattenedFeatureSize(),
		LayerDistribution:      layerDist,
		ActivationDistribution: actDist,
	}
	appendDist := func(prefix string, m map[string]int) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s:%s=%d", prefix, k, m[k]))
		}
	}
	appendDist("lk", layerDist)
	appendDist("af", actDist)

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return NetworkSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary:     summary,
	}
}

func layerToken(layer Layer) string {
	out := layer.Channels.Out
	switch p := layer.Params.(type) {
	case ConvParams:
		return fmt.Sprintf("conv(%d,k%d,s%d,%s,b%t)", out, p.KernelSize, p.Stride, p.Padding, p.Bias)
	case PoolParams:
		return fmt.Sprintf("pool(%d,%s,k%d,s%d,p%d)", out, p.Type, p.KernelSize, p.Stride, p.Padding)
	case ActivationParams:
		return fmt.Sprintf("act(%d,%s)", out, p.Type)
	case BatchNormParams:
		return fmt.Sprintf("bn(%d)", out)
	default:
		return fmt.Sprintf("%s(%d)", layer.Kind(), out)
	}
}
