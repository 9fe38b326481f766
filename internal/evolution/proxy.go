package evolution

import (
	"context"
	"math"

	"gramevo/internal/genotype"
)

const defaultProxyTarget = 512

// ProxyEvaluator scores a network without training it. Networks whose
// flattened feature size is close to Target score higher and every layer
// costs LayerPenalty points. Scores are clamped to [0, 100].
type ProxyEvaluator struct {
	Target       int
	LayerPenalty float64
}

func (p ProxyEvaluator) Evaluate(ctx context.Context, net genotype.Network) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target := p.Target
	if target <= 0 {
		target = defaultProxyTarget
	}
	diff := math.Abs(float64(net.FlattenedFeatureSize() - target))
	score := 100*float64(target)/(float64(target)+diff) - p.LayerPenalty*float64(net.LayerCount())
	return math.Max(0, math.Min(100, score)), nil
}
