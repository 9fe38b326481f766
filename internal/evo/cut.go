package evo

import (
	"math/rand"

	"github.com/pkg/errors"

	"gramevo/internal/config"
	"gramevo/internal/genotype"
)

// ErrStructuralLimitExceeded reports that no section has room for another
// module. Structural operators treat it as a no-op.
var ErrStructuralLimitExceeded = errors.New("structural limit exceeded")

// ChooseCut draws a flattened index in [0, F+C). A draw that lands in a
// section already at its cap moves to the other section when that one has
// headroom.
func ChooseCut(net genotype.Network, limits config.Limits, rng *rand.Rand) (int, error) {
	f, c := net.LenFeatures(), net.LenClassification()
	if f+c == 0 {
		return 0, errors.Wrap(ErrStructuralLimitExceeded, "network has no modules")
	}
	featuresFull := f >= limits.MaxLenFeatures
	classificationFull := c >= limits.MaxLenClassification

	cut := rng.Intn(f + c)
	if cut < f {
		if !featuresFull {
			return cut, nil
		}
		if classificationFull || c == 0 {
			return 0, errors.Wrapf(ErrStructuralLimitExceeded, "features=%d classification=%d", f, c)
		}
		return f + rng.Intn(c), nil
	}
	if !classificationFull {
		return cut, nil
	}
	if featuresFull || f == 0 {
		return 0, errors.Wrapf(ErrStructuralLimitExceeded, "features=%d classification=%d", f, c)
	}
	return rng.Intn(f), nil
}
