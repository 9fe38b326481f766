package genotype

import (
	"fmt"
	"math/rand"
)

// RandomElement draws one of values uniformly from rng.
func RandomElement[T any](rng *rand.Rand, values []T) (T, error) {
	var zero T
	if len(values) == 0 {
		return zero, fmt.Errorf("values are required")
	}
	if rng == nil {
		return zero, fmt.Errorf("random source is required")
	}
	return values[rng.Intn(len(values))], nil
}
