package genotype

import (
	"math/rand"
	"testing"
)

func TestRandomElementDeterministicWithSeed(t *testing.T) {
	values := []string{"a", "b", "c", "d"}
	gotA, err := RandomElement(rand.New(rand.NewSource(7)), values)
	if err != nil {
		t.Fatalf("random element first call: %v", err)
	}
	gotB, err := RandomElement(rand.New(rand.NewSource(7)), values)
	if err != nil {
		t.Fatalf("random element second call: %v", err)
	}
	if gotA != gotB {
		t.Fatalf("expected deterministic output with equal seeds, got %q != %q", gotA, gotB)
	}
}

func TestRandomElementCoversValues(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	values := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v, err := RandomElement(rng, values)
		if err != nil {
			t.Fatalf("random element: %v", err)
		}
		seen[v] = true
	}
	if len(seen) != len(values) {
		t.Fatalf("expected every value drawn, got %v", seen)
	}
}

func TestRandomElementValidatesInput(t *testing.T) {
	if _, err := RandomElement[int](rand.New(rand.NewSource(1)), nil); err == nil {
		t.Fatal("expected error for empty values")
	}
	if _, err := RandomElement(nil, []int{1}); err == nil {
		t.Fatal("expected error for nil random source")
	}
}
