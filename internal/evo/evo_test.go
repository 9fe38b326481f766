package evo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gramevo/internal/config"
	"gramevo/internal/genotype"
	"gramevo/internal/grammar"
)

func newTestBuilder(t *testing.T, seed int64, mutate func(*config.Limits)) *genotype.Builder {
	t.Helper()
	g, err := grammar.Default()
	require.NoError(t, err)
	limits := config.DefaultLimits()
	if mutate != nil {
		mutate(&limits)
	}
	b, err := genotype.NewBuilder(g, limits, rand.New(rand.NewSource(seed)), zaptest.NewLogger(t))
	require.NoError(t, err)
	return b
}

func newTestNetwork(t *testing.T, b *genotype.Builder, features, classification int) genotype.Network {
	t.Helper()
	n, err := b.NewNetworkWithLengths(features, classification)
	require.NoError(t, err)
	return n
}

func requireValid(t *testing.T, n genotype.Network, limits config.Limits) {
	t.Helper()
	require.NoError(t, n.Validate(limits))
	require.GreaterOrEqual(t, n.LenFeatures(), 1)
	require.LessOrEqual(t, n.LenFeatures(), limits.MaxLenFeatures)
	require.GreaterOrEqual(t, n.LenClassification(), 1)
	require.LessOrEqual(t, n.LenClassification(), limits.MaxLenClassification)
}

func TestChooseCutStaysInRange(t *testing.T) {
	b := newTestBuilder(t, 1, func(l *config.Limits) { l.MaxLenClassification = 4 })
	n := newTestNetwork(t, b, 3, 2)

	seen := map[genotype.ModuleKind]bool{}
	for i := 0; i < 500; i++ {
		cut, err := ChooseCut(n, b.Limits, b.Rand)
		require.NoError(t, err)
		require.GreaterOrEqual(t, cut, 0)
		require.Less(t, cut, n.FlattenedLength()-1)
		kind, _, err := n.Section(cut)
		require.NoError(t, err)
		seen[kind] = true
	}
	require.True(t, seen[genotype.Features])
	require.True(t, seen[genotype.Classification])
}

func TestChooseCutRedirectsAwayFromFullSection(t *testing.T) {
	b := newTestBuilder(t, 2, func(l *config.Limits) {
		l.MaxLenFeatures = 2
		l.MaxLenClassification = 3
	})
	n := newTestNetwork(t, b, 2, 1)
	for i := 0; i < 200; i++ {
		cut, err := ChooseCut(n, b.Limits, b.Rand)
		require.NoError(t, err)
		require.Equal(t, 2, cut)
	}

	b = newTestBuilder(t, 3, func(l *config.Limits) {
		l.MaxLenFeatures = 3
		l.MaxLenClassification = 2
	})
	n = newTestNetwork(t, b, 1, 2)
	for i := 0; i < 200; i++ {
		cut, err := ChooseCut(n, b.Limits, b.Rand)
		require.NoError(t, err)
		require.Equal(t, 0, cut)
	}
}

func TestChooseCutReportsNoCutWhenBothSectionsFull(t *testing.T) {
	b := newTestBuilder(t, 4, func(l *config.Limits) {
		l.MaxLenFeatures = 2
		l.MaxLenClassification = 2
	})
	n := newTestNetwork(t, b, 2, 2)
	for i := 0; i < 100; i++ {
		_, err := ChooseCut(n, b.Limits, b.Rand)
		require.ErrorIs(t, err, ErrStructuralLimitExceeded)
	}
}

func TestAddModuleInsertsAfterCut(t *testing.T) {
	b := newTestBuilder(t, 5, func(l *config.Limits) { l.MaxLenClassification = 3 })
	parent := newTestNetwork(t, b, 3, 1)

	child, err := AddModule(b, parent, 1)
	require.NoError(t, err)
	requireValid(t, child, b.Limits)
	require.Equal(t, 4, child.LenFeatures())
	require.Equal(t, parent.Features[0].Layers, child.Features[0].Layers)
	require.Equal(t, parent.Features[1].Layers, child.Features[1].Layers)
	require.Equal(t, layerKindsOf(parent.Features[2]), layerKindsOf(child.Features[3]))
	added := child.Features[2].OutputChannels()
	require.GreaterOrEqual(t, added, b.Limits.MinChannelAddition)
	require.Less(t, added, b.Limits.MaxChannelAddition)
	require.Equal(t, added, child.Features[3].IO.InputChannels)

	child, err = AddModule(b, parent, 3)
	require.NoError(t, err)
	requireValid(t, child, b.Limits)
	require.Equal(t, 2, child.LenClassification())
	require.GreaterOrEqual(t, child.Classification[1].OutputChannels(), b.Limits.MinChannelClassification)
	require.Less(t, child.Classification[1].OutputChannels(), b.Limits.MaxChannelClassification)
	require.Equal(t, child.Classification[1].OutputChannels(), child.LastLayer[0].IO.InputChannels)

	require.Equal(t, 3, parent.LenFeatures())
	require.Equal(t, 1, parent.LenClassification())
}

func TestAddModuleRefusesFullSection(t *testing.T) {
	b := newTestBuilder(t, 6, func(l *config.Limits) { l.MaxLenFeatures = 2 })
	parent := newTestNetwork(t, b, 2, 1)
	_, err := AddModule(b, parent, 0)
	require.ErrorIs(t, err, ErrStructuralLimitExceeded)
}

func TestStructuralOperatorsAreNoopWithoutCut(t *testing.T) {
	b := newTestBuilder(t, 7, func(l *config.Limits) {
		l.MaxLenFeatures = 2
		l.MaxLenClassification = 1
	})
	parent := newTestNetwork(t, b, 2, 1)
	for _, kind := range []GAMutationType{Addition, Replace} {
		op := &GAMutation{Builder: b, Type: kind}
		child, err := op.Apply(context.Background(), parent)
		require.NoError(t, err, kind)
		if diff := cmp.Diff(parent, child); diff != "" {
			t.Fatalf("%s changed a full network (-parent +child):\n%s", kind, diff)
		}
	}
}

func TestReplaceModuleDeepCopies(t *testing.T) {
	b := newTestBuilder(t, 8, nil)
	parent := newTestNetwork(t, b, 2, 1)
	snapshot := parent.Clone()

	child, err := ReplaceModule(parent, b.Limits, 0, 1)
	require.NoError(t, err)
	requireValid(t, child, b.Limits)
	require.Equal(t, 3, child.LenFeatures())
	require.Equal(t, layerKindsOf(parent.Features[0]), layerKindsOf(child.Features[2]))
	require.Equal(t, parent.Features[0].OutputChannels(), child.Features[2].OutputChannels())

	child.Features[2].Layers[0].Channels.Out = 12345
	child.Features[2].Layers[0].Params = genotype.ActivationParams{Type: genotype.Sigmoid}
	child.Features[0].Layers = child.Features[0].Layers[:1]
	if diff := cmp.Diff(snapshot, parent); diff != "" {
		t.Fatalf("offspring edits reached the parent (-want +got):\n%s", diff)
	}
}

func TestReplaceModuleRequiresSameSection(t *testing.T) {
	b := newTestBuilder(t, 9, nil)
	parent := newTestNetwork(t, b, 2, 1)
	_, err := ReplaceModule(parent, b.Limits, 0, 2)
	require.Error(t, err)
	_, err = ReplaceModule(parent, b.Limits, 0, 3)
	require.Error(t, err)
}

func TestRemovalRedirectsIntoClassification(t *testing.T) {
	b := newTestBuilder(t, 10, func(l *config.Limits) { l.MaxLenClassification = 3 })
	parent := newTestNetwork(t, b, 1, 3)

	child, removed := RemoveModule(parent, 0, b.Rand)
	require.True(t, removed)
	require.Equal(t, 1, child.LenFeatures())
	require.Equal(t, 2, child.LenClassification())
	requireValid(t, child, b.Limits)
	require.Equal(t, 3, parent.LenClassification())
}

func TestRemovalDeletesAddressedModule(t *testing.T) {
	b := newTestBuilder(t, 11, nil)
	parent := newTestNetwork(t, b, 3, 1)

	child, removed := RemoveModule(parent, 1, b.Rand)
	require.True(t, removed)
	require.Equal(t, 2, child.LenFeatures())
	require.Equal(t, parent.Features[0].Layers, child.Features[0].Layers)
	require.Equal(t, layerKindsOf(parent.Features[2]), layerKindsOf(child.Features[1]))
	requireValid(t, child, b.Limits)
}

func TestRemovalIsNoopOnMinimalNetwork(t *testing.T) {
	b := newTestBuilder(t, 12, nil)
	parent := newTestNetwork(t, b, 1, 1)
	for _, index := range []int{0, 1} {
		child, removed := RemoveModule(parent, index, b.Rand)
		require.False(t, removed)
		if diff := cmp.Diff(parent, child); diff != "" {
			t.Fatalf("removal changed a minimal network (-parent +child):\n%s", diff)
		}
	}
}

func TestRerollLayerPreservesKindAndChannels(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		b := newTestBuilder(t, seed, nil)
		parent, err := b.NewNetwork()
		require.NoError(t, err)

		for index := 0; index < parent.FlattenedLength(); index++ {
			m, err := parent.ModuleAt(index)
			require.NoError(t, err)
			for layer := 0; layer < m.Len(); layer++ {
				child, err := RerollLayer(b, parent, index, layer)
				require.NoError(t, err)
				requireValid(t, child, b.Limits)

				before := m.Layers[layer]
				after, err := child.ModuleAt(index)
				require.NoError(t, err)
				require.Equal(t, before.Kind(), after.Layers[layer].Kind())
				require.Equal(t, before.Channels.Out, after.Layers[layer].Channels.Out)
				require.Equal(t, m.Len(), after.Len())
			}
		}
	}
}

func TestRerollLayerKeepsSoftmax(t *testing.T) {
	b := newTestBuilder(t, 13, nil)
	parent := newTestNetwork(t, b, 1, 1)
	child, err := RerollLayer(b, parent, parent.FlattenedLength()-1, 1)
	require.NoError(t, err)
	require.Equal(t, genotype.ActivationParams{Type: genotype.Softmax}, child.LastLayer[0].Layers[1].Params)
}

func TestRebuildModulePreservesKindAndOutput(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		b := newTestBuilder(t, seed, nil)
		parent, err := b.NewNetwork()
		require.NoError(t, err)
		for index := 0; index < parent.FlattenedLength(); index++ {
			before, err := parent.ModuleAt(index)
			require.NoError(t, err)

			child, err := RebuildModule(b, parent, index)
			require.NoError(t, err)
			requireValid(t, child, b.Limits)
			after, err := child.ModuleAt(index)
			require.NoError(t, err)
			require.Equal(t, before.Kind, after.Kind)
			require.Equal(t, before.OutputChannels(), after.OutputChannels())
		}
	}
}

func TestOperatorsKeepInvariantsAndNeverTouchParent(t *testing.T) {
	b := newTestBuilder(t, 14, func(l *config.Limits) { l.MaxLenFeatures = 4 })
	registry, err := NewDefaultRegistry(b, zaptest.NewLogger(t))
	require.NoError(t, err)
	names := registry.List()
	require.Len(t, names, 7)

	current, err := b.NewNetwork()
	require.NoError(t, err)
	for step := 0; step < 300; step++ {
		name := names[b.Rand.Intn(len(names))]
		op, err := registry.Resolve(name, current)
		require.NoError(t, err)

		snapshot := current.Clone()
		child, err := op.Apply(context.Background(), current)
		require.NoError(t, err, "step %d %s", step, name)
		requireValid(t, child, b.Limits)
		if diff := cmp.Diff(snapshot, current); diff != "" {
			t.Fatalf("step %d %s changed its input (-want +got):\n%s", step, name, diff)
		}
		current = child
	}
}

func layerKindsOf(m genotype.Module) []genotype.LayerKind {
	out := make([]genotype.LayerKind, len(m.Layers))
	for i, l := range m.Layers {
		out[i] = l.Kind()
	}
	return out
}
