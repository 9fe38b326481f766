package storage

import (
	"math/rand"
	"testing"

	"gramevo/internal/config"
	"gramevo/internal/genotype"
	"gramevo/internal/grammar"
	"gramevo/internal/model"
)

func newTestNetwork(t *testing.T, seed int64) genotype.Network {
	t.Helper()
	g, err := grammar.Default()
	if err != nil {
		t.Fatalf("default grammar: %v", err)
	}
	b, err := genotype.NewBuilder(g, config.DefaultLimits(), rand.New(rand.NewSource(seed)), nil)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	net, err := b.NewNetwork()
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return net
}

func testRun(id string) model.Run {
	return model.Run{
		VersionedRecord: model.CurrentVersion(),
		ID:              id,
		Seed:            7,
		Generations: []model.GenerationSummary{
			{Generation: 0, BestNetworkID: "n0", BestAccuracy: 41.5, BestLayerCount: 9},
			{Generation: 1, BestNetworkID: "n3", BestAccuracy: 57.25, BestLayerCount: 12, Discarded: 1},
		},
	}
}

func testResults() []model.IndividualResult {
	return []model.IndividualResult{
		{Generation: 0, Individual: 0, NetworkID: "n0", Accuracy: 41.5, LayerCount: 9, BestAccuracy: 41.5, BestLayerCount: 9},
		{Generation: 0, Individual: 1, NetworkID: "n1", Accuracy: 12, LayerCount: 14, BestAccuracy: 41.5, BestLayerCount: 9},
	}
}
