package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStoreNetworkRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	net := newTestNetwork(t, 1)
	if err := store.SaveNetwork(ctx, net); err != nil {
		t.Fatalf("save network: %v", err)
	}
	loaded, ok, err := store.GetNetwork(ctx, net.ID)
	if err != nil {
		t.Fatalf("get network: %v", err)
	}
	if !ok {
		t.Fatalf("expected network %s", net.ID)
	}
	if diff := cmp.Diff(net, loaded); diff != "" {
		t.Fatalf("unexpected network (-want +got):\n%s", diff)
	}

	loaded.Features[0].Layers[0].Channels.Out = -5
	again, _, _ := store.GetNetwork(ctx, net.ID)
	if again.Features[0].Layers[0].Channels.Out == -5 {
		t.Fatal("stored network aliases a returned copy")
	}

	if _, ok, err := store.GetNetwork(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing network, ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreRunAndResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := testRun("run-1")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loadedRun, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(run, loadedRun); diff != "" {
		t.Fatalf("unexpected run (-want +got):\n%s", diff)
	}

	results := testResults()
	if err := store.SaveResults(ctx, "run-1", results); err != nil {
		t.Fatalf("save results: %v", err)
	}
	results[0].Accuracy = 0
	loaded, ok, err := store.GetResults(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get results ok=%v err=%v", ok, err)
	}
	if len(loaded) != 2 || loaded[0].Accuracy != 41.5 {
		t.Fatalf("unexpected results: %+v", loaded)
	}
}

func TestMemoryStoreBestNetworkByGeneration(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	first, second := newTestNetwork(t, 1), newTestNetwork(t, 2)
	if err := store.SaveBestNetwork(ctx, "run-1", 0, first); err != nil {
		t.Fatalf("save best 0: %v", err)
	}
	if err := store.SaveBestNetwork(ctx, "run-1", 1, second); err != nil {
		t.Fatalf("save best 1: %v", err)
	}

	got, ok, err := store.GetBestNetwork(ctx, "run-1", 1)
	if err != nil || !ok {
		t.Fatalf("get best ok=%v err=%v", ok, err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected %s, got %s", second.ID, got.ID)
	}
	if _, ok, _ := store.GetBestNetwork(ctx, "run-2", 1); ok {
		t.Fatal("expected no best network for unknown run")
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveNetwork(context.Background(), newTestNetwork(t, 1)); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
