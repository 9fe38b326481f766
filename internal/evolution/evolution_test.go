package evolution

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gramevo/internal/config"
	"gramevo/internal/evo"
	"gramevo/internal/genotype"
	"gramevo/internal/grammar"
	"gramevo/internal/stats"
	"gramevo/internal/storage"
)

func newTestRunner(t *testing.T, src string, seed int64, mutate func(*config.Limits), eval Evaluator) (*Runner, *genotype.Builder, storage.Store) {
	t.Helper()
	var (
		g   *grammar.Grammar
		err error
	)
	if src == "" {
		g, err = grammar.Default()
	} else {
		g, err = grammar.Parse(strings.NewReader(src))
	}
	require.NoError(t, err)

	limits := config.DefaultLimits()
	if mutate != nil {
		mutate(&limits)
	}
	logger := zaptest.NewLogger(t)
	b, err := genotype.NewBuilder(g, limits, rand.New(rand.NewSource(seed)), logger)
	require.NoError(t, err)
	registry, err := evo.NewDefaultRegistry(b, logger)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	require.NoError(t, store.Init(context.Background()))
	r, err := NewRunner(b, registry, eval, store, logger)
	require.NoError(t, err)
	return r, b, store
}

// layerScore prefers smaller networks.
var layerScore = EvaluatorFunc(func(_ context.Context, net genotype.Network) (float64, error) {
	return 100 / float64(net.LayerCount()), nil
})

func testConfig(outputDir string) Config {
	return Config{
		RunID:          "run-1",
		Seed:           7,
		PopulationSize: 4,
		Generations:    3,
		Holdout:        0.5,
		Operators:      []string{"ga_mutation", "dsge_mutation"},
		Selector:       evo.EliteSelector{},
		Mutations:      evo.ConstMutations{Count: 2},
		OutputDir:      outputDir,
		StoreName:      "memory",
	}
}

func TestRunProducesRowPerIndividualAndExportPerGeneration(t *testing.T) {
	dir := t.TempDir()
	r, b, store := newTestRunner(t, "", 1, nil, layerScore)
	cfg := testConfig(dir)

	res, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Rows, cfg.PopulationSize*cfg.Generations)
	require.Len(t, res.Generations, cfg.Generations)
	require.Len(t, res.ExportPaths, cfg.Generations)

	for i, row := range res.Rows {
		require.Equal(t, i/cfg.PopulationSize, row.Generation)
		require.Equal(t, i%cfg.PopulationSize, row.Individual)
		require.GreaterOrEqual(t, row.BestAccuracy, row.Accuracy)
	}

	rows, err := stats.ReadReportFile(res.ReportPath)
	require.NoError(t, err)
	require.Len(t, rows, len(res.Rows))

	exports, err := stats.ListBestExports(res.RunDir)
	require.NoError(t, err)
	require.Len(t, exports, cfg.Generations)
	for gen, path := range exports {
		export, err := stats.ReadBestExport(path)
		require.NoError(t, err)
		require.Equal(t, gen, export.Generation)
		require.NoError(t, export.Network.Validate(b.Limits))

		stored, ok, err := store.GetBestNetwork(context.Background(), cfg.RunID, gen)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, export.Network.ID, stored.ID)
	}

	run, ok, err := store.GetRun(context.Background(), cfg.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg.Seed, run.Seed)
	require.Len(t, run.Generations, cfg.Generations)

	saved, ok, err := store.GetResults(context.Background(), cfg.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, saved, len(res.Rows))

	_, err = os.Stat(filepath.Join(res.RunDir, stats.BestOrganismFile))
	require.NoError(t, err)
	index, err := stats.ListRunIndex(dir)
	require.NoError(t, err)
	require.Len(t, index, 1)
	require.Equal(t, cfg.RunID, index[0].RunID)
}

func TestRunKeepsEliteAcrossGenerations(t *testing.T) {
	r, _, _ := newTestRunner(t, "", 2, nil, layerScore)
	cfg := testConfig("")
	cfg.Generations = 5

	res, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	for i := 1; i < len(res.Generations); i++ {
		require.GreaterOrEqual(t, res.Generations[i].BestAccuracy, res.Generations[i-1].BestAccuracy)
	}
	require.Equal(t, res.Generations[len(res.Generations)-1].BestAccuracy, res.Best.Accuracy)
	require.Empty(t, res.ReportPath)
	require.Empty(t, res.ExportPaths)
}

func TestRunIsReproducible(t *testing.T) {
	run := func() Result {
		r, _, _ := newTestRunner(t, "", 3, nil, ProxyEvaluator{LayerPenalty: 0.5})
		cfg := testConfig("")
		cfg.Selector = evo.TournamentSelector{}
		res, err := r.Run(context.Background(), cfg)
		require.NoError(t, err)
		return res
	}
	first, second := run(), run()
	require.Equal(t, first.Rows, second.Rows)
}

func TestRunDiscardsUndecodableNetworks(t *testing.T) {
	src := "<features> ::= layer:conv | layer:pool-max | layer:fc\n"
	r, b, _ := newTestRunner(t, src, 4, func(l *config.Limits) {
		l.MaxLenFeatures = 2
	}, layerScore)
	cfg := testConfig("")
	cfg.Generations = 4
	cfg.Operators = []string{"dsge_integer", "ga_addition"}

	res, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Rows, cfg.PopulationSize*cfg.Generations)
	require.NoError(t, res.Best.Network.Validate(b.Limits))
}

func TestRunFailsWhenNothingDecodes(t *testing.T) {
	r, _, _ := newTestRunner(t, "<features> ::= layer:fc\n", 5, nil, layerScore)
	_, err := r.Run(context.Background(), testConfig(""))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no decodable network")
}

func TestRunRejectsUnknownOperator(t *testing.T) {
	r, _, _ := newTestRunner(t, "", 6, nil, layerScore)
	cfg := testConfig("")
	cfg.Operators = []string{"crossover"}
	_, err := r.Run(context.Background(), cfg)
	require.ErrorIs(t, err, evo.ErrOperatorNotFound)
}

func TestRunUsesInitialPopulation(t *testing.T) {
	r, b, _ := newTestRunner(t, "", 7, nil, layerScore)
	seed, err := b.NewNetworkWithLengths(1, 1)
	require.NoError(t, err)
	cfg := testConfig("")
	cfg.Generations = 1
	cfg.Initial = []genotype.Network{seed}

	res, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, seed.ID, res.Rows[0].NetworkID)
}

func TestRunPropagatesEvaluatorError(t *testing.T) {
	boom := errors.New("training failed")
	r, _, _ := newTestRunner(t, "", 8, nil, EvaluatorFunc(func(context.Context, genotype.Network) (float64, error) {
		return 0, boom
	}))
	_, err := r.Run(context.Background(), testConfig(""))
	require.ErrorIs(t, err, boom)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	r, _, _ := newTestRunner(t, "", 9, nil, layerScore)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, testConfig(""))
	require.ErrorIs(t, err, context.Canceled)
}

func TestEliteCount(t *testing.T) {
	require.Equal(t, 1, EliteCount(2, 0.6))
	require.Equal(t, 1, EliteCount(10, 0.01))
	require.Equal(t, 5, EliteCount(10, 0.5))
	require.Equal(t, 4, EliteCount(4, 1))
}

func TestProxyEvaluatorPrefersTarget(t *testing.T) {
	_, b, _ := newTestRunner(t, "", 10, nil, layerScore)
	net, err := b.NewNetworkWithLengths(1, 1)
	require.NoError(t, err)

	exact := ProxyEvaluator{Target: net.FlattenedFeatureSize()}
	score, err := exact.Evaluate(context.Background(), net)
	require.NoError(t, err)
	require.Equal(t, 100.0, score)

	far := ProxyEvaluator{Target: net.FlattenedFeatureSize() * 4}
	lower, err := far.Evaluate(context.Background(), net)
	require.NoError(t, err)
	require.Less(t, lower, score)
}
