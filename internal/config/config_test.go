package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	limits := DefaultLimits()
	require.Equal(t, 10, limits.MaxLenFeatures)
	require.Equal(t, 2, limits.MaxLenClassification)
	require.Equal(t, 1, limits.MaxLenBlockFeatures)
}

func TestLoadINIOverridesOnlyGivenKeys(t *testing.T) {
	path := writeFile(t, "run.ini", `
[genotype]
max_len_features = 4
batch_norm_probability = 1.0
grammar_path = grammars/cnn.grammar

[run]
population_size = 8
seed = 42
selector = tournament
operators = ga_addition, dsge_grammatical
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Genotype.MaxLenFeatures)
	require.Equal(t, 1.0, cfg.Genotype.BatchNormProbability)
	require.Equal(t, "grammars/cnn.grammar", cfg.Genotype.GrammarPath)
	require.Equal(t, 2, cfg.Genotype.MaxLenClassification)
	require.Equal(t, 8, cfg.Run.PopulationSize)
	require.Equal(t, int64(42), cfg.Run.Seed)
	require.Equal(t, 2, cfg.Run.Generations)
	require.Equal(t, "tournament", cfg.Run.Selector)
	require.Equal(t, []string{"ga_addition", "dsge_grammatical"}, cfg.Run.Operators)
	require.Equal(t, "const", cfg.Run.MutationPolicy)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
genotype:
  max_len_classification: 3
  num_classes: 100
run:
  generations: 5
  store: sqlite
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Genotype.MaxLenClassification)
	require.Equal(t, 100, cfg.Genotype.NumClasses)
	require.Equal(t, 5, cfg.Run.Generations)
	require.Equal(t, "sqlite", cfg.Run.Store)
	require.Equal(t, 10, cfg.Genotype.MaxLenFeatures)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "run.yaml", "genotype:\n  max_len_featurez: 3\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidLimits(t *testing.T) {
	path := writeFile(t, "bad.ini", "[genotype]\nmin_channel_features = 50\nmax_channel_features = 9\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "feature channel range")
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "run.toml", "")
	_, err := Load(path)
	require.ErrorContains(t, err, "unsupported config format")
}
