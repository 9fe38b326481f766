// Package config holds the engine limits and run settings. Files are INI
// (sections [genotype] and [run]) or YAML (keys genotype and run); keys left
// out keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Limits bounds genotype construction and mutation. Channel ranges are
// half-open: Min inclusive, Max exclusive.
type Limits struct {
	MaxLenFeatures       int `ini:"max_len_features" yaml:"max_len_features"`
	MaxLenClassification int `ini:"max_len_classification" yaml:"max_len_classification"`
	MaxLenBlockFeatures  int `ini:"max_len_block_features" yaml:"max_len_block_features"`

	MinChannelFeatures       int `ini:"min_channel_features" yaml:"min_channel_features"`
	MaxChannelFeatures       int `ini:"max_channel_features" yaml:"max_channel_features"`
	MinChannelClassification int `ini:"min_channel_classification" yaml:"min_channel_classification"`
	MaxChannelClassification int `ini:"max_channel_classification" yaml:"max_channel_classification"`
	MinChannelAddition       int `ini:"min_channel_addition" yaml:"min_channel_addition"`
	MaxChannelAddition       int `ini:"max_channel_addition" yaml:"max_channel_addition"`

	NumClasses    int `ini:"num_classes" yaml:"num_classes"`
	InputChannels int `ini:"input_channels" yaml:"input_channels"`
	InputSize     int `ini:"input_size" yaml:"input_size"`

	BatchNormProbability float64 `ini:"batch_norm_probability" yaml:"batch_norm_probability"`
	ConvBiasProbability  float64 `ini:"conv_bias_probability" yaml:"conv_bias_probability"`

	GrammarPath    string `ini:"grammar_path" yaml:"grammar_path"`
	FeaturesSymbol string `ini:"features_symbol" yaml:"features_symbol"`
}

type RunConfig struct {
	PopulationSize int     `ini:"population_size" yaml:"population_size"`
	Generations    int     `ini:"generations" yaml:"generations"`
	Seed           int64   `ini:"seed" yaml:"seed"`
	Holdout        float64 `ini:"holdout" yaml:"holdout"`
	OutputDir      string  `ini:"output_dir" yaml:"output_dir"`
	Store          string  `ini:"store" yaml:"store"`
	DBPath         string  `ini:"db_path" yaml:"db_path"`

	Selector       string   `ini:"selector" yaml:"selector"`
	MutationPolicy string   `ini:"mutation_policy" yaml:"mutation_policy"`
	MutationParam  float64  `ini:"mutation_param" yaml:"mutation_param"`
	MaxMutations   int      `ini:"max_mutations" yaml:"max_mutations"`
	Operators      []string `ini:"operators" yaml:"operators" delim:","`
}

type Config struct {
	Genotype Limits    `yaml:"genotype"`
	Run      RunConfig `yaml:"run"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxLenFeatures:           10,
		MaxLenClassification:     2,
		MaxLenBlockFeatures:      1,
		MinChannelFeatures:       9,
		MaxChannelFeatures:       50,
		MinChannelClassification: 64,
		MaxChannelClassification: 2048,
		MinChannelAddition:       7,
		MaxChannelAddition:       30,
		NumClasses:               10,
		InputChannels:            1,
		InputSize:                28,
		BatchNormProbability:     0.2,
		ConvBiasProbability:      0.2,
		FeaturesSymbol:           "features",
	}
}

func Default() Config {
	return Config{
		Genotype: DefaultLimits(),
		Run: RunConfig{
			PopulationSize: 2,
			Generations:    2,
			Seed:           1,
			Holdout:        0.6,
			OutputDir:      "results",
			Store:          "memory",
			DBPath:         "gramevo.db",
			Selector:       "elite",
			MutationPolicy: "const",
			MutationParam:  1,
			Operators:      []string{"ga_mutation", "dsge_mutation"},
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		err = decodeINI(data, &cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s", path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeINI(data []byte, cfg *Config) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, data)
	if err != nil {
		return err
	}
	if err := file.Section("genotype").MapTo(&cfg.Genotype); err != nil {
		return fmt.Errorf("map [genotype]: %w", err)
	}
	if err := file.Section("run").MapTo(&cfg.Run); err != nil {
		return fmt.Errorf("map [run]: %w", err)
	}
	cfg.Genotype.GrammarPath = strings.TrimSpace(cfg.Genotype.GrammarPath)
	cfg.Genotype.FeaturesSymbol = strings.TrimSpace(cfg.Genotype.FeaturesSymbol)
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.Genotype.Validate(); err != nil {
		return err
	}
	r := c.Run
	if r.PopulationSize < 1 {
		return fmt.Errorf("population_size must be >= 1")
	}
	if r.Generations < 1 {
		return fmt.Errorf("generations must be >= 1")
	}
	if r.Holdout <= 0 || r.Holdout > 1 {
		return fmt.Errorf("holdout must be in (0, 1]")
	}
	if len(r.Operators) == 0 {
		return fmt.Errorf("at least one mutation operator is required")
	}
	return nil
}

func (l Limits) Validate() error {
	switch {
	case l.MaxLenFeatures < 1:
		return fmt.Errorf("max_len_features must be >= 1")
	case l.MaxLenClassification < 1:
		return fmt.Errorf("max_len_classification must be >= 1")
	case l.MaxLenBlockFeatures < 1:
		return fmt.Errorf("max_len_block_features must be >= 1")
	case l.MinChannelFeatures < 1 || l.MaxChannelFeatures <= l.MinChannelFeatures:
		return fmt.Errorf("feature channel range [%d,%d) is empty", l.MinChannelFeatures, l.MaxChannelFeatures)
	case l.MinChannelClassification < 1 || l.MaxChannelClassification <= l.MinChannelClassification:
		return fmt.Errorf("classification channel range [%d,%d) is empty", l.MinChannelClassification, l.MaxChannelClassification)
	case l.MinChannelAddition < 1 || l.MaxChannelAddition <= l.MinChannelAddition:
		return fmt.Errorf("addition channel range [%d,%d) is empty", l.MinChannelAddition, l.MaxChannelAddition)
	case l.NumClasses < 1:
		return fmt.Errorf("num_classes must be >= 1")
	case l.InputChannels < 1 || l.InputSize < 1:
		return fmt.Errorf("input shape must be positive")
	case l.BatchNormProbability < 0 || l.BatchNormProbability > 1:
		return fmt.Errorf("batch_norm_probability must be in [0, 1]")
	case l.ConvBiasProbability < 0 || l.ConvBiasProbability > 1:
		return fmt.Errorf("conv_bias_probability must be in [0, 1]")
	case l.FeaturesSymbol == "":
		return fmt.Errorf("features_symbol is required")
	}
	return nil
}
