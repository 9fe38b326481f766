package gramevo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"gramevo/internal/config"
	"gramevo/internal/evo"
	"gramevo/internal/evolution"
	"gramevo/internal/genotype"
	"gramevo/internal/grammar"
	"gramevo/internal/stats"
	"gramevo/internal/storage"
)

type Options struct {
	// ConfigPath is an INI or YAML file; empty keeps the defaults.
	ConfigPath string
	// StoreKind and DBPath override the configured store.
	StoreKind string
	DBPath    string
	Logger    *zap.Logger
}

type Client struct {
	cfg     config.Config
	grammar *grammar.Grammar
	store   storage.Store
	logger  *zap.Logger
}

type SampleRequest struct {
	Seed int64
	// Features and Classification fix section lengths; zero draws them.
	Features       int
	Classification int
}

type MutateRequest struct {
	Network  genotype.Network
	Operator string
	Seed     int64
	Count    int
}

type DecodeRequest struct {
	Symbol string
	Seed   int64
}

type DecodeResult struct {
	Symbol    string
	Expansion grammar.Expansion
	Phenotype string
	Layers    []genotype.LayerSpec
}

type ShapeStep struct {
	Index    int
	Kind     genotype.ModuleKind
	Side     int
	Channels int
}

type RunRequest struct {
	RunID       string
	Seed        int64
	Population  int
	Generations int
	OutputDir   string
	// Target and LayerPenalty tune the built-in proxy evaluator used when
	// Evaluator is nil.
	Target       int
	LayerPenalty float64
	Evaluator    evolution.Evaluator
}

type RunSummary struct {
	RunID            string
	RunDir           string
	ReportPath       string
	BestByGeneration []float64
	FinalBest        float64
	FinalBestLayers  int
	BestNetworkID    string
}

type ExportItem struct {
	Path       string
	Generation int
	Accuracy   float64
	NetworkID  string
	Layers     int
}

func New(opts Options) (*Client, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.StoreKind != "" {
		cfg.Run.Store = opts.StoreKind
	}
	if opts.DBPath != "" {
		cfg.Run.DBPath = opts.DBPath
	}

	g, err := loadGrammar(cfg.Genotype.GrammarPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(cfg.Run.Store, cfg.Run.DBPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, grammar: g, store: store, logger: logger}, nil
}

func loadGrammar(path string) (*grammar.Grammar, error) {
	if path == "" {
		return grammar.Default()
	}
	return grammar.Load(path)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Config() config.Config {
	return c.cfg
}

// Builder returns a builder seeded with seed over the client's grammar and
// limits.
func (c *Client) Builder(seed int64) (*genotype.Builder, error) {
	return genotype.NewBuilder(c.grammar, c.cfg.Genotype, rand.New(rand.NewSource(seed)), c.logger)
}

func (c *Client) Sample(_ context.Context, req SampleRequest) (genotype.Network, error) {
	b, err := c.Builder(req.Seed)
	if err != nil {
		return genotype.Network{}, err
	}
	if req.Features == 0 && req.Classification == 0 {
		return b.NewNetwork()
	}
	features, classification := req.Features, req.Classification
	if features == 0 {
		features = 1
	}
	if classification == 0 {
		classification = 1
	}
	return b.NewNetworkWithLengths(features, classification)
}

// Mutate applies req.Count draws of the named operator. The input network
// is left untouched.
func (c *Client) Mutate(ctx context.Context, req MutateRequest) (genotype.Network, error) {
	if req.Operator == "" {
		req.Operator = "ga_mutation"
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	b, err := c.Builder(req.Seed)
	if err != nil {
		return genotype.Network{}, err
	}
	registry, err := evo.NewDefaultRegistry(b, c.logger)
	if err != nil {
		return genotype.Network{}, err
	}

	out := req.Network
	for i := 0; i < req.Count; i++ {
		op, err := registry.Resolve(req.Operator, out)
		if err != nil {
			return genotype.Network{}, err
		}
		out, err = op.Apply(ctx, out)
		if err != nil {
			return genotype.Network{}, err
		}
	}
	if err := out.Validate(c.cfg.Genotype); err != nil {
		return genotype.Network{}, err
	}
	return out, nil
}

// Operators lists the registered mutation operator names.
func (c *Client) Operators() ([]string, error) {
	b, err := c.Builder(0)
	if err != nil {
		return nil, err
	}
	registry, err := evo.NewDefaultRegistry(b, c.logger)
	if err != nil {
		return nil, err
	}
	return registry.List(), nil
}

func (c *Client) Decode(req DecodeRequest) (DecodeResult, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = c.cfg.Genotype.FeaturesSymbol
	}
	rng := rand.New(rand.NewSource(req.Seed))
	exp, err := c.grammar.Initialise(symbol, rng)
	if err != nil {
		return DecodeResult{}, err
	}
	pheno, err := c.grammar.Decode(symbol, exp)
	if err != nil {
		return DecodeResult{}, err
	}
	layers, err := genotype.ParseLayers(pheno)
	if err != nil {
		return DecodeResult{}, err
	}
	return DecodeResult{Symbol: symbol, Expansion: exp, Phenotype: pheno, Layers: layers}, nil
}

// Shape traces the square spatial side through every features module.
func (c *Client) Shape(net genotype.Network) []ShapeStep {
	steps := make([]ShapeStep, 0, len(net.Features)+1)
	side := net.InputSize
	steps = append(steps, ShapeStep{Index: -1, Side: side, Channels: net.InputChannels})
	for i, m := range net.Features {
		side = max(1, m.ComputeShape(side))
		steps = append(steps, ShapeStep{Index: i, Kind: m.Kind, Side: side, Channels: m.OutputChannels()})
	}
	return steps
}

func (c *Client) Signature(net genotype.Network) genotype.NetworkSignature {
	return genotype.ComputeSignature(net)
}

// Run evolves a population with the configured run settings, overridden by
// non-zero request fields.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	rc := c.cfg.Run
	if req.Seed != 0 {
		rc.Seed = req.Seed
	}
	if req.Population > 0 {
		rc.PopulationSize = req.Population
	}
	if req.Generations > 0 {
		rc.Generations = req.Generations
	}
	if req.OutputDir != "" {
		rc.OutputDir = req.OutputDir
	}

	b, err := c.Builder(rc.Seed)
	if err != nil {
		return RunSummary{}, err
	}
	registry, err := evo.NewDefaultRegistry(b, c.logger)
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.SelectorByName(rc.Selector)
	if err != nil {
		return RunSummary{}, err
	}
	policy, err := evo.MutationCountPolicyByName(rc.MutationPolicy, rc.MutationParam, rc.MaxMutations)
	if err != nil {
		return RunSummary{}, err
	}
	evaluator := req.Evaluator
	if evaluator == nil {
		evaluator = evolution.ProxyEvaluator{Target: req.Target, LayerPenalty: req.LayerPenalty}
	}

	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	runner, err := evolution.NewRunner(b, registry, evaluator, c.store, c.logger)
	if err != nil {
		return RunSummary{}, err
	}
	res, err := runner.Run(ctx, evolution.Config{
		RunID:          req.RunID,
		Seed:           rc.Seed,
		PopulationSize: rc.PopulationSize,
		Generations:    rc.Generations,
		Holdout:        rc.Holdout,
		Operators:      rc.Operators,
		Selector:       selector,
		Mutations:      policy,
		OutputDir:      rc.OutputDir,
		StoreName:      rc.Store,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:           res.RunID,
		RunDir:          res.RunDir,
		ReportPath:      res.ReportPath,
		FinalBest:       res.Best.Accuracy,
		FinalBestLayers: res.Best.Network.LayerCount(),
		BestNetworkID:   res.Best.Network.ID,
	}
	for _, g := range res.Generations {
		summary.BestByGeneration = append(summary.BestByGeneration, g.BestAccuracy)
	}
	return summary, nil
}

// Runs lists recorded runs under outputDir, newest first.
func (c *Client) Runs(outputDir string, limit int) ([]stats.RunIndexEntry, error) {
	if outputDir == "" {
		outputDir = c.cfg.Run.OutputDir
	}
	entries, err := stats.ListRunIndex(outputDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Exports lists the best-genotype snapshots of a run directory in
// generation order.
func (c *Client) Exports(runDir string) ([]ExportItem, error) {
	paths, err := stats.ListBestExports(runDir)
	if err != nil {
		return nil, err
	}
	items := make([]ExportItem, 0, len(paths))
	for _, path := range paths {
		export, err := stats.ReadBestExport(path)
		if err != nil {
			return nil, err
		}
		items = append(items, ExportItem{
			Path:       path,
			Generation: export.Generation,
			Accuracy:   export.Accuracy,
			NetworkID:  export.Network.ID,
			Layers:     export.Network.LayerCount(),
		})
	}
	return items, nil
}

// BestNetwork returns the stored best network of a run's generation.
func (c *Client) BestNetwork(ctx context.Context, runID string, generation int) (genotype.Network, error) {
	if err := c.store.Init(ctx); err != nil {
		return genotype.Network{}, err
	}
	net, ok, err := c.store.GetBestNetwork(ctx, runID, generation)
	if err != nil {
		return genotype.Network{}, err
	}
	if !ok {
		return genotype.Network{}, fmt.Errorf("no best network for run %s generation %d", runID, generation)
	}
	return net, nil
}

// ReadNetwork loads a network file written by WriteNetwork or a best
// genotype export.
func ReadNetwork(path string) (genotype.Network, error) {
	if _, err := stats.ParseExportGeneration(path); err == nil {
		export, err := stats.ReadBestExport(path)
		if err != nil {
			return genotype.Network{}, err
		}
		return export.Network, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return genotype.Network{}, err
	}
	return storage.DecodeNetwork(data)
}

func WriteNetwork(path string, net genotype.Network) error {
	if path == "" {
		return errors.New("output path is required")
	}
	data, err := storage.EncodeNetwork(net)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
