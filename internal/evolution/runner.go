// Package evolution drives generations of networks: evaluate, rank, keep the
// elite and refill the population with mutated children.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"gramevo/internal/evo"
	"gramevo/internal/genotype"
	"gramevo/internal/model"
	"gramevo/internal/stats"
	"gramevo/internal/storage"
)

// maxReseedAttempts bounds retries when a fresh network fails to decode.
const maxReseedAttempts = 16

// Evaluator trains and scores a network. Accuracy is a percentage.
type Evaluator interface {
	Evaluate(ctx context.Context, net genotype.Network) (float64, error)
}

type EvaluatorFunc func(ctx context.Context, net genotype.Network) (float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, net genotype.Network) (float64, error) {
	return f(ctx, net)
}

type Config struct {
	RunID          string
	Seed           int64
	PopulationSize int
	Generations    int
	// Holdout is the fraction of ranked networks kept unchanged.
	Holdout   float64
	Operators []string
	Selector  evo.Selector
	Mutations evo.MutationCountPolicy
	// OutputDir receives <RunID>/ reports and exports. Empty disables files.
	OutputDir string
	StoreName string
	Initial   []genotype.Network
}

type Result struct {
	RunID       string
	Best        evo.ScoredNetwork
	Rows        []model.IndividualResult
	Generations []model.GenerationSummary
	RunDir      string
	ReportPath  string
	ExportPaths []string
}

type Runner struct {
	builder   *genotype.Builder
	registry  *evo.Registry
	evaluator Evaluator
	store     storage.Store
	logger    *zap.Logger
}

func NewRunner(b *genotype.Builder, registry *evo.Registry, evaluator Evaluator, store storage.Store, logger *zap.Logger) (*Runner, error) {
	if b == nil {
		return nil, errors.New("builder is required")
	}
	if registry == nil {
		return nil, errors.New("operator registry is required")
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{builder: b, registry: registry, evaluator: evaluator, store: store, logger: logger}, nil
}

func (c Config) validate() error {
	if c.PopulationSize < 1 {
		return errors.New("population size must be >= 1")
	}
	if c.Generations < 1 {
		return errors.New("generations must be >= 1")
	}
	if c.Holdout <= 0 || c.Holdout > 1 {
		return errors.New("holdout must be in (0, 1]")
	}
	if len(c.Operators) == 0 {
		return errors.New("at least one operator is required")
	}
	if c.Selector == nil {
		return errors.New("selector is required")
	}
	if c.Mutations == nil {
		return errors.New("mutation count policy is required")
	}
	if len(c.Initial) > c.PopulationSize {
		return fmt.Errorf("initial population %d exceeds population size %d", len(c.Initial), c.PopulationSize)
	}
	return nil
}

// EliteCount is the number of ranked networks carried over unchanged.
func EliteCount(populationSize int, holdout float64) int {
	n := int(math.Floor(holdout * float64(populationSize)))
	if n < 1 {
		n = 1
	}
	if n > populationSize {
		n = populationSize
	}
	return n
}

// Run evolves cfg.Generations generations. Every network is evaluated once
// per generation and the best of each generation is exported and stored.
func (r *Runner) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	known := r.registry.List()
	for _, name := range cfg.Operators {
		if !slices.Contains(known, name) {
			return Result{}, fmt.Errorf("%w: %s", evo.ErrOperatorNotFound, name)
		}
	}
	if cfg.RunID == "" {
		id, err := r.builder.NewID()
		if err != nil {
			return Result{}, err
		}
		cfg.RunID = id
	}

	res := Result{RunID: cfg.RunID}
	if cfg.OutputDir != "" {
		res.RunDir = filepath.Join(cfg.OutputDir, cfg.RunID)
	}

	population := make([]genotype.Network, 0, cfg.PopulationSize)
	for _, net := range cfg.Initial {
		population = append(population, net.Clone())
	}
	discarded := 0
	for len(population) < cfg.PopulationSize {
		net, dropped, err := r.seed()
		if err != nil {
			return Result{}, err
		}
		discarded += dropped
		population = append(population, net)
	}

	r.logger.Info("run started",
		zap.String("run_id", cfg.RunID),
		zap.Int("population", cfg.PopulationSize),
		zap.Int("generations", cfg.Generations),
		zap.String("selector", cfg.Selector.Name()),
		zap.String("mutations", cfg.Mutations.Name()),
	)

	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		scored := make([]evo.ScoredNetwork, len(population))
		for i, net := range population {
			acc, err := r.evaluator.Evaluate(ctx, net)
			if err != nil {
				return Result{}, fmt.Errorf("evaluate generation %d individual %d: %w", gen, i, err)
			}
			scored[i] = evo.ScoredNetwork{Network: net, Accuracy: acc}
		}

		ranked := append([]evo.ScoredNetwork(nil), scored...)
		evo.Rank(ranked)
		best := ranked[0]
		if gen == 0 || best.Accuracy > res.Best.Accuracy {
			res.Best = evo.ScoredNetwork{Network: best.Network.Clone(), Accuracy: best.Accuracy}
		}

		for i, s := range scored {
			res.Rows = append(res.Rows, model.IndividualResult{
				Generation:     gen,
				Individual:     i,
				NetworkID:      s.Network.ID,
				Accuracy:       s.Accuracy,
				LayerCount:     s.Network.LayerCount(),
				BestAccuracy:   best.Accuracy,
				BestLayerCount: best.Network.LayerCount(),
			})
		}
		res.Generations = append(res.Generations, model.GenerationSummary{
			Generation:     gen,
			BestNetworkID:  best.Network.ID,
			BestAccuracy:   best.Accuracy,
			BestLayerCount: best.Network.LayerCount(),
			Discarded:      discarded,
		})

		if err := r.store.SaveNetwork(ctx, best.Network); err != nil {
			return Result{}, fmt.Errorf("save best network: %w", err)
		}
		if err := r.store.SaveBestNetwork(ctx, cfg.RunID, gen, best.Network); err != nil {
			return Result{}, fmt.Errorf("save generation %d best: %w", gen, err)
		}
		if res.RunDir != "" {
			path, err := stats.WriteBestExport(res.RunDir, stats.BestExport{
				Generation: gen,
				Accuracy:   best.Accuracy,
				Network:    best.Network,
			})
			if err != nil {
				return Result{}, err
			}
			res.ExportPaths = append(res.ExportPaths, path)
		}

		r.logger.Info("generation complete",
			zap.Int("generation", gen),
			zap.Float64("best_accuracy", best.Accuracy),
			zap.Int("best_layers", best.Network.LayerCount()),
			zap.Int("discarded", discarded),
		)

		if gen == cfg.Generations-1 {
			break
		}
		next, dropped, err := r.breed(ctx, cfg, ranked, gen)
		if err != nil {
			return Result{}, err
		}
		population = next
		discarded = dropped
	}

	if err := r.persist(ctx, cfg, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// breed keeps the elite and fills the remaining slots with mutated copies
// of selected parents.
func (r *Runner) breed(ctx context.Context, cfg Config, ranked []evo.ScoredNetwork, gen int) ([]genotype.Network, int, error) {
	eliteCount := EliteCount(len(ranked), cfg.Holdout)
	next := make([]genotype.Network, 0, cfg.PopulationSize)
	for _, s := range ranked[:eliteCount] {
		next = append(next, s.Network.Clone())
	}

	discarded := 0
	for len(next) < cfg.PopulationSize {
		parent, err := cfg.Selector.PickParent(r.builder.Rand, ranked, eliteCount)
		if err != nil {
			return nil, 0, err
		}
		child, err := r.mutate(ctx, cfg, parent, gen)
		if err != nil {
			if !isDecodeFailure(err) {
				return nil, 0, err
			}
			r.logger.Warn("discarding child",
				zap.Int("generation", gen),
				zap.String("parent", parent.ID),
				zap.Error(err),
			)
			discarded++
			fresh, dropped, err := r.seed()
			if err != nil {
				return nil, 0, err
			}
			discarded += dropped
			next = append(next, fresh)
			continue
		}
		next = append(next, child)
	}
	return next, discarded, nil
}

func (r *Runner) mutate(ctx context.Context, cfg Config, parent genotype.Network, gen int) (genotype.Network, error) {
	count, err := cfg.Mutations.MutationCount(parent, gen, r.builder.Rand)
	if err != nil {
		return genotype.Network{}, err
	}
	child := parent.Clone()
	for i := 0; i < count; i++ {
		name, err := genotype.RandomElement(r.builder.Rand, cfg.Operators)
		if err != nil {
			return genotype.Network{}, err
		}
		op, err := r.registry.Resolve(name, child)
		if err != nil {
			return genotype.Network{}, err
		}
		child, err = op.Apply(ctx, child)
		if err != nil {
			return genotype.Network{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := child.Validate(r.builder.Limits); err != nil {
		return genotype.Network{}, fmt.Errorf("mutated child of %s: %w", parent.ID, err)
	}
	id, err := r.builder.NewID()
	if err != nil {
		return genotype.Network{}, err
	}
	child.ID = id
	return child, nil
}

// seed builds a fresh network, retrying when the grammar fails to decode.
// It returns how many attempts were dropped.
func (r *Runner) seed() (genotype.Network, int, error) {
	dropped := 0
	for attempt := 0; attempt < maxReseedAttempts; attempt++ {
		net, err := r.builder.NewNetwork()
		if err == nil {
			return net, dropped, nil
		}
		if !isDecodeFailure(err) {
			return genotype.Network{}, dropped, err
		}
		r.logger.Warn("discarding seed network", zap.Int("attempt", attempt), zap.Error(err))
		dropped++
	}
	return genotype.Network{}, dropped, fmt.Errorf("no decodable network after %d attempts", maxReseedAttempts)
}

func (r *Runner) persist(ctx context.Context, cfg Config, res *Result) error {
	run := model.Run{
		VersionedRecord: model.CurrentVersion(),
		ID:              cfg.RunID,
		Seed:            cfg.Seed,
		Generations:     res.Generations,
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := r.store.SaveResults(ctx, cfg.RunID, res.Rows); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if res.RunDir == "" {
		return nil
	}

	path, err := stats.WriteReport(res.RunDir, res.Rows)
	if err != nil {
		return err
	}
	res.ReportPath = path
	if _, err := stats.WriteBestOrganism(res.RunDir, res.Best.Accuracy, res.Best.Network); err != nil {
		return err
	}
	return stats.AppendRunIndex(cfg.OutputDir, stats.RunIndexEntry{
		RunID:             cfg.RunID,
		PopulationSize:    cfg.PopulationSize,
		Generations:       cfg.Generations,
		Seed:              cfg.Seed,
		Store:             cfg.StoreName,
		FinalBestAccuracy: res.Best.Accuracy,
		FinalBestLayers:   res.Best.Network.LayerCount(),
		CreatedAtUTC:      time.Now().UTC().Format(time.RFC3339),
	})
}

func isDecodeFailure(err error) bool {
	return errors.Is(err, genotype.ErrGrammarDecode) || errors.Is(err, genotype.ErrInvalidGrammarSymbol)
}
