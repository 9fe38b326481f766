package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

type bestKey struct {
	runID      string
	generation int
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string]genotype.Network
	runs        map[string]model.Run
	results     map[string][]model.IndividualResult
	best        map[bestKey]genotype.Network
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.networks = make(map[string]genotype.Network)
	s.runs = make(map[string]model.Run)
	s.results = make(map[string][]model.IndividualResult)
	s.best = make(map[bestKey]genotype.Network)
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, net genotype.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.networks[net.ID] = net.Clone()
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (genotype.Network, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	net, ok := s.networks[id]
	if !ok {
		return genotype.Network{}, false, nil
	}
	return net.Clone(), true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	run.Generations = slices.Clone(run.Generations)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.Run{}, false, nil
	}
	run.Generations = slices.Clone(run.Generations)
	return run, true, nil
}

func (s *MemoryStore) SaveResults(_ context.Context, runID string, results []model.IndividualResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.results[runID] = slices.Clone(results)
	return nil
}

func (s *MemoryStore) GetResults(_ context.Context, runID string) ([]model.IndividualResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, ok := s.results[runID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(results), true, nil
}

func (s *MemoryStore) SaveBestNetwork(_ context.Context, runID string, generation int, net genotype.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.best[bestKey{runID: runID, generation: generation}] = net.Clone()
	return nil
}

func (s *MemoryStore) GetBestNetwork(_ context.Context, runID string, generation int) (genotype.Network, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	net, ok := s.best[bestKey{runID: runID, generation: generation}]
	if !ok {
		return genotype.Network{}, false, nil
	}
	return net.Clone(), true, nil
}

func (s *MemoryStore) ready() error {
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	return nil
}
