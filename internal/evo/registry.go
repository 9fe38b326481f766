package evo

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

const (
	SupportedSchemaVersion = model.CurrentSchemaVersion
	SupportedCodecVersion  = model.CurrentCodecVersion
)

var (
	ErrOperatorExists       = errors.New("operator already registered")
	ErrOperatorNotFound     = errors.New("operator not found")
	ErrOperatorIncompatible = errors.New("operator incompatible with network")
	ErrVersionMismatch      = errors.New("operator version mismatch")
)

type CompatibilityFn func(net genotype.Network) error

type OperatorSpec struct {
	Name          string
	Operator      Operator
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredOperator struct {
	operator      Operator
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

// Registry resolves operators by name. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]registeredOperator
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]registeredOperator)}
}

// NewDefaultRegistry registers every structural and parametric operator
// bound to b.
func NewDefaultRegistry(b *genotype.Builder, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry()
	ops := []Operator{
		&GAMutation{Builder: b, Logger: logger},
		&GAMutation{Builder: b, Type: Addition, Logger: logger},
		&GAMutation{Builder: b, Type: Replace, Logger: logger},
		&GAMutation{Builder: b, Type: Removal, Logger: logger},
		&DSGEMutation{Builder: b, Logger: logger},
		&DSGEMutation{Builder: b, Type: Grammatical, Logger: logger},
		&DSGEMutation{Builder: b, Type: Integer, Logger: logger},
	}
	for _, op := range ops {
		if err := r.Register(op.Name(), op); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an operator with the current schema and codec versions.
func (r *Registry) Register(name string, op Operator) error {
	return r.RegisterWithSpec(OperatorSpec{
		Name:          name,
		Operator:      op,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

// RegisterWithSpec adds an operator with explicit versioning and compatibility metadata.
func (r *Registry) RegisterWithSpec(spec OperatorSpec) error {
	if spec.Name == "" {
		return errors.New("operator name is required")
	}
	if spec.Operator == nil {
		return errors.New("operator is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}
	r.m[spec.Name] = registeredOperator{
		operator:      spec.Operator,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// Resolve returns a registered operator only if the network's record
// versions and the compatibility check pass.
func (r *Registry) Resolve(name string, net genotype.Network) (Operator, error) {
	r.mu.RLock()
	entry, ok := r.m[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if net.SchemaVersion != entry.schemaVersion || net.CodecVersion != entry.codecVersion {
		return nil, fmt.Errorf("%w: operator=%s expected(schema=%d codec=%d) got(schema=%d codec=%d)",
			ErrVersionMismatch,
			name,
			entry.schemaVersion,
			entry.codecVersion,
			net.SchemaVersion,
			net.CodecVersion,
		)
	}
	if entry.compatible != nil {
		if err := entry.compatible(net); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperatorIncompatible, name, err)
		}
	}
	return entry.operator, nil
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
