package evo

import (
	"context"
	"errors"
	"testing"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

type noopOperator struct{}

func (noopOperator) Name() string { return "noop" }

func (noopOperator) Apply(_ context.Context, net genotype.Network) (genotype.Network, error) {
	return net.Clone(), nil
}

func currentNetwork() genotype.Network {
	return genotype.Network{VersionedRecord: model.CurrentVersion()}
}

func TestRegisterAndResolveOperator(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("noop", noopOperator{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	op, err := r.Resolve("noop", currentNetwork())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Name() != "noop" {
		t.Fatalf("unexpected operator: %s", op.Name())
	}
}

func TestRegisterOperatorDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("noop", noopOperator{}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("noop", noopOperator{}); !errors.Is(err, ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got: %v", err)
	}
}

func TestRegisterOperatorValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", noopOperator{}); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := r.Register("nil", nil); err == nil {
		t.Fatal("expected nil operator error")
	}
	if err := r.RegisterWithSpec(OperatorSpec{
		Name:          "bad-version",
		Operator:      noopOperator{},
		SchemaVersion: 99,
		CodecVersion:  1,
	}); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveOperatorNotFound(t *testing.T) {
	_, err := NewRegistry().Resolve("missing", currentNetwork())
	if !errors.Is(err, ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound, got: %v", err)
	}
}

func TestResolveOperatorVersionMismatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("noop", noopOperator{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	net := currentNetwork()
	net.CodecVersion++
	_, err := r.Resolve("noop", net)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestResolveOperatorCompatibility(t *testing.T) {
	r := NewRegistry()
	compatibilityErr := errors.New("requires a classification module")
	if err := r.RegisterWithSpec(OperatorSpec{
		Name:          "needs-classification",
		Operator:      noopOperator{},
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(net genotype.Network) error {
			if net.LenClassification() == 0 {
				return compatibilityErr
			}
			return nil
		},
	}); err != nil {
		t.Fatalf("register with compatibility: %v", err)
	}

	_, err := r.Resolve("needs-classification", currentNetwork())
	if !errors.Is(err, ErrOperatorIncompatible) {
		t.Fatalf("expected ErrOperatorIncompatible, got: %v", err)
	}
}

func TestListOperatorsSorted(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("b-op", noopOperator{}); err != nil {
		t.Fatalf("register b-op: %v", err)
	}
	if err := r.Register("a-op", noopOperator{}); err != nil {
		t.Fatalf("register a-op: %v", err)
	}

	names := r.List()
	if len(names) != 2 || names[0] != "a-op" || names[1] != "b-op" {
		t.Fatalf("unexpected operator list: %+v", names)
	}
}

func TestDefaultRegistryNames(t *testing.T) {
	b := newTestBuilder(t, 1, nil)
	r, err := NewDefaultRegistry(b, nil)
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	want := []string{
		"dsge_grammatical", "dsge_integer", "dsge_mutation",
		"ga_addition", "ga_mutation", "ga_removal", "ga_replace",
	}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("unexpected operator list: %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected operator list: %+v", got)
		}
	}
}
