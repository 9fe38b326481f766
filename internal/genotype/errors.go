package genotype

import (
	"github.com/pkg/errors"

	"gramevo/internal/grammar"
)

var (
	ErrGrammarDecode        = grammar.ErrDecode
	ErrInvalidGrammarSymbol = grammar.ErrInvalidSymbol
	ErrChannelMismatch      = errors.New("channel mismatch")
	ErrSectionLength        = errors.New("section length out of bounds")
	ErrKindMismatch         = errors.New("layer params do not match kind")
)
