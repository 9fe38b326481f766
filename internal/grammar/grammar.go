// Package grammar loads DSGE production rules and expands them into
// phenotype strings: space-separated key:value tokens, one "layer:" marker
// per layer record.
package grammar

import (
	"bufio"
	_ "embed"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed cnn.grammar
var defaultSource string

var (
	ErrInvalidSymbol = errors.New("invalid grammar symbol")
	ErrDecode        = errors.New("grammar decode error")
	ErrMalformed     = errors.New("malformed grammar")
)

const maxDepth = 64

type tokenKind int

const (
	terminal tokenKind = iota
	nonTerminal
	numeric
)

type NumericType string

const (
	IntType   NumericType = "int"
	FloatType NumericType = "float"
)

type numericBlock struct {
	name  string
	typ   NumericType
	count int
	min   float64
	max   float64
}

func (b numericBlock) sample(rng *rand.Rand) []float64 {
	values := make([]float64, b.count)
	for i := range values {
		if b.typ == IntType {
			lo, hi := int(b.min), int(b.max)
			values[i] = float64(lo + rng.Intn(hi-lo+1))
			continue
		}
		values[i] = b.min + rng.Float64()*(b.max-b.min)
	}
	return values
}

func (b numericBlock) format(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if b.typ == IntType {
			parts[i] = strconv.Itoa(int(v))
		} else {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return b.name + ":" + strings.Join(parts, ",")
}

type token struct {
	kind  tokenKind
	value string
	block numericBlock
}

type production []token

// Grammar is an immutable set of production rules. It is safe to share
// between individuals and goroutines once loaded.
type Grammar struct {
	rules map[string][]production
}

// Gene records one expansion of a non-terminal: the chosen production and
// the values drawn for its numeric blocks, keyed by block name.
type Gene struct {
	Production int                  `json:"production"`
	Values     map[string][]float64 `json:"values,omitempty"`
}

// Expansion holds, per non-terminal, the genes consumed in derivation order.
type Expansion map[string][]Gene

func (e Expansion) Clone() Expansion {
	out := make(Expansion, len(e))
	for symbol, genes := range e {
		copied := make([]Gene, len(genes))
		for i, gene := range genes {
			copied[i] = Gene{Production: gene.Production}
			if gene.Values != nil {
				copied[i].Values = make(map[string][]float64, len(gene.Values))
				for name, values := range gene.Values {
					copied[i].Values[name] = append([]float64(nil), values...)
				}
			}
		}
		out[symbol] = copied
	}
	return out
}

// Default returns the embedded CNN grammar.
func Default() (*Grammar, error) {
	return Parse(strings.NewReader(defaultSource))
}

// Load reads a grammar file from disk.
func Load(path string) (*Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open grammar")
	}
	defer f.Close()

	g, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "grammar %s", path)
	}
	return g, nil
}

func Parse(r io.Reader) (*Grammar, error) {
	g := &Grammar{rules: make(map[string][]production)}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lhs, rhs, ok := strings.Cut(line, "::=")
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "line %d: missing ::=", lineNo)
		}
		symbol, ok := symbolName(strings.TrimSpace(lhs))
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "line %d: left side %q is not a <symbol>", lineNo, strings.TrimSpace(lhs))
		}
		if _, exists := g.rules[symbol]; exists {
			return nil, errors.Wrapf(ErrMalformed, "line %d: duplicate rule <%s>", lineNo, symbol)
		}
		for _, alt := range strings.Split(rhs, "|") {
			fields := strings.Fields(alt)
			if len(fields) == 0 {
				return nil, errors.Wrapf(ErrMalformed, "line %d: empty alternative in <%s>", lineNo, symbol)
			}
			prod := make(production, 0, len(fields))
			for _, field := range fields {
				tok, err := parseToken(field)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
				prod = append(prod, tok)
			}
			g.rules[symbol] = append(g.rules[symbol], prod)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read grammar")
	}
	if len(g.rules) == 0 {
		return nil, errors.Wrap(ErrMalformed, "no rules")
	}
	for symbol, prods := range g.rules {
		for _, prod := range prods {
			for _, tok := range prod {
				if tok.kind != nonTerminal {
					continue
				}
				if _, ok := g.rules[tok.value]; !ok {
					return nil, errors.Wrapf(ErrInvalidSymbol, "<%s> references undefined <%s>", symbol, tok.value)
				}
			}
		}
	}
	return g, nil
}

func symbolName(s string) (string, bool) {
	if len(s) < 3 || s[0] != '<' || s[len(s)-1] != '>' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

func parseToken(field string) (token, error) {
	if name, ok := symbolName(field); ok {
		return token{kind: nonTerminal, value: name}, nil
	}
	if strings.HasPrefix(field, "[") && strings.HasSuffix(field, "]") {
		block, err := parseNumericBlock(field[1 : len(field)-1])
		if err != nil {
			return token{}, err
		}
		return token{kind: numeric, block: block}, nil
	}
	return token{kind: terminal, value: field}, nil
}

func parseNumericBlock(body string) (numericBlock, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 5 {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] needs name,type,count,min,max", body)
	}
	block := numericBlock{name: parts[0], typ: NumericType(parts[1])}
	if block.name == "" {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has no name", body)
	}
	if block.typ != IntType && block.typ != FloatType {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has unknown type %q", body, parts[1])
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil || count < 1 {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has invalid count", body)
	}
	block.count = count
	if block.min, err = strconv.ParseFloat(parts[3], 64); err != nil {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has invalid min", body)
	}
	if block.max, err = strconv.ParseFloat(parts[4], 64); err != nil {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has invalid max", body)
	}
	if block.min > block.max {
		return numericBlock{}, errors.Wrapf(ErrMalformed, "numeric block [%s] has min > max", body)
	}
	return block, nil
}

// Symbols lists the non-terminals defined by the grammar.
func (g *Grammar) Symbols() []string {
	out := make([]string, 0, len(g.rules))
	for symbol := range g.rules {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (g *Grammar) Has(symbol string) bool {
	_, ok := g.rules[symbol]
	return ok
}

// Initialise randomly derives symbol and returns the choices made.
func (g *Grammar) Initialise(symbol string, rng *rand.Rand) (Expansion, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	exp := make(Expansion)
	if err := g.expand(symbol, rng, exp, 0); err != nil {
		return nil, err
	}
	return exp, nil
}

func (g *Grammar) expand(symbol string, rng *rand.Rand, exp Expansion, depth int) error {
	prods, ok := g.rules[symbol]
	if !ok {
		return errors.Wrapf(ErrInvalidSymbol, "<%s>", symbol)
	}
	if depth > maxDepth {
		return errors.Errorf("expansion of <%s> exceeds depth %d", symbol, maxDepth)
	}
	choice := rng.Intn(len(prods))
	gene := Gene{Production: choice}
	for _, tok := range prods[choice] {
		if tok.kind != numeric {
			continue
		}
		if gene.Values == nil {
			gene.Values = make(map[string][]float64)
		}
		gene.Values[tok.block.name] = tok.block.sample(rng)
	}
	exp[symbol] = append(exp[symbol], gene)

	for _, tok := range prods[choice] {
		if tok.kind != nonTerminal {
			continue
		}
		if err := g.expand(tok.value, rng, exp, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Decode replays exp from symbol and returns the phenotype string.
func (g *Grammar) Decode(symbol string, exp Expansion) (string, error) {
	if !g.Has(symbol) {
		return "", errors.Wrapf(ErrInvalidSymbol, "<%s>", symbol)
	}
	cursor := make(map[string]int)
	out := make([]string, 0, 8)
	if err := g.decode(symbol, exp, cursor, &out); err != nil {
		return "", err
	}
	return strings.Join(out, " "), nil
}

func (g *Grammar) decode(symbol string, exp Expansion, cursor map[string]int, out *[]string) error {
	prods := g.rules[symbol]
	genes := exp[symbol]
	idx := cursor[symbol]
	if idx >= len(genes) {
		return errors.Wrapf(ErrDecode, "no expansion left for <%s>", symbol)
	}
	cursor[symbol] = idx + 1

	gene := genes[idx]
	if gene.Production < 0 || gene.Production >= len(prods) {
		return errors.Wrapf(ErrDecode, "<%s> production %d out of range", symbol, gene.Production)
	}
	for _, tok := range prods[gene.Production] {
		switch tok.kind {
		case terminal:
			*out = append(*out, tok.value)
		case numeric:
			values, ok := gene.Values[tok.block.name]
			if !ok || len(values) != tok.block.count {
				return errors.Wrapf(ErrDecode, "<%s> missing values for [%s]", symbol, tok.block.name)
			}
			*out = append(*out, tok.block.format(values))
		case nonTerminal:
			if err := g.decode(tok.value, exp, cursor, out); err != nil {
				return err
			}
		}
	}
	return nil
}
