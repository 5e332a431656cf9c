package topology

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	parsec "github.com/prataprc/goparsec"
)

// priceExpr is a compiled arithmetic expression over a query's named
// variables, the result of parsing one "default => <expr>;" clause of a
// cost model source (spec.md section 4.2/6). Grounded on the teacher's
// goparsec dependency (go.mod), generalized from secondary-index key
// expression parsing to the gateway's price-function grammar.
type priceExpr interface {
	eval(vars map[string]float64) (float64, error)
}

type numberExpr float64

func (n numberExpr) eval(map[string]float64) (float64, error) { return float64(n), nil }

type varExpr string

func (v varExpr) eval(vars map[string]float64) (float64, error) {
	val, ok := vars[string(v)]
	if !ok {
		return 0, fmt.Errorf("topology: undefined variable %q in cost model", string(v))
	}
	return val, nil
}

type binExpr struct {
	op       byte
	lhs, rhs priceExpr
}

func (b binExpr) eval(vars map[string]float64) (float64, error) {
	l, err := b.lhs.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := b.rhs.eval(vars)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("topology: division by zero in cost model")
		}
		return l / r, nil
	default:
		return 0, fmt.Errorf("topology: unknown operator %q", b.op)
	}
}

// CompiledCostModel is a parsed, memoized price function plus the default
// variables declared alongside it (spec.md section 3, Indexing.cost_model).
type CompiledCostModel struct {
	expr      priceExpr
	variables map[string]float64

	mu     sync.Mutex
	memo   map[string]float64
	memoOK map[string]bool
}

// compileCache memoizes compilation failures within a single snapshot cycle
// (spec.md section 4.2: "compilation failures are cached as 'no model' to
// avoid recompiling known-bad sources"). Keyed by the raw model+variables
// text, reset by the caller at the start of each tick.
type compileCache struct {
	mu    sync.Mutex
	bad   map[string]struct{}
	cache map[string]*CompiledCostModel
}

func newCompileCache() *compileCache {
	return &compileCache{bad: make(map[string]struct{}), cache: make(map[string]*CompiledCostModel)}
}

// CompileCostModel parses and memoizes src outside the per-tick
// compileCache, for callers (and tests) that need a CompiledCostModel
// without running a full builder tick.
func CompileCostModel(src CostModelSource) (*CompiledCostModel, error) {
	return compileCostModel(src)
}

func (c *compileCache) compile(src CostModelSource) (*CompiledCostModel, error) {
	key := src.Model + "\x00" + src.Variables
	c.mu.Lock()
	if _, known := c.bad[key]; known {
		c.mu.Unlock()
		return nil, fmt.Errorf("topology: cost model known-bad this cycle")
	}
	if m, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	m, err := compileCostModel(src)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.bad[key] = struct{}{}
		return nil, err
	}
	c.cache[key] = m
	return m, nil
}

// compileCostModel parses src.Model's "default => <expr>;" clause and
// decodes src.Variables as a flat JSON object of default variable values.
func compileCostModel(src CostModelSource) (*CompiledCostModel, error) {
	clause, err := extractDefaultClause(src.Model)
	if err != nil {
		return nil, err
	}
	expr, err := parsePriceExpr(clause)
	if err != nil {
		return nil, err
	}
	vars := map[string]float64{}
	if src.Variables != "" {
		var raw map[string]json.Number
		if err := json.Unmarshal([]byte(src.Variables), &raw); err != nil {
			return nil, fmt.Errorf("topology: invalid cost model variables: %w", err)
		}
		for k, v := range raw {
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("topology: non-numeric variable %q: %w", k, err)
			}
			vars[k] = f
		}
	}
	return &CompiledCostModel{
		expr:      expr,
		variables: vars,
		memo:      make(map[string]float64),
		memoOK:    make(map[string]bool),
	}, nil
}

// extractDefaultClause finds the right-hand side of the model's "default =>
// ...;" rule. Real cost model sources support per-deployment-query match
// arms; this gateway only evaluates the default arm (spec.md's price
// efficiency factor only needs one scalar price per query).
func extractDefaultClause(model string) (string, error) {
	const marker = "default"
	idx := indexOf(model, marker)
	if idx < 0 {
		return "", fmt.Errorf("topology: cost model has no default clause")
	}
	rest := model[idx+len(marker):]
	arrow := indexOf(rest, "=>")
	if arrow < 0 {
		return "", fmt.Errorf("topology: cost model default clause missing '=>'")
	}
	rest = rest[arrow+2:]
	end := indexOf(rest, ";")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest, nil
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// Price evaluates the compiled model against the given query variables,
// memoizing by the variable assignment's canonical key within the model's
// lifetime (spec.md section 4.2, "memoizes price functions").
func (m *CompiledCostModel) Price(vars map[string]float64) (float64, error) {
	key := memoKey(vars)
	m.mu.Lock()
	if v, ok := m.memoOK[key]; ok && v {
		price := m.memo[key]
		m.mu.Unlock()
		return price, nil
	}
	m.mu.Unlock()

	merged := make(map[string]float64, len(m.variables)+len(vars))
	for k, v := range m.variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	price, err := m.expr.eval(merged)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.memo[key] = price
	m.memoOK[key] = true
	m.mu.Unlock()
	return price, nil
}

func memoKey(vars map[string]float64) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	// sorted so the same assignment always yields the same key.
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += k + "=" + strconv.FormatFloat(vars[k], 'g', -1, 64) + ";"
	}
	return s
}

// parsePriceExpr parses a small arithmetic sublanguage (+ - * / and
// parenthesized numeric literals and bare variable identifiers) using
// goparsec's combinator primitives, the same token-then-combine shape as
// the teacher's secondary-index expression handling.
func parsePriceExpr(text string) (priceExpr, error) {
	s := parsec.NewScanner([]byte(text))

	var exprParser parsec.Parser

	number := parsec.Token(`[0-9]+(\.[0-9]+)?`, "NUMBER")
	ident := parsec.Token(`[a-zA-Z_][a-zA-Z0-9_]*`, "IDENT")
	openP := parsec.Token(`\(`, "OPENP")
	closeP := parsec.Token(`\)`, "CLOSEP")
	plus := parsec.Token(`\+`, "PLUS")
	minus := parsec.Token(`-`, "MINUS")
	star := parsec.Token(`\*`, "STAR")
	slash := parsec.Token(`/`, "SLASH")

	exprRef := func(s parsec.Scanner) (parsec.ParsecNode, parsec.Scanner) { return exprParser(s) }

	var factor parsec.Parser
	factor = parsec.OrdChoice(func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		switch v := nodes[0].(type) {
		case *parsec.Terminal:
			if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
				return numberExpr(f)
			}
			return varExpr(v.Value)
		default:
			return v
		}
	}, number, ident, parsec.And(func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		return nodes[1]
	}, openP, parsec.Parser(exprRef), closeP))

	term := parsec.Many(func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		return foldBinary(nodes)
	}, factor, parsec.OrdChoice(nil, star, slash), factor)

	exprParser = parsec.Many(func(nodes []parsec.ParsecNode) parsec.ParsecNode {
		return foldBinary(nodes)
	}, term, parsec.OrdChoice(nil, plus, minus), term)

	node, _ := exprParser(s)
	if node == nil {
		return nil, fmt.Errorf("topology: could not parse price expression %q", text)
	}
	expr, ok := toPriceExpr(node)
	if !ok {
		return nil, fmt.Errorf("topology: malformed price expression %q", text)
	}
	return expr, nil
}

// foldBinary left-folds a flat [term, op, term, op, term, ...] production
// (as produced by parsec.Many) into a binExpr tree.
func foldBinary(nodes []parsec.ParsecNode) parsec.ParsecNode {
	if len(nodes) == 0 {
		return nil
	}
	left, ok := toPriceExpr(nodes[0])
	if !ok {
		return nil
	}
	for i := 1; i+1 < len(nodes); i += 2 {
		op := opByte(nodes[i])
		right, ok := toPriceExpr(nodes[i+1])
		if !ok {
			return nil
		}
		left = binExpr{op: op, lhs: left, rhs: right}
	}
	return left
}

func toPriceExpr(node parsec.ParsecNode) (priceExpr, bool) {
	switch v := node.(type) {
	case priceExpr:
		return v, true
	case numberExpr:
		return v, true
	case varExpr:
		return v, true
	case binExpr:
		return v, true
	default:
		return nil, false
	}
}

func opByte(node parsec.ParsecNode) byte {
	if t, ok := node.(*parsec.Terminal); ok && len(t.Value) > 0 {
		return t.Value[0]
	}
	return 0
}
