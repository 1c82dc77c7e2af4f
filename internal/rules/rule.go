// Package rules holds the per-channel match criteria: comparison operators,
// single rules and the ordered rule set evaluated first-match-wins.
package rules

import (
	"errors"
	"fmt"

	"github.com/roach88/kryten/internal/variant"
)

// MaxRules bounds the number of alternatives in one Set.
const MaxRules = 20

// ErrTooManyRules is returned by Set.Add once MaxRules rules are held.
var ErrTooManyRules = fmt.Errorf("more than %d sub-matches", MaxRules)

// Operator is a comparison applied between a value and a rule's bounds.
type Operator int

const (
	OpRange Operator = iota + 1
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

var symbols = map[Operator]string{
	OpRange:        "~",
	OpEqual:        "=",
	OpNotEqual:     "/=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
}

// Symbol returns the configuration syntax of the operator.
func (op Operator) Symbol() string {
	if s, ok := symbols[op]; ok {
		return s
	}
	return "?"
}

func (op Operator) String() string {
	return op.Symbol()
}

// Prefixes lists the operator prefixes in the order they must be tried:
// two-character operators before their one-character prefixes.
var Prefixes = []Operator{OpNotEqual, OpLessEqual, OpGreaterEqual, OpEqual, OpLess, OpGreater}

// Rule is one alternative. Upper is only meaningful for OpRange.
type Rule struct {
	Op    Operator
	Lower variant.Value
	Upper variant.Value
}

// NewRange builds an inclusive lower..upper rule.
func NewRange(lower, upper variant.Value) Rule {
	return Rule{Op: OpRange, Lower: lower, Upper: upper}
}

// NewComparison builds a single-bound rule.
func NewComparison(op Operator, bound variant.Value) Rule {
	return Rule{Op: op, Lower: bound}
}

// Matches applies the rule to v.
//
// A range matches when Lower <= v <= Upper. OpEqual uses strict
// variant.Equal; the remaining operators use the coercing relations.
// A Void on either side never matches and returns variant.ErrVoid.
func (r Rule) Matches(v variant.Value) (bool, error) {
	switch r.Op {
	case OpRange:
		lo, err := variant.Le(r.Lower, v)
		if err != nil || !lo {
			return false, err
		}
		return variant.Le(v, r.Upper)
	case OpEqual:
		if kindOf(v) == variant.KindVoid || kindOf(r.Lower) == variant.KindVoid {
			return false, fmt.Errorf("%w: %s against %s", variant.ErrVoid, kindOf(v), kindOf(r.Lower))
		}
		return variant.Equal(v, r.Lower), nil
	case OpNotEqual:
		return variant.Ne(v, r.Lower)
	case OpLess:
		return variant.Lt(v, r.Lower)
	case OpLessEqual:
		return variant.Le(v, r.Lower)
	case OpGreater:
		return variant.Gt(v, r.Lower)
	case OpGreaterEqual:
		return variant.Ge(v, r.Lower)
	}
	return false, fmt.Errorf("unknown operator: %d", int(r.Op))
}

// Mismatch records a bound whose kind differs from the set's expected kind.
type Mismatch struct {
	// Which is "the" for a single bound, "1st" or "2nd" for range bounds.
	Which    string
	Kind     variant.Kind
	Expected variant.Kind
}

// Set is an ordered collection of rules. The kind of the first rule's
// lower bound is the kind every rule is expected to share.
type Set struct {
	rules []Rule
}

// Add appends r and reports any bounds whose kind differs from the
// expected kind. Mismatches are advisory; the rule is installed anyway.
func (s *Set) Add(r Rule) ([]Mismatch, error) {
	if len(s.rules) >= MaxRules {
		return nil, ErrTooManyRules
	}
	s.rules = append(s.rules, r)

	expected := s.Expected()
	var out []Mismatch
	if k := kindOf(r.Lower); k != expected {
		which := "the"
		if r.Op == OpRange {
			which = "1st"
		}
		out = append(out, Mismatch{Which: which, Kind: k, Expected: expected})
	}
	if r.Op == OpRange {
		if k := kindOf(r.Upper); k != expected {
			out = append(out, Mismatch{Which: "2nd", Kind: k, Expected: expected})
		}
	}
	return out, nil
}

// Expected returns the kind of the first rule's lower bound, or Void for
// an empty set.
func (s *Set) Expected() variant.Kind {
	if len(s.rules) == 0 {
		return variant.KindVoid
	}
	return kindOf(s.rules[0].Lower)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Rules returns the rules in declaration order.
func (s *Set) Rules() []Rule {
	return s.rules
}

// Evaluate reports whether any rule matches v, trying rules in order and
// stopping at the first match. A rule that fails to compare counts as not
// matching; its error is returned alongside the outcome.
func (s *Set) Evaluate(v variant.Value) (bool, error) {
	var errs []error
	for i, r := range s.rules {
		ok, err := r.Matches(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("sub-match %d: %w", i+1, err))
			continue
		}
		if ok {
			return true, errors.Join(errs...)
		}
	}
	return false, errors.Join(errs...)
}

func kindOf(v variant.Value) variant.Kind {
	if v == nil {
		return variant.KindVoid
	}
	return v.Kind()
}
