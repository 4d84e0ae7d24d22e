package fuzzy

import (
	"fmt"
	"slices"
	"strings"
)

// Rule maps a conjunction of antecedent terms, one per input variable and
// in input order, to a consequent term of the output variable.
type Rule struct {
	Antecedents []string
	Consequent  string
}

func (r Rule) String() string {
	return strings.Join(r.Antecedents, " & ") + " -> " + r.Consequent
}

type RuleBase struct {
	inputs []*Variable
	output *Variable
	rules  []Rule

	// Term indices resolved at construction.
	ants [][]int
	cons []int
}

func NewRuleBase(inputs []*Variable, output *Variable, rules []Rule) (*RuleBase, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input variables: %w", ErrInvalidRuleBase)
	}
	if output == nil {
		return nil, fmt.Errorf("no output variable: %w", ErrInvalidRuleBase)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules: %w", ErrInvalidRuleBase)
	}
	names := make(map[string]bool, len(inputs)+1)
	for _, v := range append(slices.Clone(inputs), output) {
		if v == nil {
			return nil, fmt.Errorf("nil variable: %w", ErrInvalidRuleBase)
		}
		if names[v.Name()] {
			return nil, fmt.Errorf("variable %q defined twice: %w", v.Name(), ErrInvalidRuleBase)
		}
		names[v.Name()] = true
	}
	rb := &RuleBase{
		inputs: slices.Clone(inputs),
		output: output,
		rules:  make([]Rule, len(rules)),
		ants:   make([][]int, len(rules)),
		cons:   make([]int, len(rules)),
	}
	for i, r := range rules {
		if len(r.Antecedents) != len(inputs) {
			return nil, fmt.Errorf("rule %d (%v): %w", i, r, ErrRuleArity)
		}
		rb.ants[i] = make([]int, len(inputs))
		for j, label := range r.Antecedents {
			k, ok := inputs[j].Index(label)
			if !ok {
				return nil, fmt.Errorf("rule %d (%v), variable %q, term %q: %w",
					i, r, inputs[j].Name(), label, ErrUnknownTerm)
			}
			rb.ants[i][j] = k
		}
		k, ok := output.Index(r.Consequent)
		if !ok {
			return nil, fmt.Errorf("rule %d (%v), variable %q, term %q: %w",
				i, r, output.Name(), r.Consequent, ErrUnknownTerm)
		}
		rb.cons[i] = k
		rb.rules[i] = Rule{
			Antecedents: slices.Clone(r.Antecedents),
			Consequent:  r.Consequent,
		}
	}
	return rb, nil
}

func (rb *RuleBase) Inputs() []*Variable { return slices.Clone(rb.inputs) }

func (rb *RuleBase) Output() *Variable { return rb.output }

func (rb *RuleBase) Len() int { return len(rb.rules) }

func (rb *RuleBase) Rules() []Rule {
	rs := make([]Rule, len(rb.rules))
	for i, r := range rb.rules {
		rs[i] = Rule{Antecedents: slices.Clone(r.Antecedents), Consequent: r.Consequent}
	}
	return rs
}

// CombinationRules builds one rule for every combination of input terms.
// Combinations are enumerated in row-major order: the first input's terms
// vary slowest, the last input's terms fastest, each in term order. pick
// receives the term index of every input and returns the index of the
// consequent term.
func CombinationRules(inputs []*Variable, output *Variable,
	pick func(idx []int) int) ([]Rule, error) {
	if len(inputs) == 0 || output == nil {
		return nil, ErrInvalidRuleBase
	}
	n := 1
	for _, v := range inputs {
		n *= v.Len()
	}
	rules := make([]Rule, 0, n)
	idx := make([]int, len(inputs))
	for range n {
		k := pick(slices.Clone(idx))
		if k < 0 || k >= output.Len() {
			return nil, fmt.Errorf("combination %v, variable %q, term index %d: %w",
				idx, output.Name(), k, ErrUnknownTerm)
		}
		ants := make([]string, len(inputs))
		for j, v := range inputs {
			ants[j] = v.Term(idx[j]).Label
		}
		rules = append(rules, Rule{Antecedents: ants, Consequent: output.Term(k).Label})
		for j := len(idx) - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < inputs[j].Len() {
				break
			}
			idx[j] = 0
		}
	}
	return rules, nil
}
