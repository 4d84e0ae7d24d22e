package fuzzy

import (
	"errors"
)

var (
	ErrBreakpoints         = errors.New("membership function breakpoints must be non-decreasing")
	ErrInvalidUniverse     = errors.New("invalid universe")
	ErrInvalidVariable     = errors.New("invalid variable")
	ErrDuplicateTerm       = errors.New("duplicate term label")
	ErrTermOutsideUniverse = errors.New("term breakpoints outside of universe")
	ErrUnknownTerm         = errors.New("unknown term")
	ErrRuleArity           = errors.New("rule must reference exactly one term per input variable")
	ErrInvalidRuleBase     = errors.New("invalid rule base")
	ErrMissingInput        = errors.New("missing input variable")
	ErrInvalidInput        = errors.New("invalid crisp input")
	ErrInvalidResolution   = errors.New("invalid output resolution")
	ErrInvalidDefuzzifier  = errors.New("invalid defuzzification method")
)
