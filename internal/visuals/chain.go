package visuals

import (
	"context"
	"errors"
)

var errEmpty = errors.New("empty value")

// Step produces one candidate value for an asset.
type Step func(ctx context.Context) (string, error)

type namedStep struct {
	name string
	run  Step
}

// Chain is an ordered list of fallible steps. The first step returning a
// non-empty value without error wins.
type Chain struct {
	steps []namedStep
}

func Try(name string, step Step) Chain {
	return Chain{steps: []namedStep{{name: name, run: step}}}
}

func (c Chain) OrElse(name string, step Step) Chain {
	steps := make([]namedStep, len(c.steps), len(c.steps)+1)
	copy(steps, c.steps)
	return Chain{steps: append(steps, namedStep{name: name, run: step})}
}

// Optional resolves the chain and returns "" when every step failed.
func (c Chain) Optional(ctx context.Context) (string, Attempts) {
	var attempts Attempts
	for _, s := range c.steps {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Step: s.name, Err: err})
			break
		}
		v, err := s.run(ctx)
		if err == nil && v == "" {
			err = errEmpty
		}
		if err != nil {
			attempts = append(attempts, Attempt{Step: s.name, Err: err})
			continue
		}
		attempts = append(attempts, Attempt{Step: s.name})
		return v, attempts
	}
	return "", attempts
}

// OrDefault closes the chain with a value used when every step fails.
func (c Chain) OrDefault(value string) Guaranteed {
	return Guaranteed{chain: c, fallback: value}
}

// Guaranteed always resolves to a value.
type Guaranteed struct {
	chain    Chain
	fallback string
}

func (g Guaranteed) Resolve(ctx context.Context) (string, Attempts) {
	v, attempts := g.chain.Optional(ctx)
	if v != "" {
		return v, attempts
	}
	return g.fallback, append(attempts, Attempt{Step: "default"})
}

type Attempt struct {
	Step string
	Err  error
}

type Attempts []Attempt

// Winner is the step that produced the value, or "" when none did.
func (a Attempts) Winner() string {
	for _, at := range a {
		if at.Err == nil {
			return at.Step
		}
	}
	return ""
}
