// Package playbook wraps configuration-action execution. A playbook is an
// opaque action reference plus parameters, addressed at one host; the
// runner contract covers single runs with bounded retries and batch runs
// with bounded concurrency.
package playbook

import (
	"context"
)

// Playbook is one configuration action against one host.
type Playbook struct {
	// Name is the action reference, relative to the actions directory.
	Name string
	// Host is the address the action is applied to.
	Host string
	// Params are action-specific variables, merged over the runner's
	// defaults before execution.
	Params map[string]string
}

// New creates a playbook addressed at the given host.
func New(name, host string) *Playbook {
	return &Playbook{
		Name:   name,
		Host:   host,
		Params: map[string]string{"host": host},
	}
}

// WithParam sets one parameter and returns the playbook for chaining.
func (p *Playbook) WithParam(key, value string) *Playbook {
	p.Params[key] = value
	return p
}

// WithParams merges the given parameters in.
func (p *Playbook) WithParams(params map[string]string) *Playbook {
	for k, v := range params {
		p.Params[k] = v
	}
	return p
}

// Runner executes playbooks. Run retries transient failures internally and
// returns only after the retry ceiling is exhausted.
type Runner interface {
	Run(ctx context.Context, pb *Playbook) error
}
