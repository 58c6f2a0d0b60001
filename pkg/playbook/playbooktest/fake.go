// Package playbooktest provides a scriptable Runner for tests.
package playbooktest

import (
	"context"
	"sync"

	"github.com/bsinger98/MHBench/pkg/playbook"
)

// Run records one executed playbook.
type Run struct {
	Name   string
	Host   string
	Params map[string]string
}

// Fake records every run and fails the ones scripted to fail.
type Fake struct {
	mu sync.Mutex

	// FailOn maps playbook name to the error its runs return.
	FailOn map[string]error
	// FailOnce maps playbook name to an error returned on the first run only.
	FailOnce map[string]error

	runs  []Run
	fired map[string]bool
}

// NewFake creates an empty fake runner.
func NewFake() *Fake {
	return &Fake{
		FailOn:   make(map[string]error),
		FailOnce: make(map[string]error),
		fired:    make(map[string]bool),
	}
}

// Run implements playbook.Runner.
func (f *Fake) Run(_ context.Context, pb *playbook.Playbook) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	params := make(map[string]string, len(pb.Params))
	for k, v := range pb.Params {
		params[k] = v
	}
	f.runs = append(f.runs, Run{Name: pb.Name, Host: pb.Host, Params: params})

	if err, ok := f.FailOnce[pb.Name]; ok && !f.fired[pb.Name] {
		f.fired[pb.Name] = true
		return err
	}
	if err, ok := f.FailOn[pb.Name]; ok {
		return err
	}
	return nil
}

// Runs returns a copy of the recorded runs in execution order.
func (f *Fake) Runs() []Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Run(nil), f.runs...)
}

// Names returns the recorded playbook names in execution order.
func (f *Fake) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, len(f.runs))
	for i, r := range f.runs {
		names[i] = r.Name
	}
	return names
}
