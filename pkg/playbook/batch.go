package playbook

import (
	"context"

	"github.com/bsinger98/MHBench/pkg/parallel"
)

// BatchConcurrency caps how many playbooks run at once in a batch.
const BatchConcurrency = 10

// RunBatch executes playbooks concurrently in groups of BatchConcurrency,
// joining each group before starting the next. Within a group every run
// completes before failures are reported; any single failure aborts the
// whole batch with that run's captured output.
func RunBatch(ctx context.Context, runner Runner, playbooks []*Playbook) error {
	for start := 0; start < len(playbooks); start += BatchConcurrency {
		end := start + BatchConcurrency
		if end > len(playbooks) {
			end = len(playbooks)
		}

		group := playbooks[start:end]
		tasks := make([]func() error, len(group))
		for i, pb := range group {
			pb := pb
			tasks[i] = func() error {
				return runner.Run(ctx, pb)
			}
		}
		if err := parallel.RunBounded(BatchConcurrency, tasks); err != nil {
			return err
		}
	}
	return nil
}
