package health

import (
	"context"
	"fmt"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/journal"
	"github.com/bsinger98/MHBench/pkg/store"
)

// ProviderCheck probes the cloud API. Unreachable is unhealthy; reachable
// with servers stuck in ERROR is degraded.
func ProviderCheck(provider cloud.Provider) CheckFunc {
	return func(ctx context.Context) Check {
		servers, err := provider.ListServers(ctx)
		if err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}

		errored := 0
		for _, server := range servers {
			live, err := provider.GetServer(ctx, server.ID)
			if err != nil {
				continue
			}
			if live.Status == cloud.StatusError {
				errored++
			}
		}
		if errored > 0 {
			return Check{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%d of %d servers in ERROR", errored, len(servers)),
			}
		}
		return Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d servers", len(servers)),
		}
	}
}

// StoreCheck probes the topology document store.
func StoreCheck(s store.Store) CheckFunc {
	return func(ctx context.Context) Check {
		names, err := s.List(ctx)
		if err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d topologies", len(names)),
		}
	}
}

// JournalCheck probes the deployment journal with a no-match query.
func JournalCheck(j journal.Journal) CheckFunc {
	return func(ctx context.Context) Check {
		if _, err := j.ListRuns(ctx, ""); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy}
	}
}
