package deploy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
)

// Provisioning defaults.
const (
	DefaultBatchSize    = 10
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 600 * time.Second
)

// Batcher provisions servers in fixed-size batches: each batch is
// submitted fire-and-forget, then polled until every member converges.
// A host reporting ERROR aborts the whole call immediately with the
// provider's fault detail; hosts still pending past MaxWait abort with
// every pending name.
type Batcher struct {
	BatchSize    int
	PollInterval time.Duration
	MaxWait      time.Duration

	provider cloud.Provider
	metrics  *metrics.Registry
	events   events.Publisher
	logger   logging.Logger
}

// NewBatcher creates a batcher with the default batch tuning.
func NewBatcher(provider cloud.Provider, reg *metrics.Registry, pub events.Publisher, logger logging.Logger) *Batcher {
	return &Batcher{
		BatchSize:    DefaultBatchSize,
		PollInterval: DefaultPollInterval,
		MaxWait:      DefaultMaxWait,
		provider:     provider,
		metrics:      reg,
		events:       pub,
		logger:       logger.With(logging.Component("provision")),
	}
}

// DeployHosts creates every requested server and waits for all of them to
// reach ACTIVE, one batch at a time.
func (b *Batcher) DeployHosts(ctx context.Context, requests []cloud.CreateServerRequest) error {
	if len(requests) == 0 {
		b.logger.Info("no hosts to provision")
		return nil
	}

	totalBatches := (len(requests)-1)/b.BatchSize + 1
	b.logger.Info("provisioning hosts",
		logging.Count(len(requests)),
		logging.Int("batches", totalBatches))

	for start := 0; start < len(requests); start += b.BatchSize {
		end := start + b.BatchSize
		if end > len(requests) {
			end = len(requests)
		}

		batchNum := start/b.BatchSize + 1
		b.logger.Info("deploying batch",
			logging.Batch(batchNum),
			logging.Count(end-start))

		if err := b.deployBatch(ctx, requests[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// deployBatch submits every create without waiting, then polls.
func (b *Batcher) deployBatch(ctx context.Context, requests []cloud.CreateServerRequest) error {
	started := time.Now()

	pending := make(map[string]string, len(requests))
	for _, req := range requests {
		server, err := b.provider.CreateServer(ctx, req)
		if err != nil {
			return fmt.Errorf("create server %s: %w", req.Name, err)
		}
		pending[server.ID] = req.Name
		b.logger.Info("submitted instance creation",
			logging.HostName(req.Name),
			logging.String("id", server.ID))
	}

	if err := b.waitForStatus(ctx, pending, cloud.StatusActive); err != nil {
		return err
	}

	b.metrics.RecordBatch(len(requests), time.Since(started))
	return nil
}

// WaitRebuilt polls the given id→name set until every server leaves the
// REBUILD/BUILD transitional states. Servers landing in ERROR are left for
// the caller's rebuild pass rather than failing the wait.
func (b *Batcher) WaitRebuilt(ctx context.Context, pending map[string]string) error {
	return b.waitForStatus(ctx, pending, "")
}

// waitForStatus polls until pending drains. With a target status, only
// that status completes a server and ERROR is fatal; without one, any
// terminal status (ACTIVE or ERROR) completes it.
func (b *Batcher) waitForStatus(ctx context.Context, pending map[string]string, target string) error {
	remaining := make(map[string]string, len(pending))
	for id, name := range pending {
		remaining[id] = name
	}

	deadline := time.Now().Add(b.MaxWait)
	for len(remaining) > 0 && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		for id, name := range remaining {
			server, err := b.provider.GetServer(ctx, id)
			if err != nil {
				return fmt.Errorf("poll server %s: %w", name, err)
			}

			switch server.Status {
			case cloud.StatusError:
				if target != "" {
					b.metrics.RecordHostError(name)
					b.events.Publish(events.Event{
						Type:   events.TypeHostError,
						Host:   name,
						Detail: server.Fault,
					})
					return fmt.Errorf("%w: %s: %s", ErrHostFailed, name, server.Fault)
				}
				// Terminal for a rebuild wait; the error pass handles it.
				delete(remaining, id)
			case cloud.StatusActive:
				if target == "" || target == cloud.StatusActive {
					b.logger.Info("instance is now active", logging.HostName(name))
					b.metrics.RecordHostProvisioned("active")
					b.events.Publish(events.Event{
						Type: events.TypeHostProvisioned,
						Host: name,
					})
					delete(remaining, id)
				}
			default:
				b.logger.Debug("instance still pending",
					logging.HostName(name),
					logging.Status(server.Status))
			}
		}

		b.metrics.ProvisionPendingHosts.Set(float64(len(remaining)))
		if len(remaining) > 0 {
			b.logger.Info("waiting for instances",
				logging.Count(len(remaining)))
			select {
			case <-time.After(b.PollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if len(remaining) > 0 {
		names := make([]string, 0, len(remaining))
		for _, name := range remaining {
			names = append(names, name)
		}
		sort.Strings(names)
		b.metrics.ProvisionTimeoutsTotal.Inc()
		return fmt.Errorf("%w: %v", ErrProvisionTimeout, names)
	}

	b.metrics.ProvisionPendingHosts.Set(0)
	return nil
}
