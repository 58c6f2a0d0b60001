package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
	"github.com/bsinger98/MHBench/pkg/topology"
)

// ImageSuffix marks per-host snapshot images.
const ImageSuffix = "_image"

// ImageName is the snapshot image name convention for a host.
func ImageName(hostName string) string {
	return hostName + ImageSuffix
}

// SnapshotManager saves and restores per-host snapshot images. Saving is
// delete-then-recreate so a stale image never shadows a fresh one;
// loading rebuilds the server in place from its named image.
type SnapshotManager struct {
	provider cloud.Provider
	batcher  *Batcher
	metrics  *metrics.Registry
	events   events.Publisher
	logger   logging.Logger
}

// NewSnapshotManager creates a snapshot manager sharing the batcher's
// polling tuning for bulk loads.
func NewSnapshotManager(provider cloud.Provider, batcher *Batcher, reg *metrics.Registry, pub events.Publisher, logger logging.Logger) *SnapshotManager {
	return &SnapshotManager{
		provider: provider,
		batcher:  batcher,
		metrics:  reg,
		events:   pub,
		logger:   logger.With(logging.Component("snapshot")),
	}
}

// Save snapshots one host, replacing any existing image under its name.
func (m *SnapshotManager) Save(ctx context.Context, hostName string) error {
	server, err := m.provider.FindServer(ctx, hostName)
	if err != nil {
		return fmt.Errorf("find server %s: %w", hostName, err)
	}
	if server == nil {
		return fmt.Errorf("save snapshot: server %s: %w", hostName, cloud.ErrNotFound)
	}

	name := ImageName(hostName)
	existing, err := m.provider.FindImage(ctx, name)
	if err != nil {
		return fmt.Errorf("find image %s: %w", name, err)
	}
	if existing != nil {
		m.logger.Debug("image already exists, deleting", logging.ImageName(name))
		if err := m.provider.DeleteImage(ctx, existing.ID); err != nil {
			return fmt.Errorf("delete stale image %s: %w", name, err)
		}
	}

	started := time.Now()
	m.logger.Info("creating snapshot",
		logging.ImageName(name),
		logging.HostName(hostName))
	if _, err := m.provider.CreateImageSnapshot(ctx, name, server.ID); err != nil {
		return fmt.Errorf("create snapshot %s: %w", name, err)
	}

	m.metrics.SnapshotsSavedTotal.Inc()
	m.metrics.SnapshotSaveDuration.Observe(time.Since(started).Seconds())
	m.events.Publish(events.Event{Type: events.TypeSnapshotSaved, Host: hostName})
	return nil
}

// SaveAll snapshots every live server.
func (m *SnapshotManager) SaveAll(ctx context.Context) error {
	servers, err := m.provider.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	m.logger.Info("saving all snapshots", logging.Count(len(servers)))
	for _, server := range servers {
		if err := m.Save(ctx, server.Name); err != nil {
			return err
		}
	}
	return nil
}

// CleanSnapshots deletes every snapshot image.
func (m *SnapshotManager) CleanSnapshots(ctx context.Context) error {
	images, err := m.provider.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}

	m.logger.Info("cleaning snapshots")
	for _, image := range images {
		if !strings.Contains(image.Name, ImageSuffix) {
			continue
		}
		if err := m.provider.DeleteImage(ctx, image.ID); err != nil {
			return fmt.Errorf("delete image %s: %w", image.Name, err)
		}
	}
	return nil
}

// Load rebuilds one host in place from its snapshot image.
func (m *SnapshotManager) Load(ctx context.Context, hostName string) error {
	name := ImageName(hostName)
	image, err := m.provider.FindImage(ctx, name)
	if err != nil {
		return fmt.Errorf("find image %s: %w", name, err)
	}
	if image == nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}

	server, err := m.provider.FindServer(ctx, hostName)
	if err != nil {
		return fmt.Errorf("find server %s: %w", hostName, err)
	}
	if server == nil {
		return fmt.Errorf("load snapshot: server %s: %w", hostName, cloud.ErrNotFound)
	}

	m.logger.Info("rebuilding from snapshot",
		logging.HostName(hostName),
		logging.ImageName(name))
	if err := m.provider.RebuildServer(ctx, server.ID, name); err != nil {
		return fmt.Errorf("rebuild %s: %w", hostName, err)
	}

	m.metrics.SnapshotsLoadedTotal.Inc()
	m.events.Publish(events.Event{Type: events.TypeSnapshotLoaded, Host: hostName})
	return nil
}

// LoadAll reloads every host from its snapshot in batches, polling each
// batch through the rebuild, then hard-reboots attacker-role hosts — the
// attacker guest OS can hang after a rebuild. Every host's image must
// exist before any rebuild is issued.
func (m *SnapshotManager) LoadAll(ctx context.Context, hosts []*topology.Host) error {
	for _, host := range hosts {
		image, err := m.provider.FindImage(ctx, ImageName(host.Name))
		if err != nil {
			return fmt.Errorf("find image %s: %w", ImageName(host.Name), err)
		}
		if image == nil {
			return fmt.Errorf("%w: %s", ErrImageNotFound, ImageName(host.Name))
		}
	}

	for start := 0; start < len(hosts); start += m.batcher.BatchSize {
		end := start + m.batcher.BatchSize
		if end > len(hosts) {
			end = len(hosts)
		}
		if err := m.loadBatch(ctx, hosts[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *SnapshotManager) loadBatch(ctx context.Context, hosts []*topology.Host) error {
	pending := make(map[string]string, len(hosts))
	for _, host := range hosts {
		server, err := m.provider.FindServer(ctx, host.Name)
		if err != nil {
			return fmt.Errorf("find server %s: %w", host.Name, err)
		}
		if server == nil {
			return fmt.Errorf("load snapshot: server %s: %w", host.Name, cloud.ErrNotFound)
		}
		if err := m.Load(ctx, host.Name); err != nil {
			return err
		}
		pending[server.ID] = host.Name
	}

	if err := m.batcher.WaitRebuilt(ctx, pending); err != nil {
		return err
	}

	for _, host := range hosts {
		if !host.IsAttacker {
			continue
		}
		server, err := m.provider.FindServer(ctx, host.Name)
		if err != nil || server == nil {
			return fmt.Errorf("find attacker %s after rebuild: %w", host.Name, err)
		}
		m.logger.Info("hard-rebooting attacker host", logging.HostName(host.Name))
		if err := m.provider.RebootServerHard(ctx, server.ID); err != nil {
			return fmt.Errorf("reboot attacker %s: %w", host.Name, err)
		}
	}
	return nil
}

// RebuildErrorHosts gives every host stuck in ERROR exactly one retry:
// delete the server and recreate it from its snapshot image. Hosts still
// in ERROR after the retry are fatal.
func (m *SnapshotManager) RebuildErrorHosts(ctx context.Context, requests map[string]cloud.CreateServerRequest) error {
	errored, err := m.errorServers(ctx, requests)
	if err != nil {
		return err
	}
	if len(errored) == 0 {
		return nil
	}

	for _, server := range errored {
		req, ok := requests[server.Name]
		if !ok {
			return fmt.Errorf("%w: %s: no rebuild request", ErrHostFailed, server.Name)
		}
		req.ImageName = ImageName(server.Name)

		m.logger.Warn("retrying errored host from snapshot", logging.HostName(server.Name))
		m.metrics.SnapshotRebuildRetries.Inc()

		if err := m.provider.DeleteServer(ctx, server.ID); err != nil {
			return fmt.Errorf("delete errored server %s: %w", server.Name, err)
		}
		if err := m.batcher.DeployHosts(ctx, []cloud.CreateServerRequest{req}); err != nil {
			return fmt.Errorf("%w: %s: retry failed: %w", ErrHostFailed, server.Name, err)
		}
	}

	still, err := m.errorServers(ctx, requests)
	if err != nil {
		return err
	}
	if len(still) > 0 {
		names := make([]string, len(still))
		for i, s := range still {
			names[i] = s.Name
		}
		return fmt.Errorf("%w: still in error after retry: %v", ErrHostFailed, names)
	}
	return nil
}

func (m *SnapshotManager) errorServers(ctx context.Context, requests map[string]cloud.CreateServerRequest) ([]*cloud.Server, error) {
	servers, err := m.provider.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	var errored []*cloud.Server
	for _, server := range servers {
		if _, ok := requests[server.Name]; !ok {
			continue
		}
		current, err := m.provider.GetServer(ctx, server.ID)
		if err != nil {
			return nil, fmt.Errorf("poll server %s: %w", server.Name, err)
		}
		if current.Status == cloud.StatusError {
			errored = append(errored, current)
		}
	}
	return errored, nil
}
