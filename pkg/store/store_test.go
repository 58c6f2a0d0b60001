package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/generator"
	"github.com/bsinger98/MHBench/pkg/store"
	"github.com/bsinger98/MHBench/pkg/topology"
)

func generateTopology(t *testing.T) *topology.Topology {
	t.Helper()

	cfg := generator.DefaultNetworkGeneratorConfig()
	cfg.MinSubnets = 2
	cfg.MaxSubnets = 3
	cfg.MinHostsPerSubnet = 2
	cfg.MaxHostsPerSubnet = 3
	cfg.GoalHostProb = 0.5
	cfg.Seed = 11

	topo, err := generator.NewNetworkGenerator(cfg).Generate("roundtrip")
	require.NoError(t, err)
	return topo
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	topo := generateTopology(t)
	require.NoError(t, s.Save(ctx, topo.Name, topo))

	loaded, err := s.Load(ctx, topo.Name)
	require.NoError(t, err)

	assert.Equal(t, topo.Name, loaded.Name)
	assert.Len(t, loaded.AllSubnets(), len(topo.AllSubnets()))
	assert.Len(t, loaded.AllHosts(true), len(topo.AllHosts(true)))
	assert.Len(t, loaded.Goals, len(topo.Goals))

	// Attack paths reconstruct with their concrete step variants.
	require.Len(t, loaded.AttackPaths, len(topo.AttackPaths))
	for i, path := range loaded.AttackPaths {
		require.Len(t, path.Steps, len(topo.AttackPaths[i].Steps))
		assert.True(t, path.ValidateContinuity())
		for j, step := range path.Steps {
			assert.Equal(t, topo.AttackPaths[i].Steps[j].IsLateralMovement(), step.IsLateralMovement())
			assert.Equal(t, topo.AttackPaths[i].Steps[j].Vuln().Playbook, step.Vuln().Playbook)
		}
	}

	// The post-merge graph state survives: node/edge counts and adjacency.
	require.NotNil(t, loaded.AttackGraph)
	assert.Equal(t, topo.AttackGraph.NodeCount(), loaded.AttackGraph.NodeCount())
	assert.Equal(t, topo.AttackGraph.EdgeCount(), loaded.AttackGraph.EdgeCount())
	assert.Equal(t, topo.AttackGraph.Adjacency, loaded.AttackGraph.Adjacency)

	// Host lookups resolve against the reconstructed entities.
	for _, goal := range loaded.Goals {
		assert.NotNil(t, loaded.HostByID(goal.TargetHostID, false))
		assert.NotNil(t, loaded.AttackGraph.NodeByIdentity(goal.TargetHostID, goal.TargetUserID))
	}
}

func TestLocalStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	topo := generateTopology(t)
	require.NoError(t, s.Save(ctx, "alpha", topo))
	require.NoError(t, s.Save(ctx, "beta", topo))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, s.Delete(ctx, "alpha"))
	_, err = s.Load(ctx, "alpha")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}

func TestLocalStoreLoadMissing(t *testing.T) {
	s, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrDocumentNotFound)
}
