package attackgraph

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/topology"
)

// chainPath builds a path hopping through the given (host, user) identities
// with lateral movements.
func chainPath(identities [][2]uuid.UUID) *topology.AttackPath {
	steps := make([]topology.Step, 0, len(identities)-1)
	for i := 0; i < len(identities)-1; i++ {
		steps = append(steps, &topology.LateralMovementStep{
			FromHostID: identities[i][0],
			ToHostID:   identities[i+1][0],
			FromUserID: identities[i][1],
			ToUserID:   identities[i+1][1],
		})
	}
	first, last := identities[0], identities[len(identities)-1]
	return topology.NewAttackPath(first[0], first[1], last[0], last[1], steps)
}

func byHostVuln(playbook string) *topology.Vulnerability {
	return &topology.Vulnerability{
		Type:          topology.VulnLateralMovement,
		Playbook:      playbook,
		MergeStrategy: topology.MergeByHost,
	}
}

func TestBuildDeduplicatesIdentities(t *testing.T) {
	attacker := [2]uuid.UUID{uuid.New(), uuid.New()}
	pivot := [2]uuid.UUID{uuid.New(), uuid.New()}
	goal1 := [2]uuid.UUID{uuid.New(), uuid.New()}
	goal2 := [2]uuid.UUID{uuid.New(), uuid.New()}

	// Two paths share the attacker and pivot identities.
	graph := Build([]*topology.AttackPath{
		chainPath([][2]uuid.UUID{attacker, pivot, goal1}),
		chainPath([][2]uuid.UUID{attacker, pivot, goal2}),
	})

	assert.Equal(t, 4, graph.NodeCount(), "shared identities coincide")
	assert.Equal(t, 4, graph.EdgeCount())

	pivotNode := graph.NodeByIdentity(pivot[0], pivot[1])
	require.NotNil(t, pivotNode)
	assert.Len(t, graph.EdgesToNode(pivotNode.ID), 2)
	assert.Len(t, graph.EdgesFromNode(pivotNode.ID), 2)
}

func TestBuildEscalationEdge(t *testing.T) {
	host := uuid.New()
	alice, root := uuid.New(), uuid.New()
	attackerHost, attackerUser := uuid.New(), uuid.New()

	path := topology.NewAttackPath(attackerHost, attackerUser, host, root, []topology.Step{
		&topology.LateralMovementStep{
			FromHostID: attackerHost, ToHostID: host,
			FromUserID: attackerUser, ToUserID: alice,
		},
		&topology.PrivilegeEscalationStep{
			HostID: host, FromUserID: alice, ToUserID: root,
		},
	})

	graph := Build([]*topology.AttackPath{path})
	assert.Equal(t, 3, graph.NodeCount())

	rootNode := graph.NodeByIdentity(host, root)
	require.NotNil(t, rootNode, "escalation lands on (host, to-user)")
	incoming := graph.EdgesToNode(rootNode.ID)
	require.Len(t, incoming, 1)
	assert.False(t, incoming[0].IsLateralMovement)
}

// edgeSignature relabels an edge by its endpoint identities so graphs built
// from different path orders compare equal.
func edgeSignature(g *topology.AttackGraph, e *topology.AttackGraphEdge) string {
	from := g.NodeByID(e.FromNodeID)
	to := g.NodeByID(e.ToNodeID)
	return fmt.Sprintf("%s/%s->%s/%s lateral=%t",
		from.HostID, from.UserID, to.HostID, to.UserID, e.IsLateralMovement)
}

func graphSignature(g *topology.AttackGraph) []string {
	sigs := make([]string, 0, g.EdgeCount())
	for _, e := range g.AllEdges() {
		sigs = append(sigs, edgeSignature(g, e))
	}
	sort.Strings(sigs)
	return sigs
}

func TestBuildIsPathOrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("shuffled paths build an isomorphic graph", prop.ForAll(
		func(seed int64, hostCount int) bool {
			rng := rand.New(rand.NewSource(seed))

			identities := make([][2]uuid.UUID, hostCount)
			for i := range identities {
				identities[i] = [2]uuid.UUID{uuid.New(), uuid.New()}
			}

			// A handful of random chains over the shared identity pool.
			paths := make([]*topology.AttackPath, 0, 4)
			for p := 0; p < 4; p++ {
				hops := [][2]uuid.UUID{identities[0]}
				for h := 0; h < 1+rng.Intn(3); h++ {
					hops = append(hops, identities[1+rng.Intn(hostCount-1)])
				}
				paths = append(paths, chainPath(hops))
			}

			shuffled := make([]*topology.AttackPath, len(paths))
			copy(shuffled, paths)
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			a, b := Build(paths), Build(shuffled)
			if a.NodeCount() != b.NodeCount() || a.EdgeCount() != b.EdgeCount() {
				return false
			}
			return assert.ObjectsAreEqual(graphSignature(a), graphSignature(b))
		},
		gen.Int64(),
		gen.IntRange(3, 8),
	))

	properties.TestingRun(t)
}

func TestPruneByHostCollapsesNodes(t *testing.T) {
	attackerA := [2]uuid.UUID{uuid.New(), uuid.New()}
	attackerB := [2]uuid.UUID{uuid.New(), uuid.New()}

	// Two lateral movements from distinct sources land on distinct users of
	// the same host, both via the same by-host vulnerability.
	targetHost := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	stepA := &topology.LateralMovementStep{
		FromHostID: attackerA[0], ToHostID: targetHost,
		FromUserID: attackerA[1], ToUserID: userA,
	}
	stepA.SetVuln(byHostVuln("vulnerabilities/netcatShell.yml"))
	stepB := &topology.LateralMovementStep{
		FromHostID: attackerB[0], ToHostID: targetHost,
		FromUserID: attackerB[1], ToUserID: userB,
	}
	stepB.SetVuln(byHostVuln("vulnerabilities/netcatShell.yml"))

	// Keep the graph connected through a shared upstream identity.
	origin := [2]uuid.UUID{uuid.New(), uuid.New()}
	link := func(to [2]uuid.UUID) topology.Step {
		return &topology.LateralMovementStep{
			FromHostID: origin[0], ToHostID: to[0],
			FromUserID: origin[1], ToUserID: to[1],
		}
	}

	graph := Build([]*topology.AttackPath{
		topology.NewAttackPath(origin[0], origin[1], targetHost, userA,
			[]topology.Step{link(attackerA), stepA}),
		topology.NewAttackPath(origin[0], origin[1], targetHost, userB,
			[]topology.Step{link(attackerB), stepB}),
	})

	require.Equal(t, 5, graph.NodeCount())
	require.Equal(t, 4, graph.EdgeCount())

	PruneByHost(graph)

	assert.Equal(t, 4, graph.NodeCount(), "the two target nodes collapse into one")
	assert.Equal(t, 4, graph.EdgeCount(), "edges are redirected, never deleted")

	// Both by-host edges now terminate on the surviving node.
	var survivor *topology.AttackGraphNode
	for _, n := range graph.Nodes {
		if n.HostID == targetHost {
			survivor = n
		}
	}
	require.NotNil(t, survivor)
	assert.Len(t, graph.EdgesToNode(survivor.ID), 2)
}

func TestPruneByHostKeepsDistinctPlaybooksApart(t *testing.T) {
	origin := [2]uuid.UUID{uuid.New(), uuid.New()}
	targetHost := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	stepA := &topology.LateralMovementStep{
		FromHostID: origin[0], ToHostID: targetHost,
		FromUserID: origin[1], ToUserID: userA,
	}
	stepA.SetVuln(byHostVuln("vulnerabilities/netcatShell.yml"))
	stepB := &topology.LateralMovementStep{
		FromHostID: origin[0], ToHostID: targetHost,
		FromUserID: origin[1], ToUserID: userB,
	}
	stepB.SetVuln(byHostVuln("vulnerabilities/strutsVuln.yml"))

	graph := Build([]*topology.AttackPath{
		topology.NewAttackPath(origin[0], origin[1], targetHost, userA, []topology.Step{stepA}),
		topology.NewAttackPath(origin[0], origin[1], targetHost, userB, []topology.Step{stepB}),
	})

	PruneByHost(graph)
	assert.Equal(t, 3, graph.NodeCount(), "different actions are separate installs")
}

func TestPruneByHostMergesOverlappingGroups(t *testing.T) {
	// netcat lands on users A and B, struts on users B and C: user B's node
	// belongs to both merge groups, so the second group sees a node the
	// first already merged away. Group processing order depends on map
	// iteration, so repeat with fresh graphs.
	for i := 0; i < 32; i++ {
		origin := [2]uuid.UUID{uuid.New(), uuid.New()}
		targetHost := uuid.New()
		userA, userB, userC := uuid.New(), uuid.New(), uuid.New()

		hop := func(to uuid.UUID, playbook string) topology.Step {
			step := &topology.LateralMovementStep{
				FromHostID: origin[0], ToHostID: targetHost,
				FromUserID: origin[1], ToUserID: to,
			}
			step.SetVuln(byHostVuln(playbook))
			return step
		}
		path := func(to uuid.UUID, playbook string) *topology.AttackPath {
			return topology.NewAttackPath(origin[0], origin[1], targetHost, to,
				[]topology.Step{hop(to, playbook)})
		}

		graph := Build([]*topology.AttackPath{
			path(userA, "vulnerabilities/netcatShell.yml"),
			path(userB, "vulnerabilities/netcatShell.yml"),
			path(userB, "vulnerabilities/strutsVuln.yml"),
			path(userC, "vulnerabilities/strutsVuln.yml"),
		})
		require.Equal(t, 4, graph.NodeCount())

		var minID uuid.UUID
		for _, n := range graph.Nodes {
			if n.HostID != targetHost {
				continue
			}
			if minID == uuid.Nil || n.ID.String() < minID.String() {
				minID = n.ID
			}
		}

		PruneByHost(graph)

		assert.Equal(t, 2, graph.NodeCount(), "the three target nodes collapse transitively")
		assert.Equal(t, 4, graph.EdgeCount())

		var survivor *topology.AttackGraphNode
		for _, n := range graph.Nodes {
			if n.HostID == targetHost {
				require.Nil(t, survivor, "exactly one node survives on the host")
				survivor = n
			}
		}
		require.NotNil(t, survivor)
		assert.Equal(t, minID, survivor.ID, "smallest id survives")
		assert.Len(t, graph.EdgesToNode(survivor.ID), 4)

		nodes, edges := graph.NodeCount(), graph.EdgeCount()
		PruneByHost(graph)
		assert.Equal(t, nodes, graph.NodeCount())
		assert.Equal(t, edges, graph.EdgeCount())
	}
}

func TestPruneByHostIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("second application changes nothing", prop.ForAll(
		func(seed int64, hostCount, pathCount int) bool {
			rng := rand.New(rand.NewSource(seed))

			hosts := make([]uuid.UUID, hostCount)
			for i := range hosts {
				hosts[i] = uuid.New()
			}

			origin := [2]uuid.UUID{uuid.New(), uuid.New()}
			paths := make([]*topology.AttackPath, 0, pathCount)
			for p := 0; p < pathCount; p++ {
				current := origin
				var steps []topology.Step
				for h := 0; h < 1+rng.Intn(4); h++ {
					next := [2]uuid.UUID{hosts[rng.Intn(hostCount)], uuid.New()}
					step := &topology.LateralMovementStep{
						FromHostID: current[0], ToHostID: next[0],
						FromUserID: current[1], ToUserID: next[1],
					}
					if rng.Intn(2) == 0 {
						step.SetVuln(byHostVuln("vulnerabilities/netcatShell.yml"))
					}
					steps = append(steps, step)
					current = next
				}
				paths = append(paths, topology.NewAttackPath(
					origin[0], origin[1], current[0], current[1], steps))
			}

			graph := Build(paths)
			PruneByHost(graph)
			nodes, edges := graph.NodeCount(), graph.EdgeCount()
			PruneByHost(graph)
			return graph.NodeCount() == nodes && graph.EdgeCount() == edges
		},
		gen.Int64(),
		gen.IntRange(2, 5),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

func TestValidateConnectedGraph(t *testing.T) {
	a := [2]uuid.UUID{uuid.New(), uuid.New()}
	b := [2]uuid.UUID{uuid.New(), uuid.New()}
	c := [2]uuid.UUID{uuid.New(), uuid.New()}

	graph := Build([]*topology.AttackPath{chainPath([][2]uuid.UUID{a, b, c})})

	goals := []*topology.Goal{
		{TargetHostID: c[0], TargetUserID: c[1]},
	}
	assert.NoError(t, Validate(graph, goals))
}

func TestValidateNamesUnreachableNodes(t *testing.T) {
	a := [2]uuid.UUID{uuid.New(), uuid.New()}
	b := [2]uuid.UUID{uuid.New(), uuid.New()}

	graph := Build([]*topology.AttackPath{chainPath([][2]uuid.UUID{a, b})})

	island := &topology.AttackGraphNode{ID: uuid.New(), HostID: uuid.New(), UserID: uuid.New()}
	graph.AddNode(island)

	err := Validate(graph, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGraphDisconnected))
	// The scan starts from an arbitrary node, so either the island or the
	// chain shows up as unreached; both name at least one offender.
	assert.Contains(t, err.Error(), "unreachable nodes [")
}

func TestValidateRejectsMissingGoalNode(t *testing.T) {
	a := [2]uuid.UUID{uuid.New(), uuid.New()}
	b := [2]uuid.UUID{uuid.New(), uuid.New()}

	graph := Build([]*topology.AttackPath{chainPath([][2]uuid.UUID{a, b})})

	goals := []*topology.Goal{
		{TargetHostID: uuid.New(), TargetUserID: uuid.New()},
	}
	err := Validate(graph, goals)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGoalNodeMissing))
}

func TestValidateEmptyGraph(t *testing.T) {
	assert.NoError(t, Validate(topology.NewAttackGraph(), nil))
}
