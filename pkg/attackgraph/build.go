// Package attackgraph derives a shared attack graph from linear attack
// paths and deduplicates vulnerability installations per merge strategy.
//
// Nodes are (host, user) identities shared across paths, so the builder is
// path-order-independent: presenting paths in any order yields an
// isomorphic graph.
package attackgraph

import (
	"github.com/google/uuid"

	"github.com/bsinger98/MHBench/pkg/topology"
)

// identity keys the node-dedup map during construction.
type identity struct {
	hostID uuid.UUID
	userID uuid.UUID
}

// Build constructs an attack graph from linear attack paths. Each step
// becomes one edge carrying the step's vulnerability; nodes are created on
// first reference and reused by identity thereafter.
func Build(paths []*topology.AttackPath) *topology.AttackGraph {
	graph := topology.NewAttackGraph()
	byIdentity := make(map[identity]*topology.AttackGraphNode)

	for _, path := range paths {
		current := getOrCreateNode(graph, byIdentity, path.StartHostID, path.StartUserID)

		for _, step := range path.Steps {
			// Both variants land on (target host, target user): lateral
			// movement changes host, escalation changes user in place.
			next := getOrCreateNode(graph, byIdentity, step.TargetHostID(), step.TargetUserID())

			graph.AddEdge(&topology.AttackGraphEdge{
				ID:                uuid.New(),
				FromNodeID:        current.ID,
				ToNodeID:          next.ID,
				IsLateralMovement: step.IsLateralMovement(),
				Vulnerability:     step.Vuln(),
			})
			current = next
		}
	}

	return graph
}

func getOrCreateNode(graph *topology.AttackGraph, byIdentity map[identity]*topology.AttackGraphNode, hostID, userID uuid.UUID) *topology.AttackGraphNode {
	key := identity{hostID: hostID, userID: userID}
	if existing, ok := byIdentity[key]; ok {
		return existing
	}

	node := &topology.AttackGraphNode{
		ID:     uuid.New(),
		HostID: hostID,
		UserID: userID,
	}
	byIdentity[key] = node
	graph.AddNode(node)
	return node
}
