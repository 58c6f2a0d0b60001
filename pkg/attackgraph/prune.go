package attackgraph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/bsinger98/MHBench/pkg/topology"
)

// installSite keys the by-host merge groups: a vulnerability with the
// by-host strategy needs one install per (host, kind, action) regardless of
// which node on the host the edge lands on.
type installSite struct {
	hostID   uuid.UUID
	vulnType topology.VulnerabilityType
	playbook string
}

// PruneByHost collapses nodes that by-host vulnerability edges land on:
// when edges carrying the same by-host vulnerability target distinct nodes
// on one host, the nodes merge into a single representative and every edge
// endpoint referencing a merged node is rewritten to it. Edges are never
// deleted, only redirected, so which attacker reaches which goal is
// preserved while the install count shrinks.
//
// Merge groups can overlap: one node may be targeted by two different
// by-host actions whose groups each span further nodes. A merge then
// redirects the second action's edges onto the representative, forming a
// new group, so rounds run until no group merges. The representative of a
// group is the surviving node with the smallest id and groups are visited
// in sorted site order, so the outcome is deterministic regardless of path
// insertion or map iteration order. Pruning is idempotent: a second
// application changes neither node nor edge count.
func PruneByHost(graph *topology.AttackGraph) *topology.AttackGraph {
	for pruneOnce(graph) {
	}
	return graph
}

// pruneOnce performs one round of by-host merges, reporting whether any
// node merged.
func pruneOnce(graph *topology.AttackGraph) bool {
	if graph.EdgeCount() == 0 {
		return false
	}

	groups := make(map[installSite]map[uuid.UUID]struct{})
	for _, edge := range graph.AllEdges() {
		vuln := edge.Vulnerability
		if vuln == nil || vuln.MergeStrategy != topology.MergeByHost {
			continue
		}
		toNode := graph.NodeByID(edge.ToNodeID)
		if toNode == nil {
			continue
		}

		site := installSite{hostID: toNode.HostID, vulnType: vuln.Type, playbook: vuln.Playbook}
		if groups[site] == nil {
			groups[site] = make(map[uuid.UUID]struct{})
		}
		groups[site][toNode.ID] = struct{}{}
	}

	sites := make([]installSite, 0, len(groups))
	for site := range groups {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		a, b := sites[i], sites[j]
		if a.hostID != b.hostID {
			return a.hostID.String() < b.hostID.String()
		}
		if a.vulnType != b.vulnType {
			return a.vulnType < b.vulnType
		}
		return a.playbook < b.playbook
	})

	merged := false
	for _, site := range sites {
		// An earlier group this round may have merged a member away.
		nodeIDs := make([]uuid.UUID, 0, len(groups[site]))
		for id := range groups[site] {
			if graph.NodeByID(id) != nil {
				nodeIDs = append(nodeIDs, id)
			}
		}
		if len(nodeIDs) < 2 {
			continue
		}
		sort.Slice(nodeIDs, func(i, j int) bool {
			return nodeIDs[i].String() < nodeIDs[j].String()
		})

		representative := graph.NodeByID(nodeIDs[0])
		for _, id := range nodeIDs[1:] {
			mergeNode(graph, representative, graph.NodeByID(id))
		}
		merged = true
	}
	return merged
}

// mergeNode rewrites every edge endpoint referencing merged to point at the
// representative, then removes merged from the arena. No dangling handle
// stays reachable.
func mergeNode(graph *topology.AttackGraph, representative, merged *topology.AttackGraphNode) {
	for _, edge := range graph.EdgesToNode(merged.ID) {
		edge.ToNodeID = representative.ID
	}
	for _, edge := range graph.EdgesFromNode(merged.ID) {
		edge.FromNodeID = representative.ID
		graph.Adjacency[representative.ID] = append(graph.Adjacency[representative.ID], edge.ID)
	}
	graph.RemoveNode(merged.ID)
}
