package attackgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bsinger98/MHBench/pkg/topology"
)

var (
	// ErrGraphDisconnected means the undirected closure of the graph is not
	// a single connected component.
	ErrGraphDisconnected = errors.New("attack graph is not connected")
	// ErrGoalNodeMissing means a goal's (host, user) identity has no node.
	ErrGoalNodeMissing = errors.New("goal node does not exist in attack graph")
)

// Validate checks the graph's structural invariants: the undirected closure
// of the edges connects every node, and every goal's (host, user) identity
// resolves to a node. Violations are fatal and name the offenders.
func Validate(graph *topology.AttackGraph, goals []*topology.Goal) error {
	if unreached := unreachableNodes(graph); len(unreached) > 0 {
		names := make([]string, 0, len(unreached))
		for _, id := range unreached {
			names = append(names, id.String())
		}
		return fmt.Errorf("%w: unreachable nodes [%s]", ErrGraphDisconnected, strings.Join(names, ", "))
	}

	for _, goal := range goals {
		if graph.NodeByIdentity(goal.TargetHostID, goal.TargetUserID) == nil {
			return fmt.Errorf("%w: host %s user %s",
				ErrGoalNodeMissing, goal.TargetHostID, goal.TargetUserID)
		}
	}
	return nil
}

// unreachableNodes scans the undirected view of the graph from an arbitrary
// start node and returns every node not reached, sorted by id.
func unreachableNodes(graph *topology.AttackGraph) []uuid.UUID {
	if graph.NodeCount() == 0 {
		return nil
	}

	undirected := make(map[uuid.UUID]map[uuid.UUID]struct{}, graph.NodeCount())
	for id := range graph.Nodes {
		undirected[id] = make(map[uuid.UUID]struct{})
	}
	for _, edge := range graph.AllEdges() {
		undirected[edge.FromNodeID][edge.ToNodeID] = struct{}{}
		undirected[edge.ToNodeID][edge.FromNodeID] = struct{}{}
	}

	var start uuid.UUID
	for id := range graph.Nodes {
		start = id
		break
	}

	visited := make(map[uuid.UUID]struct{}, graph.NodeCount())
	stack := []uuid.UUID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		for neighbor := range undirected[id] {
			if _, ok := visited[neighbor]; !ok {
				stack = append(stack, neighbor)
			}
		}
	}

	var unreached []uuid.UUID
	for id := range graph.Nodes {
		if _, ok := visited[id]; !ok {
			unreached = append(unreached, id)
		}
	}
	sort.Slice(unreached, func(i, j int) bool {
		return unreached[i].String() < unreached[j].String()
	})
	return unreached
}
