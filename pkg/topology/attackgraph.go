package topology

import (
	"github.com/google/uuid"
)

// AttackGraphNode is a (host, user) identity. Nodes are created on first
// reference and deduplicated by identity thereafter.
type AttackGraphNode struct {
	ID     uuid.UUID `json:"id"`
	HostID uuid.UUID `json:"host_id"`
	UserID uuid.UUID `json:"user_id"`
}

// AttackGraphEdge is one step transition carrying its vulnerability.
type AttackGraphEdge struct {
	ID                uuid.UUID      `json:"id"`
	FromNodeID        uuid.UUID      `json:"from_node_id"`
	ToNodeID          uuid.UUID      `json:"to_node_id"`
	IsLateralMovement bool           `json:"is_lateral_movement"`
	Vulnerability     *Vulnerability `json:"vulnerability,omitempty"`
}

// AttackGraph is an arena of nodes and edges addressed by stable ids, with
// adjacency recorded per from-node. It is built once from the finalized
// attack paths, mutated in place exactly once by the dedup pass, then
// frozen.
type AttackGraph struct {
	Nodes     map[uuid.UUID]*AttackGraphNode `json:"nodes"`
	Edges     map[uuid.UUID]*AttackGraphEdge `json:"edges"`
	Adjacency map[uuid.UUID][]uuid.UUID      `json:"adjacency"`
}

// NewAttackGraph creates an empty graph.
func NewAttackGraph() *AttackGraph {
	return &AttackGraph{
		Nodes:     make(map[uuid.UUID]*AttackGraphNode),
		Edges:     make(map[uuid.UUID]*AttackGraphEdge),
		Adjacency: make(map[uuid.UUID][]uuid.UUID),
	}
}

// AllEdges returns every edge in the graph.
func (g *AttackGraph) AllEdges() []*AttackGraphEdge {
	edges := make([]*AttackGraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, e)
	}
	return edges
}

// NodeByID returns the node with the given id, or nil.
func (g *AttackGraph) NodeByID(id uuid.UUID) *AttackGraphNode {
	return g.Nodes[id]
}

// NodeByIdentity returns the node for the (host, user) identity, or nil.
func (g *AttackGraph) NodeByIdentity(hostID, userID uuid.UUID) *AttackGraphNode {
	for _, n := range g.Nodes {
		if n.HostID == hostID && n.UserID == userID {
			return n
		}
	}
	return nil
}

// EdgesFromNode returns the edges leaving the given node.
func (g *AttackGraph) EdgesFromNode(nodeID uuid.UUID) []*AttackGraphEdge {
	var edges []*AttackGraphEdge
	for _, e := range g.Edges {
		if e.FromNodeID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// EdgesToNode returns the edges entering the given node.
func (g *AttackGraph) EdgesToNode(nodeID uuid.UUID) []*AttackGraphEdge {
	var edges []*AttackGraphEdge
	for _, e := range g.Edges {
		if e.ToNodeID == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// AddNode inserts a node into the arena.
func (g *AttackGraph) AddNode(n *AttackGraphNode) {
	g.Nodes[n.ID] = n
}

// AddEdge inserts an edge and records it in the from-node's adjacency.
func (g *AttackGraph) AddEdge(e *AttackGraphEdge) {
	g.Edges[e.ID] = e
	g.Adjacency[e.FromNodeID] = append(g.Adjacency[e.FromNodeID], e.ID)
}

// RemoveNode deletes a node and its adjacency entry. Callers must have
// rewritten every edge endpoint referencing the node first; the arena never
// keeps a dangling handle reachable.
func (g *AttackGraph) RemoveNode(id uuid.UUID) {
	delete(g.Nodes, id)
	delete(g.Adjacency, id)
}

// NodeCount returns the number of nodes.
func (g *AttackGraph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *AttackGraph) EdgeCount() int { return len(g.Edges) }
