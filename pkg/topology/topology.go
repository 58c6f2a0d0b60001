package topology

import (
	"github.com/google/uuid"
)

// Topology is the root aggregate: the full specification of one cyber-range
// instance. It owns every child entity; cloud resources created from it do
// not mutate it.
type Topology struct {
	Name              string              `json:"name" validate:"required"`
	Networks          []*Network          `json:"networks"`
	SubnetConnections []*SubnetConnection `json:"subnet_connections,omitempty"`
	Goals             []*Goal             `json:"goals,omitempty"`
	AttackPaths       []*AttackPath       `json:"attack_paths,omitempty"`
	AttackGraph       *AttackGraph        `json:"attack_graph,omitempty"`
	AttackerHost      *Host               `json:"attacker_host,omitempty"`
}

// AllHosts returns every host across all networks. The attacker host is
// outside the containment hierarchy and only included when asked for.
func (t *Topology) AllHosts(includeAttacker bool) []*Host {
	var hosts []*Host
	for _, network := range t.Networks {
		for _, subnet := range network.Subnets {
			hosts = append(hosts, subnet.Hosts...)
		}
	}
	if includeAttacker && t.AttackerHost != nil {
		hosts = append(hosts, t.AttackerHost)
	}
	return hosts
}

// AllSubnets returns every subnet across all networks.
func (t *Topology) AllSubnets() []*Subnet {
	var subnets []*Subnet
	for _, network := range t.Networks {
		subnets = append(subnets, network.Subnets...)
	}
	return subnets
}

// HostByName finds a host by name.
func (t *Topology) HostByName(name string) *Host {
	for _, h := range t.AllHosts(false) {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// HostByID finds a host by id.
func (t *Topology) HostByID(id uuid.UUID, includeAttacker bool) *Host {
	for _, h := range t.AllHosts(includeAttacker) {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// UserByID finds a user by id across all hosts.
func (t *Topology) UserByID(id uuid.UUID, includeAttacker bool) *User {
	for _, h := range t.AllHosts(includeAttacker) {
		if u := h.UserByID(id); u != nil {
			return u
		}
	}
	return nil
}

// HostForUser finds the host carrying the given user.
func (t *Topology) HostForUser(id uuid.UUID) *Host {
	for _, h := range t.AllHosts(false) {
		if h.UserByID(id) != nil {
			return h
		}
	}
	return nil
}

// SubnetByName finds a subnet by name.
func (t *Topology) SubnetByName(name string) *Subnet {
	for _, s := range t.AllSubnets() {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SubnetByID finds a subnet by id.
func (t *Topology) SubnetByID(id uuid.UUID) *Subnet {
	for _, s := range t.AllSubnets() {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SubnetForHost finds the subnet containing the given host.
func (t *Topology) SubnetForHost(host *Host) *Subnet {
	for _, s := range t.AllSubnets() {
		for _, h := range s.Hosts {
			if h.ID == host.ID {
				return s
			}
		}
	}
	return nil
}

// ExternalSubnet returns the attacker's foothold subnet, or nil if none.
func (t *Topology) ExternalSubnet() *Subnet {
	for _, s := range t.AllSubnets() {
		if s.External {
			return s
		}
	}
	return nil
}

// Normalize applies post-construction fixups: every host (attacker
// included) gets a root-equivalent admin user if none exists. Idempotent.
func (t *Topology) Normalize() {
	for _, h := range t.AllHosts(true) {
		h.ensureRootUser()
	}
}

// Finalize normalizes and validates the topology. Call after construction
// and after document load.
func (t *Topology) Finalize() error {
	t.Normalize()
	return t.Validate()
}

// ApplyVulnerabilities folds each attack-graph edge's vulnerability back
// into the host the edge installs on (its target node's host).
func (t *Topology) ApplyVulnerabilities() error {
	if t.AttackGraph == nil {
		return newError("ApplyVulnerabilities", "topology", t.Name, ErrNoAttackGraph)
	}

	for _, edge := range t.AttackGraph.AllEdges() {
		if edge.Vulnerability == nil {
			return newError("ApplyVulnerabilities", "edge", edge.ID.String(), ErrMissingVuln)
		}

		node := t.AttackGraph.NodeByID(edge.ToNodeID)
		if node == nil {
			return newError("ApplyVulnerabilities", "node", edge.ToNodeID.String(), ErrHostNotFound)
		}

		host := t.HostByID(node.HostID, false)
		if host == nil {
			return newError("ApplyVulnerabilities", "host", node.HostID.String(), ErrHostNotFound)
		}
		host.Vulnerabilities = append(host.Vulnerabilities, edge.Vulnerability)
	}
	return nil
}
