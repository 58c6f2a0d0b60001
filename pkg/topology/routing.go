package topology

import (
	"container/list"
)

// CanSubnetsCommunicate reports whether traffic may flow from one subnet to
// another. Same-subnet traffic is always allowed. Otherwise a matching
// connection must exist (bidirectional connections match both ways); when
// protocol and port are both given, the connection's allow-list must match.
func (t *Topology) CanSubnetsCommunicate(fromSubnet, toSubnet string, protocol *Protocol, port *int) bool {
	if fromSubnet == toSubnet {
		return true
	}

	for _, conn := range t.SubnetConnections {
		forward := conn.FromSubnet == fromSubnet && conn.ToSubnet == toSubnet
		reverse := conn.Bidirectional && conn.FromSubnet == toSubnet && conn.ToSubnet == fromSubnet
		if !forward && !reverse {
			continue
		}
		if protocol != nil && port != nil {
			return conn.AllowsTraffic(*protocol, *port)
		}
		return true
	}

	return false
}

// FindSubnetPath runs a breadth-first search over the subnet-connection
// graph and returns the shortest sequence of subnet names from one subnet
// to another, or nil if unreachable. Bidirectional connections count as
// edges both ways.
func (t *Topology) FindSubnetPath(fromSubnet, toSubnet string) []string {
	if fromSubnet == toSubnet {
		return []string{fromSubnet}
	}

	queue := list.New()
	queue.PushBack(fromSubnet)
	parent := map[string]string{fromSubnet: fromSubnet}

	for queue.Len() > 0 {
		current := queue.Remove(queue.Front()).(string)

		for _, conn := range t.SubnetConnections {
			var next string
			switch {
			case conn.FromSubnet == current:
				next = conn.ToSubnet
			case conn.Bidirectional && conn.ToSubnet == current:
				next = conn.FromSubnet
			default:
				continue
			}

			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = current

			if next == toSubnet {
				return reconstructSubnetPath(parent, fromSubnet, toSubnet)
			}
			queue.PushBack(next)
		}
	}

	return nil
}

// ConnectedSubnets returns the names of subnets directly connected to the
// given subnet.
func (t *Topology) ConnectedSubnets(subnetName string) map[string]struct{} {
	connected := make(map[string]struct{})
	for _, conn := range t.SubnetConnections {
		if conn.FromSubnet == subnetName {
			connected[conn.ToSubnet] = struct{}{}
		} else if conn.Bidirectional && conn.ToSubnet == subnetName {
			connected[conn.FromSubnet] = struct{}{}
		}
	}
	return connected
}

// reconstructSubnetPath walks parent pointers back from the target.
func reconstructSubnetPath(parent map[string]string, from, to string) []string {
	var reversed []string
	for node := to; node != from; node = parent[node] {
		reversed = append(reversed, node)
	}
	reversed = append(reversed, from)

	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}
