package topology

import (
	"fmt"
)

// Validate checks the topology's construction-time invariants. Violations
// return an error naming the offending entity; nothing is silently dropped
// or auto-corrected.
func (t *Topology) Validate() error {
	if err := t.validateAttackPaths(); err != nil {
		return err
	}
	if err := t.validateSubnetConnections(); err != nil {
		return err
	}
	return t.validateExternalSubnet()
}

// validateAttackPaths checks that every path references known hosts (the
// attacker host counts) and is continuous.
func (t *Topology) validateAttackPaths() error {
	knownHosts := make(map[string]struct{})
	for _, h := range t.AllHosts(true) {
		knownHosts[h.ID.String()] = struct{}{}
	}

	for _, path := range t.AttackPaths {
		for hostID := range path.AllHostIDs() {
			if _, ok := knownHosts[hostID.String()]; !ok {
				return newError("Validate", "attack path", path.ID.String(),
					fmt.Errorf("%w: %s", ErrUnknownPathHost, hostID))
			}
		}

		if !path.ValidateContinuity() {
			return newError("Validate", "attack path", path.ID.String(), ErrDiscontinuousPath)
		}
	}
	return nil
}

// validateSubnetConnections checks that every connection references
// existing subnets.
func (t *Topology) validateSubnetConnections() error {
	known := make(map[string]struct{})
	for _, s := range t.AllSubnets() {
		known[s.Name] = struct{}{}
	}

	for _, conn := range t.SubnetConnections {
		if _, ok := known[conn.FromSubnet]; !ok {
			return newError("Validate", "subnet connection", conn.FromSubnet, ErrDanglingSubnetRef)
		}
		if _, ok := known[conn.ToSubnet]; !ok {
			return newError("Validate", "subnet connection", conn.ToSubnet, ErrDanglingSubnetRef)
		}
	}
	return nil
}

// validateExternalSubnet checks that exactly one subnet is external.
func (t *Topology) validateExternalSubnet() error {
	count := 0
	for _, s := range t.AllSubnets() {
		if s.External {
			count++
		}
	}
	switch count {
	case 1:
		return nil
	case 0:
		return newError("Validate", "topology", t.Name, ErrNoExternalSubnet)
	default:
		return newError("Validate", "topology", t.Name,
			fmt.Errorf("expected exactly one external subnet, found %d", count))
	}
}
