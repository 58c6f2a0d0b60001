// Package generator produces random range topologies and the attack paths
// through them. All randomness is drawn from an injected source, so a fixed
// seed reproduces identical output byte for byte.
package generator

import (
	"errors"
	"math/rand"

	"github.com/bsinger98/MHBench/pkg/topology"
)

var (
	// ErrNoAttackerHost means the topology has no attacker host to start from.
	ErrNoAttackerHost = errors.New("attacker host not found")
	// ErrGoalHostNotFound means a goal references a host missing from the topology.
	ErrGoalHostNotFound = errors.New("goal target host not found")
)

// PathGenerator builds one linear attack path per goal, hopping subnet by
// subnet from the attacker's external foothold. Paths may share hosts and
// identities across goals; the graph builder merges them later.
type PathGenerator struct{}

// Generate returns one attack path per goal, in goal insertion order.
// Returns nil when the topology has no external subnet or it holds no
// hosts, since there is no foothold to start from.
func (g *PathGenerator) Generate(topo *topology.Topology, rng *rand.Rand) ([]*topology.AttackPath, error) {
	external := topo.ExternalSubnet()
	if external == nil || len(external.Hosts) == 0 {
		return nil, nil
	}

	attacker := topo.AttackerHost
	if attacker == nil {
		return nil, ErrNoAttackerHost
	}
	attackerUser, err := attacker.RootUser()
	if err != nil {
		return nil, err
	}

	paths := make([]*topology.AttackPath, 0, len(topo.Goals))
	for _, goal := range topo.Goals {
		path, err := g.generateForGoal(topo, goal, attacker, attackerUser, external, rng)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *PathGenerator) generateForGoal(
	topo *topology.Topology,
	goal *topology.Goal,
	attacker *topology.Host,
	attackerUser *topology.User,
	external *topology.Subnet,
	rng *rand.Rand,
) (*topology.AttackPath, error) {
	targetHost := topo.HostByID(goal.TargetHostID, false)
	if targetHost == nil {
		return nil, ErrGoalHostNotFound
	}
	targetUser, err := resolveTargetUser(goal, targetHost)
	if err != nil {
		return nil, err
	}

	var steps []topology.Step

	// Foothold: a random host and user in the external subnet.
	currentHost := external.Hosts[rng.Intn(len(external.Hosts))]
	currentUser := currentHost.Users[rng.Intn(len(currentHost.Users))]
	steps = append(steps, &topology.LateralMovementStep{
		FromHostID: attacker.ID,
		ToHostID:   currentHost.ID,
		FromUserID: attackerUser.ID,
		ToUserID:   currentUser.ID,
	})

	// Walk the subnet route, picking one pivot host per subnet.
	targetSubnet := topo.SubnetForHost(targetHost)
	subnetPath := topo.FindSubnetPath(external.Name, targetSubnet.Name)
	if subnetPath == nil {
		subnetPath = []string{external.Name}
	}

	for _, subnetName := range subnetPath[1:] {
		next := topo.SubnetByName(subnetName)
		if next == nil || len(next.Hosts) == 0 {
			continue
		}

		nextHost := next.Hosts[rng.Intn(len(next.Hosts))]
		nextUser := preferredUser(nextHost)

		steps = append(steps, &topology.LateralMovementStep{
			FromHostID: currentHost.ID,
			ToHostID:   nextHost.ID,
			FromUserID: currentUser.ID,
			ToUserID:   nextUser.ID,
		})
		currentHost, currentUser = nextHost, nextUser
	}

	// Final hop inside the target's subnet if the pivot landed elsewhere.
	if currentHost.ID != targetHost.ID {
		nextUser := preferredUser(targetHost)
		steps = append(steps, &topology.LateralMovementStep{
			FromHostID: currentHost.ID,
			ToHostID:   targetHost.ID,
			FromUserID: currentUser.ID,
			ToUserID:   nextUser.ID,
		})
		currentHost, currentUser = targetHost, nextUser
	}

	// Escalate if the acting user is not yet the goal's target user.
	if currentUser.ID != targetUser.ID {
		steps = append(steps, &topology.PrivilegeEscalationStep{
			HostID:     targetHost.ID,
			FromUserID: currentUser.ID,
			ToUserID:   targetUser.ID,
		})
		currentUser = targetUser
	}

	// Degenerate case: start identity already equals the target identity.
	// Round-trip through root so the path still carries at least one step.
	if len(steps) == 0 {
		rootUser, err := targetHost.RootUser()
		if err != nil {
			return nil, err
		}
		if currentUser.ID != rootUser.ID {
			steps = append(steps, &topology.PrivilegeEscalationStep{
				HostID:     targetHost.ID,
				FromUserID: currentUser.ID,
				ToUserID:   rootUser.ID,
			})
			currentUser = rootUser
		}
		if currentUser.ID != targetUser.ID {
			steps = append(steps, &topology.PrivilegeEscalationStep{
				HostID:     targetHost.ID,
				FromUserID: currentUser.ID,
				ToUserID:   targetUser.ID,
			})
		}
	}

	return topology.NewAttackPath(
		attacker.ID, attackerUser.ID, targetHost.ID, targetUser.ID, steps), nil
}

// resolveTargetUser picks the goal's explicit user when it names one that
// exists on the target host, falling back to the root-equivalent user.
func resolveTargetUser(goal *topology.Goal, targetHost *topology.Host) (*topology.User, error) {
	if goal.HostUser != "" {
		if u := targetHost.UserByName(goal.HostUser); u != nil {
			return u, nil
		}
	}
	return targetHost.RootUser()
}

// preferredUser favors a non-root account when the host has one, so
// generated paths exercise escalation rather than landing on root directly.
func preferredUser(h *topology.Host) *topology.User {
	if u := h.NonRootUser(); u != nil {
		return u
	}
	root, _ := h.RootUser()
	return root
}
