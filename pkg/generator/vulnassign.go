package generator

import (
	"errors"
	"math/rand"

	"github.com/bsinger98/MHBench/pkg/topology"
)

// Known vulnerability descriptors. The playbook path is an opaque action
// reference resolved by the configuration runner.
var (
	ApacheStruts = topology.Vulnerability{
		Type:          topology.VulnLateralMovement,
		Playbook:      "vulnerabilities/apacheStruts/setupStruts.yml",
		MergeStrategy: topology.MergeByHost,
	}
	NetcatShell = topology.Vulnerability{
		Type:          topology.VulnLateralMovement,
		Playbook:      "vulnerabilities/NetcatShell.yml",
		MergeStrategy: topology.MergeByHost,
	}
	MisconfiguredSSHKeys = topology.Vulnerability{
		Type:          topology.VulnLateralMovement,
		Playbook:      "deployment_instance/setup_server_ssh_keys/setup_ssh_keys.yml",
		MergeStrategy: topology.MergeByHost,
	}
	SudoBaron = topology.Vulnerability{
		Type:          topology.VulnPrivilegeEscalation,
		Playbook:      "vulnerabilities/privledge_escalation/sudobaron/sudobaron.yml",
		MergeStrategy: topology.MergeByHost,
	}
	WriteablePasswd = topology.Vulnerability{
		Type:          topology.VulnPrivilegeEscalation,
		Playbook:      "vulnerabilities/privledge_escalation/writeablePasswd/writeablePasswd.yml",
		MergeStrategy: topology.MergeByHost,
	}
)

// ErrNoCandidateVuln means the policy produced no vulnerability for a step.
var ErrNoCandidateVuln = errors.New("no candidate vulnerability for step")

// SelectionPolicy chooses a vulnerability for one step, keyed by the step's
// kind and its position in the path. Returning nil skips the step.
type SelectionPolicy interface {
	Select(step topology.Step, position int, rng *rand.Rand) *topology.Vulnerability
}

// RandomCatalogPolicy draws uniformly from fixed catalogs per step kind.
type RandomCatalogPolicy struct {
	LateralMovement     []topology.Vulnerability
	PrivilegeEscalation []topology.Vulnerability
}

// DefaultPolicy draws from the full known catalog.
func DefaultPolicy() *RandomCatalogPolicy {
	return &RandomCatalogPolicy{
		LateralMovement:     []topology.Vulnerability{ApacheStruts, NetcatShell, MisconfiguredSSHKeys},
		PrivilegeEscalation: []topology.Vulnerability{SudoBaron, WriteablePasswd},
	}
}

// Select implements SelectionPolicy.
func (p *RandomCatalogPolicy) Select(step topology.Step, _ int, rng *rand.Rand) *topology.Vulnerability {
	catalog := p.PrivilegeEscalation
	if step.IsLateralMovement() {
		catalog = p.LateralMovement
	}
	if len(catalog) == 0 {
		return nil
	}
	v := catalog[rng.Intn(len(catalog))]
	return &v
}

// VulnerabilityAssigner fills each step's vulnerability slot so every step
// carries a merge-strategy tag before graph construction.
type VulnerabilityAssigner struct {
	Policy SelectionPolicy
}

// NewVulnerabilityAssigner uses the default catalog policy.
func NewVulnerabilityAssigner() *VulnerabilityAssigner {
	return &VulnerabilityAssigner{Policy: DefaultPolicy()}
}

// Assign walks every path of the topology and attaches a vulnerability to
// each step, binding the step's concrete endpoints into the descriptor so
// the playbook can address them.
func (a *VulnerabilityAssigner) Assign(topo *topology.Topology, rng *rand.Rand) error {
	for _, path := range topo.AttackPaths {
		for i, step := range path.Steps {
			vuln := a.Policy.Select(step, i, rng)
			if vuln == nil {
				return ErrNoCandidateVuln
			}
			bindStepEndpoints(topo, step, vuln)
			step.SetVuln(vuln)
		}
	}
	return nil
}

// bindStepEndpoints copies the step's resolved host addresses and usernames
// into the vulnerability parameters.
func bindStepEndpoints(topo *topology.Topology, step topology.Step, vuln *topology.Vulnerability) {
	if from := topo.HostByID(step.SourceHostID(), true); from != nil {
		vuln.FromHostIP = from.IPAddress
	}
	if to := topo.HostByID(step.TargetHostID(), true); to != nil {
		vuln.ToHostIP = to.IPAddress
	}
	if u := topo.UserByID(step.SourceUserID(), true); u != nil {
		vuln.FromUser = u.Username
	}
	if u := topo.UserByID(step.TargetUserID(), true); u != nil {
		vuln.ToUser = u.Username
	}
}
