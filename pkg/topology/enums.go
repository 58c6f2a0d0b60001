package topology

// OSType identifies the base image family a host boots from.
type OSType string

const (
	OSUbuntu20  OSType = "Ubuntu20"
	OSKaliLinux OSType = "KaliLinux"
)

// FlavorType identifies the compute flavor a host is sized with.
type FlavorType string

const (
	FlavorTiny   FlavorType = "p2.tiny"
	FlavorSmall  FlavorType = "p2.small"
	FlavorMedium FlavorType = "p2.medium"
	FlavorLarge  FlavorType = "p2.large"
)

// Protocol is a network protocol on a subnet connection allow-list.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
)

// VulnerabilityType classifies what an injected vulnerability enables.
type VulnerabilityType string

const (
	VulnLateralMovement     VulnerabilityType = "lateral_movement"
	VulnPrivilegeEscalation VulnerabilityType = "privilege_escalation"
)

// MergeStrategy controls how installations of a vulnerability are
// deduplicated during attack-graph pruning. The strategy, not the
// vulnerability identity, drives graph deduplication.
type MergeStrategy string

const (
	// MergeNone means each use requires a separate install.
	MergeNone MergeStrategy = "no_merge"
	// MergeByHost means one install per host suffices regardless of source.
	MergeByHost MergeStrategy = "by_host"
	// MergeByTargetHost means one install on the target host serves many sources.
	MergeByTargetHost MergeStrategy = "by_target_host"
	// MergeByEdge means one install per (from host, to host) pair.
	MergeByEdge MergeStrategy = "by_edge"
)

// GoalType classifies an attacker objective.
type GoalType string

const (
	GoalDataExfiltration GoalType = "data_exfiltration"
	GoalHostAccess       GoalType = "host_access"
)
