package topology

// Vulnerability describes one injected weakness. Playbook is an opaque
// action reference resolved by the configuration runner; MergeStrategy
// drives attack-graph deduplication.
type Vulnerability struct {
	Type          VulnerabilityType `json:"type" validate:"required"`
	Playbook      string            `json:"playbook" validate:"required"`
	MergeStrategy MergeStrategy     `json:"merge_strategy"`
	InternalOnly  bool              `json:"internal_only,omitempty"`

	// Step bindings filled in by the assigner so the playbook can address
	// the concrete endpoints of the step it was attached to.
	FromHostIP string `json:"from_host_ip,omitempty"`
	ToHostIP   string `json:"to_host_ip,omitempty"`
	FromUser   string `json:"from_user,omitempty"`
	ToUser     string `json:"to_user,omitempty"`
}

// Params flattens the vulnerability into playbook parameters.
func (v *Vulnerability) Params() map[string]string {
	return map[string]string{
		"type":         string(v.Type),
		"from_host_ip": v.FromHostIP,
		"to_host_ip":   v.ToHostIP,
		"from_user":    v.FromUser,
		"to_user":      v.ToUser,
	}
}
