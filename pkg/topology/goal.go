package topology

import (
	"github.com/google/uuid"
)

// Goal is an attacker objective: reach the target (host, user) identity.
// Data-exfiltration goals additionally carry the bait-placement action run
// during the final configuration phase.
type Goal struct {
	Type         GoalType  `json:"type" validate:"required"`
	TargetHostID uuid.UUID `json:"target_host_id" validate:"required"`
	TargetUserID uuid.UUID `json:"target_user_id" validate:"required"`

	// Data-exfiltration fields.
	Playbook string `json:"playbook,omitempty"`
	HostIP   string `json:"host_ip,omitempty"`
	SrcPath  string `json:"src_path,omitempty"`
	DstPath  string `json:"dst_path,omitempty"`
	HostUser string `json:"host_user,omitempty"`
}

// DataExfiltrationPlaybook is the default bait-placement action.
const DataExfiltrationPlaybook = "goals/data/addData.yml"

// Params flattens the goal into playbook parameters.
func (g *Goal) Params() map[string]string {
	return map[string]string{
		"type":      string(g.Type),
		"host_ip":   g.HostIP,
		"src_path":  g.SrcPath,
		"dst_path":  g.DstPath,
		"host_user": g.HostUser,
	}
}
