package topology

import (
	"encoding/json"

	"github.com/google/uuid"
)

// AttackPath is an ordered, non-empty sequence of steps from a start
// (host, user) identity to a target (host, user) identity.
type AttackPath struct {
	ID           uuid.UUID `json:"id"`
	StartHostID  uuid.UUID `json:"start_host_id"`
	StartUserID  uuid.UUID `json:"start_user_id"`
	TargetHostID uuid.UUID `json:"target_host_id"`
	TargetUserID uuid.UUID `json:"target_user_id"`
	Steps        []Step    `json:"-"`
}

// NewAttackPath creates a path between the given identities.
func NewAttackPath(startHost, startUser, targetHost, targetUser uuid.UUID, steps []Step) *AttackPath {
	return &AttackPath{
		ID:           uuid.New(),
		StartHostID:  startHost,
		StartUserID:  startUser,
		TargetHostID: targetHost,
		TargetUserID: targetUser,
		Steps:        steps,
	}
}

// HopHostIDs returns the ordered list of hosts traversed, start included.
func (p *AttackPath) HopHostIDs() []uuid.UUID {
	hops := make([]uuid.UUID, 0, len(p.Steps)+1)
	hops = append(hops, p.StartHostID)
	for _, step := range p.Steps {
		hops = append(hops, step.TargetHostID())
	}
	return hops
}

// AllHostIDs returns the set of hosts involved in this path.
func (p *AttackPath) AllHostIDs() map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{})
	for _, id := range p.HopHostIDs() {
		set[id] = struct{}{}
	}
	return set
}

// ValidateContinuity reports whether the path is continuous: the first step
// leaves the start identity, every step's target identity feeds the next
// step's source identity, and the last step lands on the target identity.
// An escalation immediately followed by a movement additionally requires
// the escalated-to user to equal the movement's source user.
func (p *AttackPath) ValidateContinuity() bool {
	if len(p.Steps) == 0 {
		return false
	}

	first := p.Steps[0]
	if first.SourceHostID() != p.StartHostID || first.SourceUserID() != p.StartUserID {
		return false
	}

	for i := 0; i < len(p.Steps)-1; i++ {
		current, next := p.Steps[i], p.Steps[i+1]

		if current.TargetHostID() != next.SourceHostID() {
			return false
		}
		if current.TargetUserID() != next.SourceUserID() {
			return false
		}
	}

	last := p.Steps[len(p.Steps)-1]
	if last.TargetHostID() != p.TargetHostID || last.TargetUserID() != p.TargetUserID {
		return false
	}

	return true
}

// attackPathDoc is the wire form with tagged step envelopes.
type attackPathDoc struct {
	ID           uuid.UUID         `json:"id"`
	StartHostID  uuid.UUID         `json:"start_host_id"`
	StartUserID  uuid.UUID         `json:"start_user_id"`
	TargetHostID uuid.UUID         `json:"target_host_id"`
	TargetUserID uuid.UUID         `json:"target_user_id"`
	Steps        []json.RawMessage `json:"steps"`
}

// MarshalJSON serializes steps through the tagged envelope.
func (p *AttackPath) MarshalJSON() ([]byte, error) {
	doc := attackPathDoc{
		ID:           p.ID,
		StartHostID:  p.StartHostID,
		StartUserID:  p.StartUserID,
		TargetHostID: p.TargetHostID,
		TargetUserID: p.TargetUserID,
		Steps:        make([]json.RawMessage, 0, len(p.Steps)),
	}
	for _, step := range p.Steps {
		raw, err := marshalStep(step)
		if err != nil {
			return nil, err
		}
		doc.Steps = append(doc.Steps, raw)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reconstructs steps from the tagged envelope.
func (p *AttackPath) UnmarshalJSON(data []byte) error {
	var doc attackPathDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	p.ID = doc.ID
	p.StartHostID = doc.StartHostID
	p.StartUserID = doc.StartUserID
	p.TargetHostID = doc.TargetHostID
	p.TargetUserID = doc.TargetUserID
	p.Steps = make([]Step, 0, len(doc.Steps))
	for _, raw := range doc.Steps {
		step, err := unmarshalStep(raw)
		if err != nil {
			return err
		}
		p.Steps = append(p.Steps, step)
	}
	return nil
}
