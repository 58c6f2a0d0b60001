package topology

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Step is one attacker action in a path. It is a closed sum: either a
// LateralMovementStep between two hosts or a PrivilegeEscalationStep
// between two users on one host. The accessors expose the shared
// source/target identity contract.
type Step interface {
	SourceHostID() uuid.UUID
	TargetHostID() uuid.UUID
	SourceUserID() uuid.UUID
	TargetUserID() uuid.UUID
	IsLateralMovement() bool
	Vuln() *Vulnerability
	SetVuln(v *Vulnerability)
}

// LateralMovementStep moves the attacker from one host to another.
type LateralMovementStep struct {
	FromHostID    uuid.UUID      `json:"from_host_id"`
	ToHostID      uuid.UUID      `json:"to_host_id"`
	FromUserID    uuid.UUID      `json:"from_user_id"`
	ToUserID      uuid.UUID      `json:"to_user_id"`
	Vulnerability *Vulnerability `json:"vulnerability,omitempty"`
}

func (s *LateralMovementStep) SourceHostID() uuid.UUID    { return s.FromHostID }
func (s *LateralMovementStep) TargetHostID() uuid.UUID    { return s.ToHostID }
func (s *LateralMovementStep) SourceUserID() uuid.UUID    { return s.FromUserID }
func (s *LateralMovementStep) TargetUserID() uuid.UUID    { return s.ToUserID }
func (s *LateralMovementStep) IsLateralMovement() bool    { return true }
func (s *LateralMovementStep) Vuln() *Vulnerability       { return s.Vulnerability }
func (s *LateralMovementStep) SetVuln(v *Vulnerability)   { s.Vulnerability = v }

// Validate checks the variant's local invariant: hosts must differ.
func (s *LateralMovementStep) Validate() error {
	if s.FromHostID == s.ToHostID {
		return errors.New("lateral movement must be between different hosts")
	}
	return nil
}

// PrivilegeEscalationStep moves the attacker to another user on one host.
type PrivilegeEscalationStep struct {
	HostID        uuid.UUID      `json:"host_id"`
	FromUserID    uuid.UUID      `json:"from_user_id"`
	ToUserID      uuid.UUID      `json:"to_user_id"`
	Vulnerability *Vulnerability `json:"vulnerability,omitempty"`
}

func (s *PrivilegeEscalationStep) SourceHostID() uuid.UUID  { return s.HostID }
func (s *PrivilegeEscalationStep) TargetHostID() uuid.UUID  { return s.HostID }
func (s *PrivilegeEscalationStep) SourceUserID() uuid.UUID  { return s.FromUserID }
func (s *PrivilegeEscalationStep) TargetUserID() uuid.UUID  { return s.ToUserID }
func (s *PrivilegeEscalationStep) IsLateralMovement() bool  { return false }
func (s *PrivilegeEscalationStep) Vuln() *Vulnerability     { return s.Vulnerability }
func (s *PrivilegeEscalationStep) SetVuln(v *Vulnerability) { s.Vulnerability = v }

// Validate checks the variant's local invariant: users must differ.
func (s *PrivilegeEscalationStep) Validate() error {
	if s.FromUserID == s.ToUserID {
		return errors.New("privilege escalation must be between different users")
	}
	return nil
}

// Step kinds for the document envelope.
const (
	stepKindLateralMovement     = "lateral_movement"
	stepKindPrivilegeEscalation = "privilege_escalation"
)

// stepEnvelope tags a step with its variant so the document round-trips.
type stepEnvelope struct {
	Kind string          `json:"kind"`
	Step json.RawMessage `json:"step"`
}

func marshalStep(s Step) ([]byte, error) {
	var kind string
	switch s.(type) {
	case *LateralMovementStep:
		kind = stepKindLateralMovement
	case *PrivilegeEscalationStep:
		kind = stepKindPrivilegeEscalation
	default:
		return nil, fmt.Errorf("unknown step type %T", s)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stepEnvelope{Kind: kind, Step: raw})
}

func unmarshalStep(data []byte) (Step, error) {
	var env stepEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case stepKindLateralMovement:
		var s LateralMovementStep
		if err := json.Unmarshal(env.Step, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case stepKindPrivilegeEscalation:
		var s PrivilegeEscalationStep
		if err := json.Unmarshal(env.Step, &s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", env.Kind)
	}
}
