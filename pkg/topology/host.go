package topology

import (
	"github.com/google/uuid"
)

// Host is a compute instance inside a subnet. Vulnerabilities are folded in
// from the pruned attack graph before deployment.
type Host struct {
	ID              uuid.UUID        `json:"id"`
	Name            string           `json:"name" validate:"required"`
	OS              OSType           `json:"os_type" validate:"required"`
	Flavor          FlavorType       `json:"flavor"`
	IPAddress       string           `json:"ip_address,omitempty"`
	Users           []*User          `json:"users"`
	Vulnerabilities []*Vulnerability `json:"vulnerabilities,omitempty"`
	IsAttacker      bool             `json:"is_attacker,omitempty"`
	IsDecoy         bool             `json:"is_decoy,omitempty"`
}

// NewHost creates a host with defaults filled in. A root user is added by
// Topology.Normalize, not here, so static specifications stay terse.
func NewHost(name string, os OSType) *Host {
	return &Host{
		ID:     uuid.New(),
		Name:   name,
		OS:     os,
		Flavor: FlavorTiny,
	}
}

// UserByID finds a user on this host by id.
func (h *Host) UserByID(id uuid.UUID) *User {
	for _, u := range h.Users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// UserByName finds a user on this host by username.
func (h *Host) UserByName(username string) *User {
	for _, u := range h.Users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// RootUser returns the host's root-equivalent user. Normalize guarantees
// one exists for every host in a finalized topology.
func (h *Host) RootUser() (*User, error) {
	if u := h.UserByName(RootUsername); u != nil {
		return u, nil
	}
	return nil, newError("RootUser", "host", h.Name, ErrRootUserNotFound)
}

// NonRootUser returns any user that is not root, or nil if none exists.
func (h *Host) NonRootUser() *User {
	for _, u := range h.Users {
		if u.Username != RootUsername {
			return u
		}
	}
	return nil
}

// ensureRootUser appends a default root user if the host has none.
// Idempotent.
func (h *Host) ensureRootUser() {
	if h.UserByName(RootUsername) == nil {
		h.Users = append(h.Users, NewRootUser())
	}
}

// AttackerHostName is the conventional name of the virtual attacker host.
const AttackerHostName = "external_attacker"

// NewExternalAttacker creates the default virtual attacker host. It is not
// part of any subnet; attack paths start from it.
func NewExternalAttacker() *Host {
	h := NewHost(AttackerHostName, OSKaliLinux)
	h.IsAttacker = true
	h.ensureRootUser()
	return h
}
