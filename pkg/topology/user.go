package topology

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultPassword is assigned to generated users that don't specify one.
const DefaultPassword = "mhbench123"

// RootUsername is the root-equivalent admin account every host carries.
const RootUsername = "root"

// User is an account on a host. SSHKeys holds one-way trust references to
// other users' ids: this user's key is authorized to log in as each
// referenced user. The references are weak and resolved by topology lookup
// at configuration time, not ownership.
type User struct {
	ID            uuid.UUID   `json:"id"`
	Username      string      `json:"username" validate:"required"`
	Password      string      `json:"password"`
	IsAdmin       bool        `json:"is_admin"`
	IsDecoy       bool        `json:"is_decoy"`
	HomeDirectory string      `json:"home_directory"`
	SSHKeys       []uuid.UUID `json:"ssh_keys,omitempty"`
}

// NewUser creates a non-admin user with defaults filled in.
func NewUser(username string) *User {
	return &User{
		ID:            uuid.New(),
		Username:      username,
		Password:      DefaultPassword,
		HomeDirectory: fmt.Sprintf("/home/%s/", username),
	}
}

// NewRootUser creates the default root-equivalent admin user.
func NewRootUser() *User {
	return &User{
		ID:            uuid.New(),
		Username:      RootUsername,
		Password:      DefaultPassword,
		IsAdmin:       true,
		HomeDirectory: "/root",
	}
}

// Trusts records that u's key may log in as other.
func (u *User) Trusts(other *User) {
	u.SSHKeys = append(u.SSHKeys, other.ID)
}
