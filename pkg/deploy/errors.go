package deploy

import (
	"errors"
)

var (
	// ErrHostFailed signals a host that entered ERROR during provisioning
	// or rebuild. Fatal immediately; siblings in the batch are abandoned.
	ErrHostFailed = errors.New("host failed to provision")
	// ErrProvisionTimeout signals hosts still pending when the poll budget
	// ran out. The error names every pending host.
	ErrProvisionTimeout = errors.New("timeout waiting for hosts")
	// ErrImageNotFound signals a snapshot load for a host with no image.
	ErrImageNotFound = errors.New("snapshot image not found")
	// ErrManageHostNotFound signals that no live server carries an address
	// on the configured external subnet.
	ErrManageHostNotFound = errors.New("management host not found")
	// ErrExternalNetworkNotFound signals a missing provider external network.
	ErrExternalNetworkNotFound = errors.New("external network not found")
	// ErrAttackerInstall signals the attacker agent install exhausting its
	// retry budget.
	ErrAttackerInstall = errors.New("attacker install failed")
)
