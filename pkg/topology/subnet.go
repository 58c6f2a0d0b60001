package topology

import (
	"github.com/google/uuid"
)

// Subnet groups hosts sharing a CIDR. Exactly one subnet per topology is
// external: the attacker's initial foothold region.
type Subnet struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name" validate:"required"`
	CIDR       string    `json:"cidr" validate:"required,cidrv4"`
	DNSServers []string  `json:"dns_servers,omitempty"`
	Hosts      []*Host   `json:"hosts"`
	GatewayIP  string    `json:"gateway_ip,omitempty"`
	External   bool      `json:"external,omitempty"`
}

// NewSubnet creates a subnet with defaults filled in.
func NewSubnet(name, cidr string) *Subnet {
	return &Subnet{
		ID:         uuid.New(),
		Name:       name,
		CIDR:       cidr,
		DNSServers: []string{"8.8.8.8"},
	}
}

// SGName is the derived security-group name for this subnet.
func (s *Subnet) SGName() string {
	return s.Name + "_sg"
}

// SubnetConnection allows traffic between two subnets. A nil Protocol or
// Ports list means all protocols or ports are allowed.
type SubnetConnection struct {
	FromSubnet    string    `json:"from_subnet" validate:"required"`
	ToSubnet      string    `json:"to_subnet" validate:"required"`
	Protocol      *Protocol `json:"protocol,omitempty"`
	Ports         []int     `json:"ports,omitempty"`
	Bidirectional bool      `json:"bidirectional"`
}

// AllowsTraffic reports whether this connection allows the given traffic.
func (c *SubnetConnection) AllowsTraffic(protocol Protocol, port int) bool {
	if c.Protocol != nil && *c.Protocol != protocol {
		return false
	}
	if c.Ports != nil {
		found := false
		for _, p := range c.Ports {
			if p == port {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Network is a named group of subnets.
type Network struct {
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description,omitempty"`
	Subnets     []*Subnet `json:"subnets"`
	IsExternal  bool      `json:"is_external,omitempty"`
}
