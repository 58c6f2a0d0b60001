// Package cloud defines the resource-provider contract the deployment
// layer drives. Creation of a resource whose name already exists is an
// error, never an upsert: callers must clean up first.
package cloud

import (
	"context"
	"errors"
)

// Server status values reported by the provider.
const (
	StatusActive  = "ACTIVE"
	StatusError   = "ERROR"
	StatusBuild   = "BUILD"
	StatusRebuild = "REBUILD"
)

var (
	// ErrAlreadyExists signals a create call for a name that is taken. It is
	// fatal and never retried: the environment was not cleaned first.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrNotFound signals a lookup for a resource that does not exist.
	ErrNotFound = errors.New("resource not found")
)

// Server is a compute instance as the provider reports it.
type Server struct {
	ID     string
	Name   string
	Status string
	// Fault carries the provider's failure detail when Status is ERROR.
	Fault string
	// Addresses holds the server's IP addresses across its networks.
	Addresses []string
}

// Image is a bootable image or snapshot.
type Image struct {
	ID   string
	Name string
}

// Network is a provider network backing one subnet.
type Network struct {
	ID   string
	Name string
}

// FloatingIP is a routable address attached to a server.
type FloatingIP struct {
	ID      string
	Address string
}

// Router connects subnets to the external network.
type Router struct {
	ID   string
	Name string
}

// SecurityGroup holds ingress/egress rules for a subnet.
type SecurityGroup struct {
	ID   string
	Name string
}

// SecurityGroupRule is one allow rule inside a group.
type SecurityGroupRule struct {
	Protocol   string
	PortMin    int
	PortMax    int
	RemoteCIDR string
}

// CreateServerRequest carries everything needed to boot one instance.
type CreateServerRequest struct {
	Name           string
	ImageName      string
	FlavorName     string
	NetworkName    string
	FixedIP        string
	SecurityGroups []string
	KeyName        string
}

// Provider is the cloud resource API. All operations are synchronous
// round-trips except CreateServer, which returns as soon as the build is
// submitted; callers poll GetServer until the status converges.
type Provider interface {
	CreateServer(ctx context.Context, req CreateServerRequest) (*Server, error)
	GetServer(ctx context.Context, id string) (*Server, error)
	FindServer(ctx context.Context, name string) (*Server, error)
	ListServers(ctx context.Context) ([]*Server, error)
	DeleteServer(ctx context.Context, id string) error
	// RebuildServer re-images a server in place from the named image.
	RebuildServer(ctx context.Context, id, imageName string) error
	// RebootServerHard power-cycles a server.
	RebootServerHard(ctx context.Context, id string) error

	CreateImageSnapshot(ctx context.Context, name, serverID string) (*Image, error)
	FindImage(ctx context.Context, name string) (*Image, error)
	ListImages(ctx context.Context) ([]*Image, error)
	DeleteImage(ctx context.Context, id string) error

	CreateNetwork(ctx context.Context, name string) (*Network, error)
	FindNetwork(ctx context.Context, name string) (*Network, error)
	ListNetworks(ctx context.Context) ([]*Network, error)
	DeleteNetwork(ctx context.Context, id string) error
	CreateSubnet(ctx context.Context, networkID, name, cidr string, dnsServers []string) error

	CreateSecurityGroup(ctx context.Context, name string) (*SecurityGroup, error)
	FindSecurityGroup(ctx context.Context, name string) (*SecurityGroup, error)
	ListSecurityGroups(ctx context.Context) ([]*SecurityGroup, error)
	DeleteSecurityGroup(ctx context.Context, id string) error
	AddSecurityGroupRule(ctx context.Context, groupID string, rule SecurityGroupRule) error

	CreateRouter(ctx context.Context, name string) (*Router, error)
	FindRouter(ctx context.Context, name string) (*Router, error)
	ListRouters(ctx context.Context) ([]*Router, error)
	DeleteRouter(ctx context.Context, id string) error
	AttachRouterSubnet(ctx context.Context, routerID, networkID string) error

	CreateFloatingIP(ctx context.Context, serverID string) (*FloatingIP, error)
	ListFloatingIPs(ctx context.Context) ([]*FloatingIP, error)
	DeleteFloatingIP(ctx context.Context, id string) error
}
