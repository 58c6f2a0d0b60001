// Package cloudtest provides an in-memory Provider for tests. It
// reproduces the two contract points the deployment layer depends on:
// creating a resource whose name exists fails with ErrAlreadyExists, and
// server status is a pollable field tests can script per host.
package cloudtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bsinger98/MHBench/pkg/cloud"
)

// Fake is an in-memory cloud.Provider.
type Fake struct {
	mu sync.Mutex

	servers        map[string]*cloud.Server
	images         map[string]*cloud.Image
	networks       map[string]*cloud.Network
	securityGroups map[string]*cloud.SecurityGroup
	routers        map[string]*cloud.Router
	floatingIPs    map[string]*cloud.FloatingIP

	// StatusScript overrides the status a server reports per name. Without
	// an entry servers report ACTIVE immediately.
	StatusScript map[string][]string
	polls        map[string]int

	// FaultByName sets the fault detail reported with ERROR status.
	FaultByName map[string]string

	// CreateOrder records server names in submission order.
	CreateOrder []string
	// Rebuilt records rebuild calls as "name:image".
	Rebuilt []string
	// HardReboots records hard-rebooted server names.
	HardReboots []string
}

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{
		servers:        make(map[string]*cloud.Server),
		images:         make(map[string]*cloud.Image),
		networks:       make(map[string]*cloud.Network),
		securityGroups: make(map[string]*cloud.SecurityGroup),
		routers:        make(map[string]*cloud.Router),
		floatingIPs:    make(map[string]*cloud.FloatingIP),
		StatusScript:   make(map[string][]string),
		polls:          make(map[string]int),
		FaultByName:    make(map[string]string),
	}
}

func (f *Fake) CreateServer(_ context.Context, req cloud.CreateServerRequest) (*cloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.servers {
		if s.Name == req.Name {
			return nil, fmt.Errorf("server %q: %w", req.Name, cloud.ErrAlreadyExists)
		}
	}

	server := &cloud.Server{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Status: cloud.StatusBuild,
	}
	if req.FixedIP != "" {
		server.Addresses = []string{req.FixedIP}
	}
	f.servers[server.ID] = server
	f.CreateOrder = append(f.CreateOrder, req.Name)
	return cloneServer(server), nil
}

func (f *Fake) GetServer(_ context.Context, id string) (*cloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	server, ok := f.servers[id]
	if !ok {
		return nil, fmt.Errorf("server %q: %w", id, cloud.ErrNotFound)
	}

	server.Status = f.nextStatus(server.Name)
	if server.Status == cloud.StatusError {
		server.Fault = f.FaultByName[server.Name]
	}
	return cloneServer(server), nil
}

// nextStatus steps through the scripted status sequence, sticking on the
// last entry. Unscripted servers are immediately ACTIVE.
func (f *Fake) nextStatus(name string) string {
	script, ok := f.StatusScript[name]
	if !ok || len(script) == 0 {
		return cloud.StatusActive
	}
	i := f.polls[name]
	if i >= len(script) {
		i = len(script) - 1
	}
	f.polls[name]++
	return script[i]
}

func (f *Fake) FindServer(_ context.Context, name string) (*cloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.servers {
		if s.Name == name {
			return cloneServer(s), nil
		}
	}
	return nil, nil
}

func (f *Fake) ListServers(_ context.Context) ([]*cloud.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	servers := make([]*cloud.Server, 0, len(f.servers))
	for _, s := range f.servers {
		servers = append(servers, cloneServer(s))
	}
	return servers, nil
}

func (f *Fake) DeleteServer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.servers[id]; !ok {
		return fmt.Errorf("server %q: %w", id, cloud.ErrNotFound)
	}
	delete(f.servers, id)
	return nil
}

func (f *Fake) RebuildServer(_ context.Context, id, imageName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	server, ok := f.servers[id]
	if !ok {
		return fmt.Errorf("server %q: %w", id, cloud.ErrNotFound)
	}
	if _, ok := f.images[imageName]; !ok {
		return fmt.Errorf("image %q: %w", imageName, cloud.ErrNotFound)
	}
	f.Rebuilt = append(f.Rebuilt, server.Name+":"+imageName)
	return nil
}

func (f *Fake) RebootServerHard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	server, ok := f.servers[id]
	if !ok {
		return fmt.Errorf("server %q: %w", id, cloud.ErrNotFound)
	}
	f.HardReboots = append(f.HardReboots, server.Name)
	return nil
}

func (f *Fake) CreateImageSnapshot(_ context.Context, name, serverID string) (*cloud.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.servers[serverID]; !ok {
		return nil, fmt.Errorf("server %q: %w", serverID, cloud.ErrNotFound)
	}
	if _, ok := f.images[name]; ok {
		return nil, fmt.Errorf("image %q: %w", name, cloud.ErrAlreadyExists)
	}

	image := &cloud.Image{ID: uuid.NewString(), Name: name}
	f.images[name] = image
	return &cloud.Image{ID: image.ID, Name: image.Name}, nil
}

func (f *Fake) FindImage(_ context.Context, name string) (*cloud.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	image, ok := f.images[name]
	if !ok {
		return nil, nil
	}
	return &cloud.Image{ID: image.ID, Name: image.Name}, nil
}

func (f *Fake) ListImages(_ context.Context) ([]*cloud.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	images := make([]*cloud.Image, 0, len(f.images))
	for _, img := range f.images {
		images = append(images, &cloud.Image{ID: img.ID, Name: img.Name})
	}
	return images, nil
}

func (f *Fake) DeleteImage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, img := range f.images {
		if img.ID == id {
			delete(f.images, name)
			return nil
		}
	}
	return fmt.Errorf("image %q: %w", id, cloud.ErrNotFound)
}

func (f *Fake) CreateNetwork(_ context.Context, name string) (*cloud.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.networks[name]; ok {
		return nil, fmt.Errorf("network %q: %w", name, cloud.ErrAlreadyExists)
	}
	network := &cloud.Network{ID: uuid.NewString(), Name: name}
	f.networks[name] = network
	return &cloud.Network{ID: network.ID, Name: network.Name}, nil
}

func (f *Fake) FindNetwork(_ context.Context, name string) (*cloud.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	network, ok := f.networks[name]
	if !ok {
		return nil, nil
	}
	return &cloud.Network{ID: network.ID, Name: network.Name}, nil
}

func (f *Fake) ListNetworks(_ context.Context) ([]*cloud.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	networks := make([]*cloud.Network, 0, len(f.networks))
	for _, n := range f.networks {
		networks = append(networks, &cloud.Network{ID: n.ID, Name: n.Name})
	}
	return networks, nil
}

func (f *Fake) DeleteNetwork(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, n := range f.networks {
		if n.ID == id {
			delete(f.networks, name)
			return nil
		}
	}
	return fmt.Errorf("network %q: %w", id, cloud.ErrNotFound)
}

func (f *Fake) CreateSubnet(_ context.Context, networkID, _, _ string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range f.networks {
		if n.ID == networkID {
			return nil
		}
	}
	return fmt.Errorf("network %q: %w", networkID, cloud.ErrNotFound)
}

func (f *Fake) CreateSecurityGroup(_ context.Context, name string) (*cloud.SecurityGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.securityGroups[name]; ok {
		return nil, fmt.Errorf("security group %q: %w", name, cloud.ErrAlreadyExists)
	}
	group := &cloud.SecurityGroup{ID: uuid.NewString(), Name: name}
	f.securityGroups[name] = group
	return &cloud.SecurityGroup{ID: group.ID, Name: group.Name}, nil
}

func (f *Fake) FindSecurityGroup(_ context.Context, name string) (*cloud.SecurityGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	group, ok := f.securityGroups[name]
	if !ok {
		return nil, nil
	}
	return &cloud.SecurityGroup{ID: group.ID, Name: group.Name}, nil
}

func (f *Fake) ListSecurityGroups(_ context.Context) ([]*cloud.SecurityGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	groups := make([]*cloud.SecurityGroup, 0, len(f.securityGroups))
	for _, g := range f.securityGroups {
		groups = append(groups, &cloud.SecurityGroup{ID: g.ID, Name: g.Name})
	}
	return groups, nil
}

func (f *Fake) DeleteSecurityGroup(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, g := range f.securityGroups {
		if g.ID == id {
			delete(f.securityGroups, name)
			return nil
		}
	}
	return fmt.Errorf("security group %q: %w", id, cloud.ErrNotFound)
}

func (f *Fake) AddSecurityGroupRule(_ context.Context, groupID string, _ cloud.SecurityGroupRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, g := range f.securityGroups {
		if g.ID == groupID {
			return nil
		}
	}
	return fmt.Errorf("security group %q: %w", groupID, cloud.ErrNotFound)
}

func (f *Fake) CreateRouter(_ context.Context, name string) (*cloud.Router, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.routers[name]; ok {
		return nil, fmt.Errorf("router %q: %w", name, cloud.ErrAlreadyExists)
	}
	router := &cloud.Router{ID: uuid.NewString(), Name: name}
	f.routers[name] = router
	return &cloud.Router{ID: router.ID, Name: router.Name}, nil
}

func (f *Fake) FindRouter(_ context.Context, name string) (*cloud.Router, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	router, ok := f.routers[name]
	if !ok {
		return nil, nil
	}
	return &cloud.Router{ID: router.ID, Name: router.Name}, nil
}

func (f *Fake) ListRouters(_ context.Context) ([]*cloud.Router, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	routers := make([]*cloud.Router, 0, len(f.routers))
	for _, r := range f.routers {
		routers = append(routers, &cloud.Router{ID: r.ID, Name: r.Name})
	}
	return routers, nil
}

func (f *Fake) DeleteRouter(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, r := range f.routers {
		if r.ID == id {
			delete(f.routers, name)
			return nil
		}
	}
	return fmt.Errorf("router %q: %w", id, cloud.ErrNotFound)
}

func (f *Fake) AttachRouterSubnet(_ context.Context, routerID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.routers {
		if r.ID == routerID {
			return nil
		}
	}
	return fmt.Errorf("router %q: %w", routerID, cloud.ErrNotFound)
}

func (f *Fake) CreateFloatingIP(_ context.Context, serverID string) (*cloud.FloatingIP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.servers[serverID]; !ok {
		return nil, fmt.Errorf("server %q: %w", serverID, cloud.ErrNotFound)
	}
	fip := &cloud.FloatingIP{ID: uuid.NewString(), Address: "203.0.113." + fmt.Sprint(len(f.floatingIPs)+1)}
	f.floatingIPs[fip.ID] = fip
	return &cloud.FloatingIP{ID: fip.ID, Address: fip.Address}, nil
}

func (f *Fake) ListFloatingIPs(_ context.Context) ([]*cloud.FloatingIP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fips := make([]*cloud.FloatingIP, 0, len(f.floatingIPs))
	for _, fip := range f.floatingIPs {
		fips = append(fips, &cloud.FloatingIP{ID: fip.ID, Address: fip.Address})
	}
	return fips, nil
}

func (f *Fake) DeleteFloatingIP(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.floatingIPs[id]; !ok {
		return fmt.Errorf("floating ip %q: %w", id, cloud.ErrNotFound)
	}
	delete(f.floatingIPs, id)
	return nil
}

// SetServerAddresses overwrites a server's addresses, for tests that need
// management-host discovery by address prefix.
func (f *Fake) SetServerAddresses(name string, addresses []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.servers {
		if s.Name == name {
			s.Addresses = addresses
		}
	}
}

func cloneServer(s *cloud.Server) *cloud.Server {
	clone := *s
	clone.Addresses = append([]string(nil), s.Addresses...)
	return &clone
}
