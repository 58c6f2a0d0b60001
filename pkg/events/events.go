// Package events publishes deployment lifecycle events over a nanomsg pub
// socket so external observers (experiment harnesses, dashboards) can
// follow a run without polling.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/bsinger98/MHBench/pkg/logging"
)

// Event types emitted during a run.
const (
	TypeDeployStarted   = "deploy_started"
	TypeDeployFinished  = "deploy_finished"
	TypeDeployFailed    = "deploy_failed"
	TypeHostProvisioned = "host_provisioned"
	TypeHostError       = "host_error"
	TypePhaseStarted    = "phase_started"
	TypePhaseFinished   = "phase_finished"
	TypeSnapshotSaved   = "snapshot_saved"
	TypeSnapshotLoaded  = "snapshot_loaded"
)

// Event is one lifecycle notification.
type Event struct {
	Type     string    `json:"type"`
	Topology string    `json:"topology,omitempty"`
	Host     string    `json:"host,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

// Publisher emits events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(event Event)
	Close() error
}

// Bus publishes JSON-encoded events on a pub socket. Publishing is
// fire-and-forget: a slow or absent subscriber never blocks deployment.
type Bus struct {
	sock   mangos.Socket
	logger logging.Logger
}

// NewBus opens a pub socket listening on the given address, e.g.
// "tcp://127.0.0.1:40899".
func NewBus(addr string, logger logging.Logger) (*Bus, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("create pub socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Bus{
		sock:   sock,
		logger: logger.With(logging.Component("events")),
	}, nil
}

// Publish implements Publisher.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("cannot encode event", logging.Error(err))
		return
	}
	if err := b.sock.Send(data); err != nil {
		b.logger.Warn("cannot publish event",
			logging.String("type", event.Type),
			logging.Error(err))
	}
}

// Close shuts the socket down.
func (b *Bus) Close() error {
	return b.sock.Close()
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
func (NopPublisher) Close() error  { return nil }
