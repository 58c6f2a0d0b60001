// Package store persists topology documents. Documents are JSON,
// snappy-compressed on disk or in the object store; loading finalizes the
// topology so persisted documents round-trip to validated entities.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/bsinger98/MHBench/pkg/topology"
)

// ErrDocumentNotFound means no document exists under the requested name.
var ErrDocumentNotFound = errors.New("topology document not found")

// Store reads and writes named topology documents.
type Store interface {
	Save(ctx context.Context, name string, topo *topology.Topology) error
	Load(ctx context.Context, name string) (*topology.Topology, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// encode marshals and compresses one document.
func encode(topo *topology.Topology) ([]byte, error) {
	data, err := json.MarshalIndent(topo, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode topology: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// decode decompresses, unmarshals, and finalizes one document.
func decode(compressed []byte) (*topology.Topology, error) {
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress topology: %w", err)
	}

	var topo topology.Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	if err := topo.Finalize(); err != nil {
		return nil, err
	}
	return &topo, nil
}
