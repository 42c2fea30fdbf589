// Package placement maps object IDs onto storage nodes with rendezvous
// hashing, so every ID gets a stable node order that changes little when
// nodes join or leave.
package placement

import (
	"fmt"
	"slices"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/nspcc-dev/hrw"
)

// Node is a placement target identified by its address.
type Node struct {
	Addr string
	hash uint64
}

// Hash implements hrw.Hasher, the weight source of hrw.SortSliceByValue.
func (n Node) Hash() uint64 { return n.hash }

func NewNode(addr string) Node {
	return Node{Addr: addr, hash: hrw.Hash([]byte(addr))}
}

// Placer ranks a fixed node set for each ID. It is safe for concurrent use.
type Placer struct {
	nodes    []Node
	replicas int
}

// New builds a Placer from cfg. Replicas defaults to one; it may not exceed
// the number of nodes.
func New(cfg core.PlacementConfig) (*Placer, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no placement nodes", core.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(cfg.Nodes))
	nodes := make([]Node, 0, len(cfg.Nodes))
	for _, addr := range cfg.Nodes {
		if addr == "" {
			return nil, fmt.Errorf("%w: empty node address", core.ErrInvalidInput)
		}
		if _, ok := seen[addr]; ok {
			return nil, fmt.Errorf("%w: duplicate node %q", core.ErrInvalidInput, addr)
		}
		seen[addr] = struct{}{}
		nodes = append(nodes, NewNode(addr))
	}

	replicas := cfg.Replicas
	if replicas == 0 {
		replicas = 1
	}
	if replicas < 0 || replicas > len(nodes) {
		return nil, fmt.Errorf("%w: %d replicas over %d nodes", core.ErrInvalidInput, replicas, len(nodes))
	}

	return &Placer{nodes: nodes, replicas: replicas}, nil
}

// Replicas returns the configured replica count.
func (p *Placer) Replicas() int { return p.replicas }

// Pick returns the n highest ranked nodes for id. n is capped by the node
// count.
func (p *Placer) Pick(id object.ID, n int) []Node {
	// keep the configured order intact for concurrent callers
	nodes := slices.Clone(p.nodes)
	hrw.SortSliceByValue(nodes, id.Hash())

	if n > len(nodes) {
		n = len(nodes)
	}
	if n < 0 {
		n = 0
	}
	return nodes[:n]
}

// Replicate returns Pick(id, Replicas()).
func (p *Placer) Replicate(id object.ID) []Node {
	return p.Pick(id, p.replicas)
}
