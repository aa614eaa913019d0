package exchange

import (
	"github.com/MikeSquared-Agency/fedtrust/internal/node"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Network is the arena of simulated nodes. Peer relations are stored as ids on
// each node and resolved here, so nodes never own each other.
type Network struct {
	nodes map[trust.NodeID]*node.Node
	order []trust.NodeID
}

func NewNetwork(nodes ...*node.Node) (*Network, error) {
	n := &Network{nodes: make(map[trust.NodeID]*node.Node, len(nodes))}
	for _, nd := range nodes {
		if err := n.Add(nd); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Add registers a node; ids must be unique.
func (n *Network) Add(nd *node.Node) error {
	if _, dup := n.nodes[nd.ID()]; dup {
		return trust.Invalid("node_id", int(nd.ID()), "duplicate node id")
	}
	n.nodes[nd.ID()] = nd
	n.order = append(n.order, nd.ID())
	return nil
}

// Get resolves id through the arena.
func (n *Network) Get(id trust.NodeID) (*node.Node, bool) {
	nd, ok := n.nodes[id]
	return nd, ok
}

// Nodes returns the nodes in insertion order.
func (n *Network) Nodes() []*node.Node {
	out := make([]*node.Node, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.nodes[id])
	}
	return out
}

func (n *Network) IDs() []trust.NodeID {
	return append([]trust.NodeID(nil), n.order...)
}

func (n *Network) Len() int {
	return len(n.order)
}

// Wire sets id's peers after checking every peer exists in the arena.
func (n *Network) Wire(id trust.NodeID, peers []trust.NodeID) error {
	nd, ok := n.nodes[id]
	if !ok {
		return trust.Invalid("node_id", int(id), "unknown node")
	}
	for _, p := range peers {
		if _, ok := n.nodes[p]; !ok {
			return trust.Invalid("peers", int(p), "unknown peer")
		}
	}
	return nd.SetPeers(peers)
}

// Others returns every id except id, in insertion order.
func (n *Network) Others(id trust.NodeID) []trust.NodeID {
	out := make([]trust.NodeID, 0, len(n.order))
	for _, o := range n.order {
		if o != id {
			out = append(out, o)
		}
	}
	return out
}
