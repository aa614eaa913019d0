package exchange

import (
	"maps"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/fedtrust/internal/node"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Topology decides who sends to whom during a send phase.
type Topology interface {
	Name() string
	// Validate checks the topology can run on net, before any tick.
	Validate(net *Network) error
	// Wire sets every node's peers. It is called once, at configuration time.
	Wire(net *Network) error
	// Exchange runs one send phase: produce, route, log, deliver. It never advances trust.
	Exchange(tick int, net *Network, log *Log) error
}

const (
	TagPeerToPeer = "peer-to-peer"
	TagServer     = "server"
)

// ParseTopology resolves a topology tag. hub is only used by the server topology.
func ParseTopology(tag string, hub trust.NodeID) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case TagPeerToPeer, "p2p", "mesh":
		return Mesh{}, nil
	case TagServer, "star":
		return Star{Hub: hub}, nil
	default:
		return nil, trust.Invalid("topology", tag, "unsupported topology")
	}
}

// Mesh is the full-mesh peer-to-peer topology: every node sends its feedback
// map directly to every peer it names.
type Mesh struct{}

func (Mesh) Name() string { return TagPeerToPeer }

func (Mesh) Validate(net *Network) error {
	if net.Len() == 0 {
		return trust.Invalid("nodes", 0, "network has no nodes")
	}
	return nil
}

func (Mesh) Wire(net *Network) error {
	for _, id := range net.IDs() {
		if err := net.Wire(id, net.Others(id)); err != nil {
			return err
		}
	}
	return nil
}

func (Mesh) Exchange(tick int, net *Network, log *Log) error {
	for _, sender := range net.Nodes() {
		out := sender.ProduceOutbox()
		for _, peerID := range sender.Peers() {
			if _, named := out.Feedback[peerID]; !named {
				continue
			}
			peer, ok := net.Get(peerID)
			if !ok {
				return trust.Invalid("peers", int(peerID), "unknown peer")
			}
			log.Append(Message{
				Tick:              tick,
				Sender:            sender.ID(),
				Receiver:          peerID,
				Kind:              KindDirect,
				SenderAdversarial: sender.IsAdversarial(),
				Feedback:          out.Feedback,
				Parameters:        out.Parameters,
			})
			peer.AbsorbInbox(node.Entry{Sender: sender.ID(), Feedback: out.Feedback, Parameters: out.Parameters})
		}
	}
	return nil
}

// Star is the server-mediated topology. Non-hub nodes send only to the hub; the
// hub then broadcasts its own feedback together with everything it received,
// keyed by originating sender.
//
// A recipient absorbs the hub's own feedback as an entry from the hub and every
// relayed contribution as an entry from its originator, skipping its own.
type Star struct {
	Hub trust.NodeID
}

func (Star) Name() string { return TagServer }

func (s Star) Validate(net *Network) error {
	if _, ok := net.Get(s.Hub); !ok {
		return trust.Invalid("hub", int(s.Hub), "no node matches the hub id")
	}
	return nil
}

func (s Star) Wire(net *Network) error {
	if err := s.Validate(net); err != nil {
		return err
	}
	for _, id := range net.IDs() {
		peers := []trust.NodeID{s.Hub}
		if id == s.Hub {
			peers = net.Others(s.Hub)
		}
		if err := net.Wire(id, peers); err != nil {
			return err
		}
	}
	return nil
}

func (s Star) Exchange(tick int, net *Network, log *Log) error {
	hub, ok := net.Get(s.Hub)
	if !ok {
		return trust.Invalid("hub", int(s.Hub), "no node matches the hub id")
	}

	var spokes []*node.Node
	aggregate := make(map[trust.NodeID]Relay)
	for _, sender := range net.Nodes() {
		if sender.ID() == s.Hub {
			continue
		}
		spokes = append(spokes, sender)
		out := sender.ProduceOutbox()
		log.Append(Message{
			Tick:              tick,
			Sender:            sender.ID(),
			Receiver:          s.Hub,
			Kind:              KindDirect,
			SenderAdversarial: sender.IsAdversarial(),
			Feedback:          out.Feedback,
			Parameters:        out.Parameters,
		})
		hub.AbsorbInbox(node.Entry{Sender: sender.ID(), Feedback: out.Feedback, Parameters: out.Parameters})
		aggregate[sender.ID()] = Relay{Feedback: out.Feedback, Parameters: out.Parameters}
	}

	own := hub.ProduceOutbox()
	origins := relayOrder(aggregate)
	for _, recipient := range spokes {
		log.Append(Message{
			Tick:              tick,
			Sender:            s.Hub,
			Receiver:          recipient.ID(),
			Kind:              KindBroadcast,
			SenderAdversarial: hub.IsAdversarial(),
			Feedback:          own.Feedback,
			Parameters:        own.Parameters,
			Aggregate:         aggregate,
		})
		recipient.AbsorbInbox(node.Entry{Sender: s.Hub, Feedback: own.Feedback, Parameters: own.Parameters})
		for _, origin := range origins {
			if origin == recipient.ID() {
				continue
			}
			r := aggregate[origin]
			recipient.AbsorbInbox(node.Entry{Sender: origin, Feedback: r.Feedback, Parameters: r.Parameters})
		}
	}
	return nil
}

func relayOrder(aggregate map[trust.NodeID]Relay) []trust.NodeID {
	return slices.Sorted(maps.Keys(aggregate))
}
