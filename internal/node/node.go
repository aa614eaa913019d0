package node

import (
	"math/rand/v2"
	"slices"

	"github.com/MikeSquared-Agency/fedtrust/internal/feedback"
	"github.com/MikeSquared-Agency/fedtrust/internal/noise"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// DefaultParameterCount is the length of a node's local model snapshot.
const DefaultParameterCount = 10

// Outbox is what a node emits during a send phase.
type Outbox struct {
	Feedback   map[trust.NodeID]float64
	Parameters []float64
}

// Entry is one buffered delivery waiting for the next AdvanceTrust.
type Entry struct {
	Sender     trust.NodeID
	Feedback   map[trust.NodeID]float64
	Parameters []float64
}

// Node is one simulated participant. Its trust table and inbox are only ever
// mutated through its own methods; the scheduler drives it single threaded.
type Node struct {
	id           trust.NodeID
	alpha        float64
	adversarial  bool
	distribution feedback.Distribution
	policy       feedback.Policy
	noise        *noise.Config
	src          rand.Source

	trust      trust.Table
	peers      []trust.NodeID
	peersSet   bool
	parameters []float64
	inbox      []Entry
}

// Option configures a Node at construction.
type Option func(*builder)

type builder struct {
	alpha      float64
	policy     feedback.Policy
	adversary  *feedback.Distribution
	noise      *noise.Config
	src        rand.Source
	parameters []float64
	paramCount int
}

// WithAlpha sets the learning rate; it must lie in (0, 1].
func WithAlpha(alpha float64) Option {
	return func(b *builder) { b.alpha = alpha }
}

// WithPolicy overrides the feedback policy. An adversary option takes precedence.
func WithPolicy(p feedback.Policy) Option {
	return func(b *builder) { b.policy = p }
}

// WithAdversary marks the node adversarial with the given malicious distribution.
func WithAdversary(dist feedback.Distribution) Option {
	return func(b *builder) { b.adversary = &dist }
}

// WithNoise assigns a noise configuration. The node keeps its own copy.
func WithNoise(cfg noise.Config) Option {
	return func(b *builder) { b.noise = &cfg }
}

// WithSource injects the random source used for feedback, noise and initial parameters.
func WithSource(src rand.Source) Option {
	return func(b *builder) { b.src = src }
}

// WithParameters sets the local model snapshot explicitly.
func WithParameters(params []float64) Option {
	return func(b *builder) { b.parameters = slices.Clone(params) }
}

// WithParameterCount sets the length of a randomly initialized snapshot.
func WithParameterCount(n int) Option {
	return func(b *builder) { b.paramCount = n }
}

// New creates a node. Without WithSource the node draws from a source seeded by its id,
// so two runs with the same configuration stay reproducible.
func New(id trust.NodeID, opts ...Option) (*Node, error) {
	if id < 0 {
		return nil, trust.Invalid("node_id", int(id), "must be non-negative")
	}
	b := builder{alpha: trust.DefaultAlpha, paramCount: DefaultParameterCount}
	for _, opt := range opts {
		opt(&b)
	}

	if !trust.ValidAlpha(b.alpha) {
		return nil, trust.Invalid("alpha", b.alpha, "must be within (0, 1]")
	}
	if b.paramCount < 0 {
		return nil, trust.Invalid("parameter_count", b.paramCount, "must be non-negative")
	}
	if b.noise != nil {
		if err := b.noise.Validate(); err != nil {
			return nil, err
		}
	}
	if b.src == nil {
		b.src = rand.NewPCG(uint64(id), 0)
	}

	n := &Node{
		id:     id,
		alpha:  b.alpha,
		policy: b.policy,
		noise:  b.noise,
		src:    b.src,
		trust:  trust.Table{},
	}

	if b.adversary != nil {
		p, err := feedback.NewAdversary(*b.adversary)
		if err != nil {
			return nil, err
		}
		n.adversarial = true
		n.distribution = *b.adversary
		n.policy = p
	}
	if n.policy == nil {
		n.policy = feedback.NewHonest()
	}

	if b.parameters != nil {
		n.parameters = b.parameters
	} else {
		r := rand.New(n.src)
		n.parameters = make([]float64, b.paramCount)
		for i := range n.parameters {
			n.parameters[i] = r.Float64()
		}
	}
	return n, nil
}

// SetPeers configures the peer list exactly once and seeds trust in each peer at 1.0.
func (n *Node) SetPeers(peers []trust.NodeID) error {
	if n.peersSet {
		return trust.Invalid("peers", int(n.id), "peers already configured")
	}
	seen := make(map[trust.NodeID]struct{}, len(peers))
	for _, p := range peers {
		if p == n.id {
			return trust.Invalid("peers", int(p), "node cannot peer with itself")
		}
		if _, dup := seen[p]; dup {
			return trust.Invalid("peers", int(p), "duplicate peer")
		}
		seen[p] = struct{}{}
	}

	n.peers = slices.Clone(peers)
	n.peersSet = true
	for _, p := range n.peers {
		n.trust[p] = trust.DefaultScore
	}
	return nil
}

// ProduceOutbox computes feedback about every peer and the parameter payload.
// Trust state is never touched.
func (n *Node) ProduceOutbox() Outbox {
	fb := make(map[trust.NodeID]float64, len(n.peers))
	for _, p := range n.peers {
		v := n.policy.Feedback(p, n.src)
		if n.noise.Active() && n.noise.ApplyToFeedback {
			v = n.noise.Kind.Perturb(n.src, v)
		}
		fb[p] = v
	}

	params := slices.Clone(n.parameters)
	if n.noise.Active() && n.noise.ApplyToModelParameters {
		params = n.noise.Kind.PerturbVector(n.src, n.parameters)
	}
	return Outbox{Feedback: fb, Parameters: params}
}

// AbsorbInbox buffers a delivery. Trust is only folded by AdvanceTrust.
func (n *Node) AbsorbInbox(e Entry) {
	n.inbox = append(n.inbox, e)
}

// AdvanceTrust folds every buffered entry into the trust table and clears the inbox.
//
// For entry (j, m) and each target k: T_ik = T_ik + alpha * T_ij * m_jk.
// T_ij always comes from the table as it stood when the call began, so no entry
// observes an update written for another sender in the same call. Entries are
// folded by ascending sender and target id, which makes the result independent
// of delivery order. It returns the number of trust updates applied.
func (n *Node) AdvanceTrust() int {
	if len(n.inbox) == 0 {
		return 0
	}
	snapshot := n.trust.Clone()

	entries := slices.Clone(n.inbox)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return int(a.Sender) - int(b.Sender)
	})

	updates := 0
	for _, e := range entries {
		senderTrust := snapshot.Get(e.Sender)
		targets := trust.Table(e.Feedback).Keys()
		for _, k := range targets {
			n.trust[k] = trust.UpdateScore(n.trust.Get(k), senderTrust, n.alpha, e.Feedback[k])
			updates++
		}
	}
	n.inbox = nil
	return updates
}

func (n *Node) ID() trust.NodeID {
	return n.id
}

func (n *Node) Alpha() float64 {
	return n.alpha
}

func (n *Node) IsAdversarial() bool {
	return n.adversarial
}

// Distribution is only meaningful when the node is adversarial.
func (n *Node) Distribution() feedback.Distribution {
	return n.distribution
}

// Noise returns a copy of the node's noise config, or nil.
func (n *Node) Noise() *noise.Config {
	if n.noise == nil {
		return nil
	}
	cfg := *n.noise
	return &cfg
}

func (n *Node) Peers() []trust.NodeID {
	return slices.Clone(n.peers)
}

// Trust returns a snapshot of the trust table.
func (n *Node) Trust() trust.Table {
	return n.trust.Clone()
}

// TrustIn returns the trust held in id, defaulting to 1.0.
func (n *Node) TrustIn(id trust.NodeID) float64 {
	return n.trust.Get(id)
}

func (n *Node) Inbox() []Entry {
	return slices.Clone(n.inbox)
}

func (n *Node) Parameters() []float64 {
	return slices.Clone(n.parameters)
}
