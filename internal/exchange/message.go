package exchange

import (
	"maps"
	"slices"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Kind distinguishes direct sends from hub re-broadcasts.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindBroadcast Kind = "broadcast"
)

// Relay is one originating sender's contribution carried inside a hub broadcast.
type Relay struct {
	Feedback   map[trust.NodeID]float64 `json:"feedback"`
	Parameters []float64                `json:"parameters"`
}

// Message is one routed exchange.
type Message struct {
	Seq               int                      `json:"seq"`
	Tick              int                      `json:"tick"`
	Sender            trust.NodeID             `json:"sender"`
	Receiver          trust.NodeID             `json:"receiver"`
	Kind              Kind                     `json:"kind"`
	SenderAdversarial bool                     `json:"sender_adversarial"`
	Feedback          map[trust.NodeID]float64 `json:"feedback"`
	Parameters        []float64                `json:"parameters"`
	Aggregate         map[trust.NodeID]Relay   `json:"aggregate,omitempty"`
}

func (m Message) clone() Message {
	m.Feedback = maps.Clone(m.Feedback)
	m.Parameters = slices.Clone(m.Parameters)
	if m.Aggregate != nil {
		agg := make(map[trust.NodeID]Relay, len(m.Aggregate))
		for id, r := range m.Aggregate {
			agg[id] = Relay{Feedback: maps.Clone(r.Feedback), Parameters: slices.Clone(r.Parameters)}
		}
		m.Aggregate = agg
	}
	return m
}

// Log is the append-only record of every exchange in emission order.
// Appended messages are deep copied and never change afterwards.
type Log struct {
	entries []Message
}

func NewLog() *Log {
	return &Log{}
}

// Append records m and assigns its sequence number.
func (l *Log) Append(m Message) Message {
	m = m.clone()
	m.Seq = len(l.entries)
	l.entries = append(l.entries, m)
	return m.clone()
}

func (l *Log) Len() int {
	return len(l.entries)
}

// At returns a copy of the i-th message.
func (l *Log) At(i int) Message {
	return l.entries[i].clone()
}

// Entries returns a copy of the whole log.
func (l *Log) Entries() []Message {
	out := make([]Message, len(l.entries))
	for i, m := range l.entries {
		out[i] = m.clone()
	}
	return out
}

// ByTick returns the messages emitted during tick t.
func (l *Log) ByTick(t int) []Message {
	var out []Message
	for _, m := range l.entries {
		if m.Tick == t {
			out = append(out, m.clone())
		}
	}
	return out
}

// Count returns how many messages of kind k were logged.
func (l *Log) Count(k Kind) int {
	n := 0
	for _, m := range l.entries {
		if m.Kind == k {
			n++
		}
	}
	return n
}
