// Package report renders simulation results as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MikeSquared-Agency/fedtrust/internal/exchange"
	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

// Writer renders to one output. Colors are used only when the output is a
// terminal.
type Writer struct {
	out io.Writer
	st  styles
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, st: newStyles(lipgloss.NewRenderer(out))}
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func (w *Writer) role(n sim.NodeSummary) string {
	if !n.Adversarial {
		return "honest"
	}
	return w.st.alert.Render("adversarial/" + string(n.Distribution))
}

// Trust renders the final trust matrix: one row per holder, one column per target.
func (w *Writer) Trust(res *sim.Result) error {
	headers := []string{"holder", "role"}
	for _, n := range res.Nodes {
		headers = append(headers, n.ID.String())
	}
	t := newTable(fmt.Sprintf("Final trust after %d ticks (%s)", res.Ticks, res.Settings.Topology), headers...)
	for _, holder := range res.Nodes {
		row := []string{holder.ID.String(), w.role(holder)}
		tbl := res.FinalTrust[holder.ID]
		for _, target := range res.Nodes {
			v, ok := tbl[target.ID]
			if !ok {
				row = append(row, w.st.muted.Render("-"))
				continue
			}
			row = append(row, score(v))
		}
		t.add(row...)
	}
	_, err := io.WriteString(w.out, t.render(w.st))
	return err
}

// Summary renders the mean trust each node receives and the run totals.
func (w *Writer) Summary(res *sim.Result) error {
	sum := res.Summary()
	t := newTable("Received trust", "node", "role", "noisy", "mean trust")
	for _, n := range res.Nodes {
		mean := w.st.muted.Render("-")
		if v, ok := sum.ReceivedTrust[n.ID]; ok {
			mean = score(v)
		}
		t.add(n.ID.String(), w.role(n), strconv.FormatBool(n.Noisy), mean)
	}

	var sb strings.Builder
	sb.WriteString(t.render(w.st))
	fmt.Fprintf(&sb, "honest mean:      %s\n", score(sum.HonestMean))
	if len(res.Adversaries()) > 0 {
		fmt.Fprintf(&sb, "adversarial mean: %s\n", score(sum.AdversarialMean))
	}
	fmt.Fprintf(&sb, "messages:         %d (%d broadcast)\n", sum.Messages, sum.Broadcasts)
	fmt.Fprintf(&sb, "run:              %s\n", res.RunID)
	_, err := io.WriteString(w.out, sb.String())
	return err
}

// Messages renders a message log in emission order.
func (w *Writer) Messages(msgs []exchange.Message) error {
	t := newTable(fmt.Sprintf("Message log (%d)", len(msgs)), "seq", "tick", "kind", "route", "feedback", "params", "relayed")
	for _, m := range msgs {
		route := m.Sender.String() + " -> " + m.Receiver.String()
		if m.SenderAdversarial {
			route = w.st.alert.Render(route + " !")
		}
		t.add(
			strconv.Itoa(m.Seq),
			strconv.Itoa(m.Tick),
			string(m.Kind),
			route,
			formatFeedback(m.Feedback),
			strconv.Itoa(len(m.Parameters)),
			strconv.Itoa(len(m.Aggregate)),
		)
	}
	_, err := io.WriteString(w.out, t.render(w.st))
	return err
}

func formatFeedback(fb map[trust.NodeID]float64) string {
	keys := trust.Table(fb).Keys()
	parts := make([]string, 0, len(keys))
	for _, id := range keys {
		parts = append(parts, fmt.Sprintf("%d=%s", int(id), strconv.FormatFloat(fb[id], 'f', 3, 64)))
	}
	return strings.Join(parts, " ")
}

// Sweep renders one line per run of a batch.
func (w *Writer) Sweep(results []*sim.Result) error {
	t := newTable(fmt.Sprintf("Sweep (%d runs)", len(results)), "seed", "adversaries", "honest mean", "adversarial mean", "messages")
	var honest, adversarial float64
	withAdversaries := 0
	for _, res := range results {
		sum := res.Summary()
		advMean := w.st.muted.Render("-")
		if len(res.Adversaries()) > 0 {
			advMean = score(sum.AdversarialMean)
			adversarial += sum.AdversarialMean
			withAdversaries++
		}
		t.add(
			strconv.FormatUint(res.Settings.Seed, 10),
			formatIDs(res.Adversaries()),
			score(sum.HonestMean),
			advMean,
			strconv.Itoa(sum.Messages),
		)
		honest += sum.HonestMean
	}

	var sb strings.Builder
	sb.WriteString(t.render(w.st))
	if n := len(results); n > 0 {
		fmt.Fprintf(&sb, "mean honest:      %s\n", score(honest/float64(n)))
	}
	if withAdversaries > 0 {
		fmt.Fprintf(&sb, "mean adversarial: %s\n", score(adversarial/float64(withAdversaries)))
	}
	_, err := io.WriteString(w.out, sb.String())
	return err
}

func formatIDs(ids []trust.NodeID) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}
