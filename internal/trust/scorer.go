package trust

// DefaultScore is the trust a node assumes for any peer it has not scored yet.
const DefaultScore = 1.0

// DefaultAlpha is the learning rate used when a node is created without one.
const DefaultAlpha = 0.1

// UpdateScore applies one feedback signal to the receiver's trust in a target.
//
// Formula: new_score = current + alpha x sender_trust x feedback
// The sender's trust scales how much its report about the target counts, so
// feedback from a distrusted sender barely moves the score. Scores are not clamped.
func UpdateScore(current, senderTrust, alpha, feedback float64) float64 {
	return current + alpha*senderTrust*feedback
}

// ValidAlpha reports whether alpha is a usable learning rate, i.e. in (0, 1].
func ValidAlpha(alpha float64) bool {
	return alpha > 0 && alpha <= 1
}

// Delta returns the signed change between two trust tables for every id in after.
// Ids missing from before count from DefaultScore.
func Delta(before, after Table) Table {
	out := make(Table, len(after))
	for id, v := range after {
		out[id] = v - before.Get(id)
	}
	return out
}
