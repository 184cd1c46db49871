package completeness

// Phase is the adoption phase a completeness score falls into.
type Phase string

const (
	PhaseSeeding            Phase = "Seeding"
	PhaseGamification       Phase = "Gamification"
	PhaseOperationalization Phase = "Operationalization"
)

// PhaseFor classifies a score: below 20 is Seeding, 20 to 49 is
// Gamification, 50 and above is Operationalization. No history is kept.
func PhaseFor(score int) Phase {
	switch {
	case score < 20:
		return PhaseSeeding
	case score < 50:
		return PhaseGamification
	default:
		return PhaseOperationalization
	}
}

var tactics = map[Phase][]string{
	PhaseSeeding: {
		"Assign an owner to every high-traffic asset",
		"Import existing descriptions from source systems",
		"Pick one pilot domain and document it end to end",
	},
	PhaseGamification: {
		"Publish a completeness leaderboard per domain",
		"Recognise stewards who certify assets",
		"Link assets to glossary terms during reviews",
	},
	PhaseOperationalization: {
		"Gate new assets on a minimum completeness score",
		"Attach data quality monitors to certified assets",
		"Review completeness in quarterly governance meetings",
	},
}

// Tactics returns the recommended tactics for the phase.
func (p Phase) Tactics() []string {
	return append([]string(nil), tactics[p]...)
}
