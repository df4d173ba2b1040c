package models

// StageProbability maps each opportunity stage to its fixed probability.
var StageProbability = map[string]int{
	StageProspecting:   10,
	StageQualification: 25,
	StageProposal:      50,
	StageNegotiation:   75,
	StageClosedWon:     100,
	StageClosedLost:    0,
}

// StageTransitions lists the legal stage moves. The four active stages form
// a full lattice (sales motion is non-linear) and each of them may close
// won or lost. Closed stages have no outgoing transitions.
var StageTransitions = map[string]map[string]bool{
	StageProspecting: {
		StageQualification: true, StageProposal: true, StageNegotiation: true,
		StageClosedWon: true, StageClosedLost: true,
	},
	StageQualification: {
		StageProspecting: true, StageProposal: true, StageNegotiation: true,
		StageClosedWon: true, StageClosedLost: true,
	},
	StageProposal: {
		StageProspecting: true, StageQualification: true, StageNegotiation: true,
		StageClosedWon: true, StageClosedLost: true,
	},
	StageNegotiation: {
		StageProspecting: true, StageQualification: true, StageProposal: true,
		StageClosedWon: true, StageClosedLost: true,
	},
	StageClosedWon:  {},
	StageClosedLost: {},
}

// QuoteTransitions lists the legal quote status moves. SENT is terminal;
// REJECTED may only be reopened to DRAFT.
var QuoteTransitions = map[string]map[string]bool{
	QuoteStatusDraft: {
		QuoteStatusPendingManager: true,
	},
	QuoteStatusPendingManager: {
		QuoteStatusApproved:        true,
		QuoteStatusRejected:        true,
		QuoteStatusPendingDirector: true,
	},
	QuoteStatusPendingDirector: {
		QuoteStatusApproved: true,
		QuoteStatusRejected: true,
	},
	QuoteStatusApproved: {
		QuoteStatusSent: true,
	},
	QuoteStatusRejected: {
		QuoteStatusDraft: true,
	},
	QuoteStatusSent: {},
}

// CanTransition reports whether current -> target is legal in the table.
// Unknown current states have no legal moves.
func CanTransition(table map[string]map[string]bool, current, target string) bool {
	next, ok := table[current]
	if !ok {
		return false
	}
	return next[target]
}

// IsValidStage reports whether s names a known opportunity stage.
func IsValidStage(s string) bool {
	_, ok := StageProbability[s]
	return ok
}

// IsClosedStage reports whether s is a terminal opportunity stage.
func IsClosedStage(s string) bool {
	return s == StageClosedWon || s == StageClosedLost
}
