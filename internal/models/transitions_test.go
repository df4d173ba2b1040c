package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveStagesFormFullLattice(t *testing.T) {
	active := []string{StageProspecting, StageQualification, StageProposal, StageNegotiation}

	for _, from := range active {
		for _, to := range active {
			if from == to {
				continue
			}
			assert.True(t, CanTransition(StageTransitions, from, to),
				"%s -> %s should be legal", from, to)
		}
		assert.True(t, CanTransition(StageTransitions, from, StageClosedWon))
		assert.True(t, CanTransition(StageTransitions, from, StageClosedLost))
	}
}

func TestClosedStagesAreTerminal(t *testing.T) {
	all := []string{
		StageProspecting, StageQualification, StageProposal,
		StageNegotiation, StageClosedWon, StageClosedLost,
	}

	for _, closed := range []string{StageClosedWon, StageClosedLost} {
		for _, to := range all {
			assert.False(t, CanTransition(StageTransitions, closed, to),
				"%s -> %s must be illegal", closed, to)
		}
	}
}

func TestStageProbabilityTable(t *testing.T) {
	assert.Equal(t, 10, StageProbability[StageProspecting])
	assert.Equal(t, 25, StageProbability[StageQualification])
	assert.Equal(t, 50, StageProbability[StageProposal])
	assert.Equal(t, 75, StageProbability[StageNegotiation])
	assert.Equal(t, 100, StageProbability[StageClosedWon])
	assert.Equal(t, 0, StageProbability[StageClosedLost])
}

func TestQuoteTransitionTable(t *testing.T) {
	legal := [][2]string{
		{QuoteStatusDraft, QuoteStatusPendingManager},
		{QuoteStatusPendingManager, QuoteStatusApproved},
		{QuoteStatusPendingManager, QuoteStatusRejected},
		{QuoteStatusPendingManager, QuoteStatusPendingDirector},
		{QuoteStatusPendingDirector, QuoteStatusApproved},
		{QuoteStatusPendingDirector, QuoteStatusRejected},
		{QuoteStatusApproved, QuoteStatusSent},
		{QuoteStatusRejected, QuoteStatusDraft},
	}
	for _, pair := range legal {
		assert.True(t, CanTransition(QuoteTransitions, pair[0], pair[1]),
			"%s -> %s should be legal", pair[0], pair[1])
	}

	illegal := [][2]string{
		{QuoteStatusRejected, QuoteStatusApproved},
		{QuoteStatusDraft, QuoteStatusApproved},
		{QuoteStatusDraft, QuoteStatusSent},
		{QuoteStatusApproved, QuoteStatusDraft},
		{QuoteStatusPendingDirector, QuoteStatusPendingManager},
		{QuoteStatusSent, QuoteStatusDraft},
		{QuoteStatusSent, QuoteStatusApproved},
	}
	for _, pair := range illegal {
		assert.False(t, CanTransition(QuoteTransitions, pair[0], pair[1]),
			"%s -> %s must be illegal", pair[0], pair[1])
	}
}

func TestSentIsTerminal(t *testing.T) {
	for _, to := range []string{
		QuoteStatusDraft, QuoteStatusPendingManager, QuoteStatusPendingDirector,
		QuoteStatusApproved, QuoteStatusRejected,
	} {
		assert.False(t, CanTransition(QuoteTransitions, QuoteStatusSent, to))
	}
}

func TestCanTransitionUnknownState(t *testing.T) {
	assert.False(t, CanTransition(QuoteTransitions, "BOGUS", QuoteStatusDraft))
	assert.False(t, CanTransition(StageTransitions, "", StageProspecting))
}

func TestStageHelpers(t *testing.T) {
	assert.True(t, IsValidStage(StageNegotiation))
	assert.False(t, IsValidStage("negotiation"))

	assert.True(t, IsClosedStage(StageClosedWon))
	assert.True(t, IsClosedStage(StageClosedLost))
	assert.False(t, IsClosedStage(StageProposal))
}
