package entities

import "testing"

func proposalsWithCounts(counts ...uint64) []Proposal {
	proposals := make([]Proposal, len(counts))
	for i, count := range counts {
		proposals[i] = Proposal{
			Name:         "p",
			VoteCount:    count,
			VoterWeights: map[string]uint64{},
		}
	}
	return proposals
}

func TestWinningProposalPicksStrictMaximum(t *testing.T) {
	session := VotingSession{Proposals: proposalsWithCounts(5, 7, 3)}
	index, weight := session.WinningProposal()
	if index != 1 || weight != 7 {
		t.Fatalf("winner = (%d, %d), want (1, 7)", index, weight)
	}
}

func TestWinningProposalTieKeepsLowestIndex(t *testing.T) {
	session := VotingSession{Proposals: proposalsWithCounts(5, 7, 7)}
	index, weight := session.WinningProposal()
	if index != 1 || weight != 7 {
		t.Fatalf("tied winner = (%d, %d), want the first maximum (1, 7)", index, weight)
	}
}

func TestWinningProposalDefaultsToZero(t *testing.T) {
	noVotes := VotingSession{Proposals: proposalsWithCounts(0, 0)}
	if index, weight := noVotes.WinningProposal(); index != 0 || weight != 0 {
		t.Fatalf("no-vote winner = (%d, %d), want (0, 0)", index, weight)
	}
	empty := VotingSession{}
	if index, weight := empty.WinningProposal(); index != 0 || weight != 0 {
		t.Fatalf("empty winner = (%d, %d), want (0, 0)", index, weight)
	}
}

func TestFindProposalIndexReturnsFirstMatch(t *testing.T) {
	session := VotingSession{Proposals: []Proposal{
		{Name: "alpha"},
		{Name: "beta"},
		{Name: "beta"},
	}}
	index, found := session.FindProposalIndex("beta")
	if !found || index != 1 {
		t.Fatalf("index = (%d, %v), want (1, true)", index, found)
	}
	if _, found := session.FindProposalIndex("missing"); found {
		t.Fatal("unexpected match for missing proposal")
	}
}

func TestCumulativeWeightOutOfRange(t *testing.T) {
	session := VotingSession{Proposals: []Proposal{
		{Name: "alpha", VoterWeights: map[string]uint64{"alice": 4}},
	}}
	if got := session.CumulativeWeight(0, "alice"); got != 4 {
		t.Fatalf("weight = %d, want 4", got)
	}
	if got := session.CumulativeWeight(1, "alice"); got != 0 {
		t.Fatalf("out-of-range weight = %d, want 0", got)
	}
	if got := session.CumulativeWeight(-1, "alice"); got != 0 {
		t.Fatalf("negative-index weight = %d, want 0", got)
	}
}

func TestKnownKind(t *testing.T) {
	if !KnownKind(SessionKindNormal) || !KnownKind(SessionKindOfficial) {
		t.Fatal("expected both session kinds to be known")
	}
	if KnownKind(SessionKind("committee")) {
		t.Fatal("unexpected kind accepted")
	}
}
