package replay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickButtonTextFilter(t *testing.T) {
	cands := []ButtonCandidate{
		{Text: "Sign in", Index: 0},
		{Text: "publish now", Index: 1},
		{Text: "PUBLISH", Index: 2},
	}
	got, ok := pickButton(cands, "Publish", MatchLastInDocument())
	require.True(t, ok)
	require.Equal(t, 2, got.Index, "matching is case-insensitive containment")

	_, ok = pickButton(cands, "Delete", MatchLastInDocument())
	require.False(t, ok)
}

func TestMatchExactID(t *testing.T) {
	cands := []ButtonCandidate{
		{Text: "Publish", ID: "share", Index: 0},
		{Text: "Publish", ID: "publish", Index: 1},
	}
	got, ok := pickButton(cands, "publish", MatchExactID("publish"), MatchLastInDocument())
	require.True(t, ok)
	require.Equal(t, "publish", got.ID)
}

func TestMatcherPriorityOrder(t *testing.T) {
	cands := []ButtonCandidate{
		{Text: "Publish", Index: 0, Y: 900},
		{Text: "Publish", Index: 5, Y: 100},
	}
	// No id matches, so the next matcher decides.
	got, ok := pickButton(cands, "publish", MatchExactID("publish"), MatchMaxY())
	require.True(t, ok)
	require.Equal(t, 0, got.Index, "max-Y matcher prefers the lowest button on the page")

	got, ok = pickButton(cands, "publish", MatchExactID("publish"), MatchLastInDocument())
	require.True(t, ok)
	require.Equal(t, 5, got.Index)
}

func TestPickButtonFallsBackToFirstMatch(t *testing.T) {
	cands := []ButtonCandidate{
		{Text: "Publish", Index: 3},
		{Text: "Publish", Index: 9},
	}
	got, ok := pickButton(cands, "publish")
	require.True(t, ok)
	require.Equal(t, 3, got.Index, "no matchers means historical first-match behavior")
}
