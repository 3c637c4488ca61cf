package ttc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttc-protocol/ttc-monitor/common"
)

func addr(b byte) common.Address {
	var a common.Address
	a[len(a)-1] = b
	return a
}

func hsh(b byte) common.Hash {
	var h common.Hash
	h[len(h)-1] = b
	return h
}

// TestThreeCycle: a single three-way cycle resolves in one round.
func TestThreeCycle(t *testing.T) {
	A, B, C := hsh(1), hsh(2), hsh(3)
	owner1, owner2, owner3 := addr(1), addr(2), addr(3)

	g, err := NewGraph([]PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B, C}},
		{Owner: owner2, TokenHash: B, Preferences: []common.Hash{C, A}},
		{Owner: owner3, TokenHash: C, Preferences: []common.Hash{A, B}},
	})
	require.NoError(t, err)

	got := Solve(g)
	require.Equal(t, Reallocation{
		{TokenHash: A, NewOwner: owner2},
		{TokenHash: B, NewOwner: owner3},
		{TokenHash: C, NewOwner: owner1},
	}, got)

	assertIdempotent(t, g, got)
}

// TestTwoCyclePlusSingleton: a two-way swap plus a vertex with an empty
// preference list, which stays unmatched.
func TestTwoCyclePlusSingleton(t *testing.T) {
	A, B, C := hsh(1), hsh(2), hsh(3)
	owner1, owner2, owner3 := addr(1), addr(2), addr(3)

	g, err := NewGraph([]PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B}},
		{Owner: owner2, TokenHash: B, Preferences: []common.Hash{A}},
		{Owner: owner3, TokenHash: C, Preferences: nil},
	})
	require.NoError(t, err)

	got := Solve(g)
	require.Equal(t, Reallocation{
		{TokenHash: A, NewOwner: owner2},
		{TokenHash: B, NewOwner: owner1},
	}, got)

	assertIdempotent(t, g, got)
}

// TestChainWithNoCycle: a preference chain that never closes leaves
// everything unmatched.
func TestChainWithNoCycle(t *testing.T) {
	A, B, C := hsh(1), hsh(2), hsh(3)
	owner1, owner2, owner3 := addr(1), addr(2), addr(3)

	g, err := NewGraph([]PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B}},
		{Owner: owner2, TokenHash: B, Preferences: []common.Hash{C}},
		{Owner: owner3, TokenHash: C, Preferences: nil},
	})
	require.NoError(t, err)

	got := Solve(g)
	require.Empty(t, got)
}

// TestSecondRoundCycle exercises a cycle that only becomes visible once
// an earlier round removes a blocking vertex: W/X form an immediate
// cycle; Y's first choice is W, so Y cannot match until round 2, when
// its surviving preference (Z) closes a new cycle with Z.
func TestSecondRoundCycle(t *testing.T) {
	W, X, Y, Z := hsh(1), hsh(2), hsh(3), hsh(4)
	owner1, owner2, owner3, owner4 := addr(1), addr(2), addr(3), addr(4)

	g, err := NewGraph([]PreferenceRecord{
		{Owner: owner1, TokenHash: W, Preferences: []common.Hash{X}},
		{Owner: owner2, TokenHash: X, Preferences: []common.Hash{W}},
		{Owner: owner3, TokenHash: Y, Preferences: []common.Hash{W, Z}},
		{Owner: owner4, TokenHash: Z, Preferences: []common.Hash{Y}},
	})
	require.NoError(t, err)

	got := Solve(g)
	require.Equal(t, Reallocation{
		{TokenHash: W, NewOwner: owner2},
		{TokenHash: X, NewOwner: owner1},
		{TokenHash: Y, NewOwner: owner4},
		{TokenHash: Z, NewOwner: owner3},
	}, got)

	assertIdempotent(t, g, got)
}

func TestSameOwnerSwapOmitted(t *testing.T) {
	// Two tokens held by the same owner can still form a 2-cycle in the
	// graph; since the computed new owner equals the original owner for
	// both, neither transfer is real and both must be omitted.
	A, B := hsh(1), hsh(2)
	owner1 := addr(1)

	g, err := NewGraph([]PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B}},
		{Owner: owner1, TokenHash: B, Preferences: []common.Hash{A}},
	})
	require.NoError(t, err)

	got := Solve(g)
	require.Empty(t, got)
}

func TestRejectsSelfLoop(t *testing.T) {
	A := hsh(1)
	_, err := NewGraph([]PreferenceRecord{
		{Owner: addr(1), TokenHash: A, Preferences: []common.Hash{A}},
	})
	require.Error(t, err)
}

func TestRejectsDuplicatePreference(t *testing.T) {
	A, B := hsh(1), hsh(2)
	_, err := NewGraph([]PreferenceRecord{
		{Owner: addr(1), TokenHash: A, Preferences: []common.Hash{B, B}},
		{Owner: addr(2), TokenHash: B, Preferences: nil},
	})
	require.Error(t, err)
}

func TestRejectsUnknownHash(t *testing.T) {
	A, ghost := hsh(1), hsh(99)
	_, err := NewGraph([]PreferenceRecord{
		{Owner: addr(1), TokenHash: A, Preferences: []common.Hash{ghost}},
	})
	require.Error(t, err)
}

// TestStableUnderLowerPreferenceChurn: entries below a matched vertex's
// chosen index, and reordering of an unmatched vertex's list, must not
// change the output.
func TestStableUnderLowerPreferenceChurn(t *testing.T) {
	A, B, C := hsh(1), hsh(2), hsh(3)
	owner1, owner2, owner3 := addr(1), addr(2), addr(3)

	// A and B form the only cycle; A's chosen preference is index 0 (B),
	// so appending C below it must not change the output. C never
	// matches, so reordering C's whole list must not change it either.
	base := []PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B}},
		{Owner: owner2, TokenHash: B, Preferences: []common.Hash{A}},
		{Owner: owner3, TokenHash: C, Preferences: []common.Hash{A, B}},
	}
	churned := []PreferenceRecord{
		{Owner: owner1, TokenHash: A, Preferences: []common.Hash{B, C}},
		{Owner: owner2, TokenHash: B, Preferences: []common.Hash{A}},
		{Owner: owner3, TokenHash: C, Preferences: []common.Hash{B, A}},
	}

	g1, err := NewGraph(base)
	require.NoError(t, err)
	g2, err := NewGraph(churned)
	require.NoError(t, err)

	require.Equal(t, Solve(g1), Solve(g2))
}

// TestSolveIsDeterministicAcrossRebuilds solves the same nine-vertex
// ring twice from independently constructed graphs; the outputs must be
// identical element for element, since downstream the reallocation is
// hashed into the proven journal.
func TestSolveIsDeterministicAcrossRebuilds(t *testing.T) {
	records := func() []PreferenceRecord {
		out := make([]PreferenceRecord, 0, 9)
		for i := byte(1); i <= 9; i++ {
			out = append(out, PreferenceRecord{
				Owner:     addr(i),
				TokenHash: hsh(i),
				Preferences: []common.Hash{
					hsh(i%9 + 1),     // ring successor
					hsh((i+3)%9 + 1), // never reached
				},
			})
		}
		return out
	}

	g1, err := NewGraph(records())
	require.NoError(t, err)
	g2, err := NewGraph(records())
	require.NoError(t, err)

	first := Solve(g1)
	second := Solve(g2)
	require.Len(t, first, 9)
	require.Equal(t, first, second)

	assertIdempotent(t, g1, first)
}

func assertIdempotent(t *testing.T, g *Graph, r Reallocation) {
	t.Helper()
	next, err := NewGraph(g.Apply(r))
	require.NoError(t, err)
	require.Empty(t, Solve(next))
}
