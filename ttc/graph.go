// Package ttc implements the Top Trading Cycle solver: a pure,
// deterministic function from a preference graph to a reallocation.
// Determinism is the entire point — this algorithm runs both as host-side
// Go and, byte-for-byte, inside the zkVM guest, so every traversal here is
// keyed off explicit insertion order rather than map iteration. Vertices
// live in a slice and preferences are stored as indices into that slice,
// never as pointers, so the output is independent of allocator layout.
package ttc

import (
	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

// PreferenceRecord is one deposited token's ownership and ranked wishlist,
// as received from the chain client.
type PreferenceRecord struct {
	Owner       common.Address
	TokenHash   common.Hash
	Preferences []common.Hash
}

// vertex is the index-space representation of one deposited token. No
// vertex ever holds a pointer or reference to another vertex; cycles exist
// only via the Prefs index slice, never in Go's heap graph.
type vertex struct {
	hash  common.Hash
	owner common.Address
	// prefs holds the indices (into Graph.vertices) of each ranked
	// preference, most- to least-preferred, in the same order the input
	// record specified.
	prefs []int
}

// Graph is the preference graph: vertices = deposited token hashes, each
// with an owner and an ordered out-list of preference indices.
type Graph struct {
	vertices []vertex
	index    map[common.Hash]int
}

// NewGraph validates and builds a Graph from the given records. It rejects
// a preference entry pointing to an unknown hash, a self-loop, and a
// duplicate preference within one record's list. Input order of records
// becomes the insertion order used for all later deterministic traversal.
func NewGraph(records []PreferenceRecord) (*Graph, error) {
	index := make(map[common.Hash]int, len(records))
	for i, r := range records {
		if _, dup := index[r.TokenHash]; dup {
			return nil, errDuplicateVertex(r.TokenHash)
		}
		index[r.TokenHash] = i
	}

	vertices := make([]vertex, len(records))
	for i, r := range records {
		seen := make(map[common.Hash]struct{}, len(r.Preferences))
		prefs := make([]int, 0, len(r.Preferences))
		for _, p := range r.Preferences {
			if p == r.TokenHash {
				return nil, errSelfLoop(r.TokenHash)
			}
			if _, dup := seen[p]; dup {
				return nil, errDuplicatePreference(r.TokenHash, p)
			}
			seen[p] = struct{}{}
			idx, ok := index[p]
			if !ok {
				return nil, errUnknownHash(r.TokenHash, p)
			}
			prefs = append(prefs, idx)
		}
		vertices[i] = vertex{hash: r.TokenHash, owner: r.Owner, prefs: prefs}
	}

	return &Graph{vertices: vertices, index: index}, nil
}

func (g *Graph) Len() int { return len(g.vertices) }

func (g *Graph) OwnerOf(h common.Hash) (common.Address, bool) {
	idx, ok := g.index[h]
	if !ok {
		return common.Address{}, false
	}
	return g.vertices[idx].owner, true
}

func errSelfLoop(h common.Hash) error {
	return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagInvalidPreferences, h.Hex(),
		"token %s lists itself as a preference", h.Hex())
}

func errDuplicatePreference(h, dup common.Hash) error {
	return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagInvalidPreferences, h.Hex(),
		"token %s lists preference %s more than once", h.Hex(), dup.Hex())
}

func errUnknownHash(h, ref common.Hash) error {
	return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagInvalidPreferences, ref.Hex(),
		"token %s prefers unknown token %s", h.Hex(), ref.Hex())
}

func errDuplicateVertex(h common.Hash) error {
	return ttcerr.New(ttcerr.InvalidInput, ttcerr.TagInvalidPreferences, h.Hex(),
		"token %s appears more than once in the deposited set", h.Hex())
}
