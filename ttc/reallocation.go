package ttc

import "github.com/ttc-protocol/ttc-monitor/common"

// Transfer is one (token_hash, new_owner) pair.
type Transfer struct {
	TokenHash common.Hash
	NewOwner  common.Address
}

// Reallocation is the ordered output of one Solve call. Invariants: each
// hash appears at most once, the new owner of a hash is the original
// owner of some hash in the same cycle, the set of new owners is a
// permutation of original owners over the covered hashes, and every
// covered cycle is closed. Tokens whose owner is unchanged never appear
// here.
type Reallocation []Transfer

// Apply returns the set of PreferenceRecords that would result from
// applying r to g's current ownership, preferences untouched. It exists so
// callers (and tests) can check idempotence: re-solving after Apply must
// yield an empty Reallocation.
func (g *Graph) Apply(r Reallocation) []PreferenceRecord {
	newOwner := make(map[common.Hash]common.Address, len(r))
	for _, t := range r {
		newOwner[t.TokenHash] = t.NewOwner
	}

	out := make([]PreferenceRecord, len(g.vertices))
	for i, v := range g.vertices {
		owner := v.owner
		if o, ok := newOwner[v.hash]; ok {
			owner = o
		}
		prefs := make([]common.Hash, len(v.prefs))
		for j, idx := range v.prefs {
			prefs[j] = g.vertices[idx].hash
		}
		out[i] = PreferenceRecord{Owner: owner, TokenHash: v.hash, Preferences: prefs}
	}
	return out
}
