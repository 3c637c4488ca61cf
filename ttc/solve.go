package ttc

// walkState tags a vertex during one round's cycle-detection pass.
type walkState uint8

const (
	unvisited walkState = iota
	onPath
	resolved
)

// Solve extracts top trading cycles from g round by round until none
// remain and returns the resulting Reallocation. g is read-only; Solve
// never mutates it.
//
// Each round:
//  1. every remaining vertex takes the edge to its highest-ranked
//     preference that is still remaining (a vertex with no such
//     preference is a sink this round);
//  2. the union of those edges is a partial function on the remaining
//     vertices (out-degree <= 1); every directed cycle in it is a top
//     trading cycle;
//  3. cycle vertices are matched — v's new owner becomes the owner of the
//     vertex v points to — and removed from the remaining set;
//  4. a round that finds no cycles leaves every remaining vertex
//     unmatched and terminates the algorithm.
//
// Cycle discovery within a round walks remaining vertices in their
// original insertion order, coloring each vertex unvisited/onPath/resolved
// as it goes (classic functional-graph cycle detection) so the result
// depends only on input order, never on map iteration or allocator
// layout.
func Solve(g *Graph) Reallocation {
	n := g.Len()
	removed := make([]bool, n)
	result := make(Reallocation, 0)

	for {
		next := computeNextEdges(g, removed)
		cycles := findCycles(n, removed, next)
		if len(cycles) == 0 {
			break
		}
		for _, cycle := range cycles {
			for _, v := range cycle {
				target := g.vertices[next[v]]
				if target.owner != g.vertices[v].owner {
					result = append(result, Transfer{
						TokenHash: g.vertices[v].hash,
						NewOwner:  target.owner,
					})
				}
				removed[v] = true
			}
		}
	}

	return result
}

// computeNextEdges returns, for every remaining vertex, the index of its
// highest-ranked preference that has not been removed, or -1 if none
// survives.
func computeNextEdges(g *Graph, removed []bool) []int {
	next := make([]int, g.Len())
	for i, v := range g.vertices {
		if removed[i] {
			next[i] = -1
			continue
		}
		next[i] = -1
		for _, p := range v.prefs {
			if !removed[p] {
				next[i] = p
				break
			}
		}
	}
	return next
}

// findCycles walks every remaining, not-yet-resolved vertex in insertion
// order and returns the directed cycles discovered this round, each cycle
// itself ordered starting at the vertex where the walk closed the loop.
func findCycles(n int, removed []bool, next []int) [][]int {
	state := make([]walkState, n)
	var cycles [][]int

	for start := 0; start < n; start++ {
		if removed[start] || state[start] != unvisited {
			continue
		}

		var path []int
		pos := make(map[int]int)
		cur := start
		for {
			switch state[cur] {
			case onPath:
				// Walked back into our own path: a closed cycle from
				// here to the end of path.
				cycles = append(cycles, append([]int(nil), path[pos[cur]:]...))
			case resolved:
				// Ran into a vertex some earlier walk already resolved
				// (a dead end or a vertex inside a previously found
				// cycle); this path never closes.
			default: // unvisited
				state[cur] = onPath
				pos[cur] = len(path)
				path = append(path, cur)
				if next[cur] != -1 {
					cur = next[cur]
					continue
				}
				// Sink: dead end, no cycle.
			}
			break
		}

		for _, v := range path {
			state[v] = resolved
		}
	}

	return cycles
}
