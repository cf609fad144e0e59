package reduce

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// KNN returns, for each row of points, the indices of its k nearest other
// rows by Euclidean distance. Ties are broken by row index so the result is
// deterministic.
func KNN(points *mat.Dense, k int) [][]int {
	n, d := points.Dims()
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		out := make([][]int, n)
		return out
	}

	type cand struct {
		idx  int
		dist float64
	}
	neighbors := make([][]int, n)
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		ri := points.RawRowView(i)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			rj := points.RawRowView(j)
			sum := 0.0
			for c := 0; c < d; c++ {
				diff := ri[c] - rj[c]
				sum += diff * diff
			}
			cands = append(cands, cand{idx: j, dist: sum})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		nn := make([]int, k)
		for c := 0; c < k; c++ {
			nn[c] = cands[c].idx
		}
		neighbors[i] = nn
	}
	return neighbors
}

// NeighborGraph builds the undirected neighbor graph from kNN lists. Edges
// present in both directions (mutual neighbors) get weight 2, others weight 1,
// so community detection favours mutual links.
func NeighborGraph(neighbors [][]int) *simple.WeightedUndirectedGraph {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := range neighbors {
		g.AddNode(simple.Node(i))
	}

	type pair struct{ a, b int }
	seen := make(map[pair]int)
	for i, nn := range neighbors {
		for _, j := range nn {
			a, b := i, j
			if a > b {
				a, b = b, a
			}
			seen[pair{a, b}]++
		}
	}
	for p, count := range seen {
		w := 1.0
		if count > 1 {
			w = 2.0
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(p.a), simple.Node(p.b), w))
	}
	return g
}

var _ graph.Undirected = (*simple.WeightedUndirectedGraph)(nil)
