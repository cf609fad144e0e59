package reduce

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
)

// Cluster runs Louvain community detection over the neighbor graph at the
// given resolution and returns one label per node. Labels are renumbered by
// the smallest member node id so repeated runs with the same seed produce the
// same labelling. Labels are unstable across seeds or resolutions, which is
// inherent to the algorithm.
func Cluster(g graph.Undirected, n int, resolution float64, seed int64) []int {
	src := rand.NewPCG(uint64(seed), uint64(seed))
	reduced := community.Modularize(g, resolution, src)
	comms := reduced.Communities()

	// Order communities by their smallest node id for stable label numbering.
	sort.Slice(comms, func(i, j int) bool {
		return minNodeID(comms[i]) < minNodeID(comms[j])
	})

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for label, comm := range comms {
		for _, node := range comm {
			id := int(node.ID())
			if id >= 0 && id < n {
				labels[id] = label
			}
		}
	}
	return labels
}

func minNodeID(nodes []graph.Node) int64 {
	min := nodes[0].ID()
	for _, node := range nodes[1:] {
		if node.ID() < min {
			min = node.ID()
		}
	}
	return min
}
