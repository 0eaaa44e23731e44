package depgraph

import "sort"

// Components partitions the nodes into weakly connected components: two
// nodes share a component when they are joined by edges in either
// direction. Each component is sorted; components are ordered by their
// first member.
func (s *Snapshot) Components() [][]string {
	uf := newUnionFind()
	for id := range s.nodes {
		uf.add(id)
	}
	for from, deps := range s.out {
		for to := range deps {
			uf.union(from, to)
		}
	}

	groups := uf.groups()
	comps := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		comps = append(comps, members)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

// Connected reports whether every node, isolated ones included, lies in a
// single weakly connected component. The empty graph is connected.
func (s *Snapshot) Connected() bool {
	return len(s.Components()) <= 1
}
