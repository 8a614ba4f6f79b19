// Package coincidence implements C5: grouping per-isotope particles
// whose time supports overlap into multi-element particles. The sweep
// ordering is deterministic: primary key start_time, tie-broken by end
// time, then isotope mass, then element symbol, so output is
// independent of input isotope order.
package coincidence

import (
	"sort"

	"github.com/google/uuid"

	"github.com/icpms/particle-engine/model"
)

// Params configures the merge.
type Params struct {
	OverlapThresholdPercentage float64 // 0-100, default 50
}

type node struct {
	isotope model.IsotopeKey
	idx     int // index into that isotope's particle slice
	start   float64
	end     float64
}

// Merge groups Particles across isotopes into MultiElementParticles.
// particlesByIsotope holds, for each isotope in the sample, its own
// particle list (already segmented by C4). The input map's iteration
// order never affects the result: every ordering-sensitive step sorts
// explicitly first.
func Merge(particlesByIsotope map[model.IsotopeKey][]model.Particle, p Params) []model.MultiElementParticle {
	nodes := flatten(particlesByIsotope)
	if len(nodes) == 0 {
		return nil
	}

	adj := buildAdjacency(nodes, p.OverlapThresholdPercentage)
	components := connectedComponents(len(nodes), adj)

	var out []model.MultiElementParticle
	for _, comp := range components {
		mep, ok := buildCluster(nodes, comp, particlesByIsotope)
		if ok {
			out = append(out, mep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].EndTime < out[j].EndTime
	})
	return out
}

// flatten builds the sweep's node list, sorted by start_time with ties
// broken by end_time, then (isotope mass ascending, element symbol
// lexicographic) per the determinism contract.
func flatten(byIsotope map[model.IsotopeKey][]model.Particle) []node {
	var nodes []node
	for isotope, particles := range byIsotope {
		for idx, particle := range particles {
			nodes = append(nodes, node{
				isotope: isotope,
				idx:     idx,
				start:   particle.StartTime(),
				end:     particle.EndTime(),
			})
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].start != nodes[j].start {
			return nodes[i].start < nodes[j].start
		}
		if nodes[i].end != nodes[j].end {
			return nodes[i].end < nodes[j].end
		}
		if nodes[i].isotope.MassAmu != nodes[j].isotope.MassAmu {
			return nodes[i].isotope.MassAmu < nodes[j].isotope.MassAmu
		}
		return nodes[i].isotope.Element < nodes[j].isotope.Element
	})
	return nodes
}

// buildAdjacency runs the sweep: for each node, test coincidence
// against every later node whose start is still within reach (once a
// later node's start exceeds the current node's end, no further node
// can coincide with it since the sweep is start-time ordered). Only
// nodes of distinct isotopes are linked.
func buildAdjacency(nodes []node, overlapPct float64) [][]int {
	adj := make([][]int, len(nodes))
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if nodes[j].start > nodes[i].end {
				break
			}
			if nodes[i].isotope != nodes[j].isotope && coincident(nodes[i], nodes[j], overlapPct) {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	return adj
}

// coincident implements overlap(A,B)/min(|A|,|B|)*100 >= threshold.
// Reflexive and symmetric but not transitive, as the sweep graph
// construction assumes.
func coincident(a, b node, thresholdPct float64) bool {
	overlap := minF(a.end, b.end) - maxF(a.start, b.start)
	if overlap < 0 {
		overlap = 0
	}
	durA := a.end - a.start
	durB := b.end - b.start
	minDur := minF(durA, durB)
	if minDur <= 0 {
		return false
	}
	return overlap/minDur*100 >= thresholdPct
}

// connectedComponents finds connected components over the coincidence
// graph restricted to distinct isotopes. Intra-isotope edges never
// exist here (buildAdjacency only links nodes of distinct isotopes),
// but components can still contain
// more than one node of the same isotope if both happen to coincide
// with a shared third isotope's particle — buildCluster resolves that
// by keeping only the largest-total_counts particle per isotope.
func connectedComponents(n int, adj [][]int) [][]int {
	visited := make([]bool, n)
	var components [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		var comp []int
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, next := range adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

// buildCluster converts a connected component into a MultiElementParticle.
// Intra-isotope dedup keeps the particle with the largest TotalCounts.
// A component reducing to a single distinct isotope is not a
// multi-element particle and is dropped (ok=false).
func buildCluster(nodes []node, comp []int, byIsotope map[model.IsotopeKey][]model.Particle) (model.MultiElementParticle, bool) {
	best := make(map[model.IsotopeKey]model.Particle)
	for _, idx := range comp {
		n := nodes[idx]
		particle := byIsotope[n.isotope][n.idx]
		if cur, ok := best[n.isotope]; !ok || particle.TotalCounts > cur.TotalCounts {
			best[n.isotope] = particle
		}
	}
	if len(best) < 2 {
		return model.MultiElementParticle{}, false
	}

	elements := make(map[model.IsotopeKey]float64, len(best))
	refs := make(map[model.IsotopeKey]uuid.UUID, len(best))
	minStart := 0.0
	maxEnd := 0.0
	first := true
	for isotope, particle := range best {
		elements[isotope] = particle.TotalCounts
		refs[isotope] = particle.Ref
		if first || particle.StartTime() < minStart {
			minStart = particle.StartTime()
		}
		if first || particle.EndTime() > maxEnd {
			maxEnd = particle.EndTime()
		}
		first = false
	}
	return model.MultiElementParticle{StartTime: minStart, EndTime: maxEnd, Elements: elements, ElementRefs: refs}, true
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
