// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bayes

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultMaxIterations caps message-passing sweeps before the
	// result is flagged as unconverged.
	DefaultMaxIterations = 100
	// convergenceTolerance is the max message delta treated as
	// converged.
	convergenceTolerance = 1e-6
	// maxAdjustment bounds how far inference may move a score.
	maxAdjustment = 0.15
)

// InferenceResult carries posterior marginals for every node.
// Converged is false when message passing hit its iteration cap; the
// marginals are still the best available estimate.
type InferenceResult struct {
	Marginals  map[string][]float64 `json:"marginals"`
	Converged  bool                 `json:"converged"`
	Iterations int                  `json:"iterations"`
}

// ExpectedLevel maps a node's marginal to a [0,1] expectation over its
// state index.
func (r *InferenceResult) ExpectedLevel(name string) (float64, bool) {
	marginal, ok := r.Marginals[name]
	if !ok {
		return 0, false
	}
	level := 0.0
	for state, p := range marginal {
		level += float64(state) * p
	}
	return level / float64(NumStates-1), true
}

// ----------------------------------------------------------------------------
// Potentials
// ----------------------------------------------------------------------------

// potential is a table over a set of 3-state variables. The first
// variable is the least significant index digit.
type potential struct {
	vars   []string
	values []float64
}

func newUnitPotential(vars []string) *potential {
	size := 1
	for range vars {
		size *= NumStates
	}
	values := make([]float64, size)
	for i := range values {
		values[i] = 1.0
	}
	return &potential{vars: vars, values: values}
}

func (p *potential) varIndex(name string) int {
	for i, v := range p.vars {
		if v == name {
			return i
		}
	}
	return -1
}

// assignmentIndex computes the flat index for states given per-var.
func (p *potential) assignmentIndex(states map[string]int) int {
	index := 0
	stride := 1
	for _, v := range p.vars {
		index += states[v] * stride
		stride *= NumStates
	}
	return index
}

// forEachAssignment walks every full assignment of p's variables.
func (p *potential) forEachAssignment(fn func(states map[string]int, index int)) {
	states := make(map[string]int, len(p.vars))
	for _, v := range p.vars {
		states[v] = 0
	}
	for index := range p.values {
		fn(states, index)
		for _, v := range p.vars {
			states[v]++
			if states[v] < NumStates {
				break
			}
			states[v] = 0
		}
	}
}

// multiply returns p * q over the union of their variables.
func (p *potential) multiply(q *potential) *potential {
	union := make([]string, len(p.vars))
	copy(union, p.vars)
	for _, v := range q.vars {
		if p.varIndex(v) == -1 {
			union = append(union, v)
		}
	}
	out := newUnitPotential(union)
	out.forEachAssignment(func(states map[string]int, index int) {
		out.values[index] = p.values[p.assignmentIndex(states)] * q.values[q.assignmentIndex(states)]
	})
	return out
}

// marginalize sums p down to the given variable subset.
func (p *potential) marginalize(keep []string) *potential {
	out := newUnitPotential(keep)
	for i := range out.values {
		out.values[i] = 0
	}
	p.forEachAssignment(func(states map[string]int, index int) {
		out.values[out.assignmentIndex(states)] += p.values[index]
	})
	return out
}

// normalize scales p to sum to 1; an all-zero table becomes uniform.
func (p *potential) normalize() {
	total := 0.0
	for _, v := range p.values {
		total += v
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(p.values))
		for i := range p.values {
			p.values[i] = uniform
		}
		return
	}
	for i := range p.values {
		p.values[i] /= total
	}
}

// reduceEvidence zeroes entries inconsistent with observed states.
func (p *potential) reduceEvidence(evidence map[string]int) {
	if len(evidence) == 0 {
		return
	}
	relevant := false
	for _, v := range p.vars {
		if _, ok := evidence[v]; ok {
			relevant = true
			break
		}
	}
	if !relevant {
		return
	}
	p.forEachAssignment(func(states map[string]int, index int) {
		for v, observed := range evidence {
			if p.varIndex(v) != -1 && states[v] != observed {
				p.values[index] = 0
				return
			}
		}
	})
}

// ----------------------------------------------------------------------------
// Junction tree
// ----------------------------------------------------------------------------

type cliqueEdge struct {
	a, b   int
	sepset []string
}

type junctionTree struct {
	cliques [][]string
	edges   []cliqueEdge
}

// buildJunctionTree moralizes the DAG, triangulates it with min-fill
// elimination, and connects the resulting cliques with a maximum
// spanning tree over separator sizes. Disconnected networks yield a
// forest, which message passing handles per component.
func (net *Network) buildJunctionTree() *junctionTree {
	names := net.Nodes()
	adjacency := make(map[string]map[string]bool, len(names))
	for _, name := range names {
		adjacency[name] = make(map[string]bool)
	}
	connect := func(a, b string) {
		adjacency[a][b] = true
		adjacency[b][a] = true
	}
	// Moralize: keep each edge, marry co-parents.
	for _, name := range names {
		parents := net.nodes[name].Parents
		for _, parent := range parents {
			connect(parent, name)
		}
		for i := 0; i < len(parents); i++ {
			for j := i + 1; j < len(parents); j++ {
				connect(parents[i], parents[j])
			}
		}
	}

	cliques := triangulateMinFill(names, adjacency)
	tree := &junctionTree{cliques: cliques}
	tree.edges = maximumSpanningEdges(cliques)
	return tree
}

// triangulateMinFill eliminates vertices in min-fill order, collecting
// the elimination cliques and dropping subsumed ones.
func triangulateMinFill(names []string, adjacency map[string]map[string]bool) [][]string {
	remaining := make(map[string]bool, len(names))
	for _, name := range names {
		remaining[name] = true
	}

	var cliques [][]string
	for len(remaining) > 0 {
		victim := pickMinFill(names, remaining, adjacency)
		neighbors := liveNeighbors(victim, remaining, adjacency)

		clique := append([]string{victim}, neighbors...)
		sort.Strings(clique)
		if !subsumed(clique, cliques) {
			cliques = append(cliques, clique)
		}

		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				adjacency[neighbors[i]][neighbors[j]] = true
				adjacency[neighbors[j]][neighbors[i]] = true
			}
		}
		delete(remaining, victim)
	}
	return cliques
}

// pickMinFill chooses the live vertex whose elimination adds the
// fewest fill-in edges, lexicographic on ties.
func pickMinFill(names []string, remaining map[string]bool, adjacency map[string]map[string]bool) string {
	best := ""
	bestFill := math.MaxInt
	for _, name := range names {
		if !remaining[name] {
			continue
		}
		neighbors := liveNeighbors(name, remaining, adjacency)
		fill := 0
		for i := 0; i < len(neighbors); i++ {
			for j := i + 1; j < len(neighbors); j++ {
				if !adjacency[neighbors[i]][neighbors[j]] {
					fill++
				}
			}
		}
		if fill < bestFill || (fill == bestFill && name < best) {
			best = name
			bestFill = fill
		}
	}
	return best
}

func liveNeighbors(name string, remaining map[string]bool, adjacency map[string]map[string]bool) []string {
	var out []string
	for neighbor := range adjacency[name] {
		if remaining[neighbor] {
			out = append(out, neighbor)
		}
	}
	sort.Strings(out)
	return out
}

func subsumed(clique []string, cliques [][]string) bool {
	for _, existing := range cliques {
		if containsAll(existing, clique) {
			return true
		}
	}
	return false
}

// containsAll assumes both slices are sorted.
func containsAll(super, sub []string) bool {
	i := 0
	for _, v := range sub {
		for i < len(super) && super[i] < v {
			i++
		}
		if i >= len(super) || super[i] != v {
			return false
		}
	}
	return true
}

// maximumSpanningEdges runs Kruskal on separator sizes, keeping edges
// that join distinct components. Zero-intersection pairs are skipped,
// leaving a forest for disconnected networks.
func maximumSpanningEdges(cliques [][]string) []cliqueEdge {
	type weighted struct {
		a, b   int
		sepset []string
	}
	var candidates []weighted
	for a := 0; a < len(cliques); a++ {
		for b := a + 1; b < len(cliques); b++ {
			sepset := intersect(cliques[a], cliques[b])
			if len(sepset) > 0 {
				candidates = append(candidates, weighted{a: a, b: b, sepset: sepset})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].sepset) > len(candidates[j].sepset)
	})

	parent := make([]int, len(cliques))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	var edges []cliqueEdge
	for _, candidate := range candidates {
		ra, rb := find(candidate.a), find(candidate.b)
		if ra == rb {
			continue
		}
		parent[ra] = rb
		edges = append(edges, cliqueEdge{a: candidate.a, b: candidate.b, sepset: candidate.sepset})
	}
	return edges
}

// intersect assumes both slices are sorted.
func intersect(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// Inference
// ----------------------------------------------------------------------------

// Infer runs message passing with the default iteration cap. See
// InferCapped.
func (net *Network) Infer(evidence map[string]int) (*InferenceResult, error) {
	return net.InferCapped(evidence, DefaultMaxIterations)
}

// InferCapped computes posterior marginals under the given evidence.
//
// Description: builds a junction tree (moralization + min-fill
// triangulation + maximum-spanning clique tree), multiplies each
// node's CPT into a covering clique, reduces by evidence, then runs
// synchronous message updates until the largest message change drops
// below tolerance or the cap is hit. Hitting the cap degrades the
// result (Converged=false) rather than failing.
//
// Inputs:
//   - evidence: node name -> observed state in [0, NumStates).
//   - maxIterations: sweep cap; values below 1 use 1.
//
// Outputs:
//   - *InferenceResult: marginals for every node, including observed
//     ones (which collapse onto the observed state).
//   - error: ErrUnknownNode for evidence on absent nodes, or a state
//     out of range.
func (net *Network) InferCapped(evidence map[string]int, maxIterations int) (*InferenceResult, error) {
	for name, state := range evidence {
		if _, ok := net.nodes[name]; !ok {
			return nil, fmt.Errorf("%w: evidence on %s", ErrUnknownNode, name)
		}
		if state < 0 || state >= NumStates {
			return nil, fmt.Errorf("evidence state %d for %s outside [0, %d)", state, name, NumStates)
		}
	}
	if maxIterations < 1 {
		maxIterations = 1
	}
	if len(net.nodes) == 0 {
		return &InferenceResult{Marginals: map[string][]float64{}, Converged: true}, nil
	}

	tree := net.buildJunctionTree()
	potentials := net.cliquePotentials(tree, evidence)

	// One message per direction per tree edge.
	messages := make(map[[2]int]*potential, 2*len(tree.edges))
	for _, edge := range tree.edges {
		messages[[2]int{edge.a, edge.b}] = newUnitPotential(edge.sepset)
		messages[[2]int{edge.b, edge.a}] = newUnitPotential(edge.sepset)
	}

	converged := false
	iterations := 0
	for iterations < maxIterations {
		iterations++
		delta := 0.0
		next := make(map[[2]int]*potential, len(messages))
		for _, edge := range tree.edges {
			for _, dir := range [][2]int{{edge.a, edge.b}, {edge.b, edge.a}} {
				updated := computeMessage(dir[0], dir[1], edge.sepset, tree, potentials, messages)
				old := messages[dir]
				for i := range updated.values {
					if d := math.Abs(updated.values[i] - old.values[i]); d > delta {
						delta = d
					}
				}
				next[dir] = updated
			}
		}
		messages = next
		if delta < convergenceTolerance {
			converged = true
			break
		}
	}
	if len(tree.edges) == 0 {
		converged = true
	}

	marginals := make(map[string][]float64, len(net.nodes))
	for cliqueIndex, clique := range tree.cliques {
		belief := potentials[cliqueIndex]
		for _, edge := range tree.edges {
			if edge.a == cliqueIndex {
				belief = belief.multiply(messages[[2]int{edge.b, edge.a}])
			} else if edge.b == cliqueIndex {
				belief = belief.multiply(messages[[2]int{edge.a, edge.b}])
			}
		}
		for _, name := range clique {
			if _, done := marginals[name]; done {
				continue
			}
			marginal := belief.marginalize([]string{name})
			marginal.normalize()
			marginals[name] = marginal.values
		}
	}

	return &InferenceResult{Marginals: marginals, Converged: converged, Iterations: iterations}, nil
}

// cliquePotentials assigns each node's CPT to the first clique
// covering its family and multiplies assigned factors together,
// reduced by evidence.
func (net *Network) cliquePotentials(tree *junctionTree, evidence map[string]int) []*potential {
	potentials := make([]*potential, len(tree.cliques))
	for i, clique := range tree.cliques {
		potentials[i] = newUnitPotential(clique)
	}

	for _, name := range net.Nodes() {
		node := net.nodes[name]
		family := append([]string{name}, node.Parents...)
		sorted := make([]string, len(family))
		copy(sorted, family)
		sort.Strings(sorted)

		home := -1
		for i, clique := range tree.cliques {
			if containsAll(clique, sorted) {
				home = i
				break
			}
		}
		potentials[home] = potentials[home].multiply(cptPotential(node))
	}

	for i := range potentials {
		potentials[i].reduceEvidence(evidence)
	}
	return potentials
}

// cptPotential converts a node's table into a potential over
// [node, parents...]. A node with an empty CPT gets a uniform prior.
func cptPotential(node *Node) *potential {
	vars := append([]string{node.Name}, node.Parents...)
	p := newUnitPotential(vars)
	if len(node.CPT) == 0 {
		for i := range p.values {
			p.values[i] = 1.0 / float64(NumStates)
		}
		return p
	}
	parentStates := make([]int, len(node.Parents))
	p.forEachAssignment(func(states map[string]int, index int) {
		for pi, parent := range node.Parents {
			parentStates[pi] = states[parent]
		}
		p.values[index] = node.CPT[node.comboIndex(parentStates)][states[node.Name]]
	})
	return p
}

// computeMessage builds the message from clique `from` to clique `to`:
// the clique potential times all incoming messages except to's,
// marginalized onto the separator and normalized.
func computeMessage(from, to int, sepset []string, tree *junctionTree, potentials []*potential, messages map[[2]int]*potential) *potential {
	product := potentials[from]
	for _, edge := range tree.edges {
		var neighbor int
		switch {
		case edge.a == from:
			neighbor = edge.b
		case edge.b == from:
			neighbor = edge.a
		default:
			continue
		}
		if neighbor == to {
			continue
		}
		product = product.multiply(messages[[2]int{neighbor, from}])
	}
	message := product.marginalize(sepset)
	message.normalize()
	return message
}

// ----------------------------------------------------------------------------
// Score adjustment
// ----------------------------------------------------------------------------

// AdjustScore shifts a base score by how far the evidence moves the
// network's beliefs.
//
// Description: runs inference twice, without and with evidence, and
// averages the shift in expected level across every node. Observed
// nodes contribute the divergence between their prior marginal and the
// certainty the observation collapses them to, so surprising evidence
// moves the score even when every tracked indicator is observed. The
// shift is scaled by a fixed bound so the adjusted score cannot move
// more than maxAdjustment, and the result is clamped to [0,1]. An
// empty network returns the base unchanged.
func (net *Network) AdjustScore(base float64, evidence map[string]int) (float64, *InferenceResult, error) {
	posterior, err := net.Infer(evidence)
	if err != nil {
		return 0, nil, err
	}
	prior, err := net.Infer(nil)
	if err != nil {
		return 0, nil, err
	}
	posterior.Converged = posterior.Converged && prior.Converged

	shift := 0.0
	counted := 0
	for _, name := range net.Nodes() {
		after, ok := posterior.ExpectedLevel(name)
		if !ok {
			continue
		}
		before, _ := prior.ExpectedLevel(name)
		shift += after - before
		counted++
	}
	if counted > 0 {
		shift /= float64(counted)
	}

	adjusted := base + maxAdjustment*shift
	if adjusted < 0 {
		adjusted = 0
	}
	if adjusted > 1 {
		adjusted = 1
	}
	return adjusted, posterior, nil
}
