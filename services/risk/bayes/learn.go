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
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/joshua/services/risk/stats"
)

// CorrelationThreshold is the minimum |r| for a candidate edge.
const CorrelationThreshold = 0.3

// laplaceAlpha is the pseudo-count added to every CPT cell so that
// unobserved parent combos still yield proper distributions.
const laplaceAlpha = 1.0

// ErrMisalignedHistory indicates per-factor series of differing length.
var ErrMisalignedHistory = errors.New("misaligned history series")

type candidateEdge struct {
	from, to    string
	correlation float64
}

// LearnStructure builds a network from aligned per-factor history
// series.
//
// Description: computes pairwise Pearson correlation over all factor
// pairs, keeps candidates with |r| above CorrelationThreshold, orients
// each from the higher-variance factor to the lower-variance one
// (lexicographic on a tie), and inserts them strongest first. An
// insertion that would close a cycle is recorded as a rejected edge
// and skipped, never fatal. CPTs are then estimated by frequency
// counts over the 3-state discretization with Laplace smoothing.
//
// Inputs:
//   - history: factor name -> value series; all series must share one
//     length of at least 3 points.
//   - logger: diagnostics sink; nil uses slog.Default().
//
// Outputs:
//   - *Network: ready for inference; RejectedEdges() lists dropped
//     candidates.
//   - error: ErrMisalignedHistory or stats.ErrInsufficientSamples.
func LearnStructure(history map[string][]float64, logger *slog.Logger) (*Network, error) {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(history))
	for name := range history {
		names = append(names, name)
	}
	sort.Strings(names)

	length := -1
	for _, name := range names {
		if length == -1 {
			length = len(history[name])
			continue
		}
		if len(history[name]) != length {
			return nil, fmt.Errorf("%w: %s has %d points, want %d",
				ErrMisalignedHistory, name, len(history[name]), length)
		}
	}
	if length < 3 {
		return nil, fmt.Errorf("%w: need at least 3 aligned points, have %d",
			stats.ErrInsufficientSamples, length)
	}

	net := NewNetwork()
	for _, name := range names {
		net.AddNode(name)
	}

	candidates := collectCandidates(net, names, history)
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if abs(ci.correlation) != abs(cj.correlation) {
			return abs(ci.correlation) > abs(cj.correlation)
		}
		if ci.from != cj.from {
			return ci.from < cj.from
		}
		return ci.to < cj.to
	})

	for _, candidate := range candidates {
		err := net.AddEdge(candidate.from, candidate.to, candidate.correlation)
		if errors.Is(err, ErrCyclicDependency) {
			net.rejected = append(net.rejected, RejectedEdge{
				From:        candidate.from,
				To:          candidate.to,
				Correlation: candidate.correlation,
				Reason:      "would create cycle",
			})
			logger.Debug("rejected edge during structure learning",
				"from", candidate.from, "to", candidate.to,
				"correlation", candidate.correlation)
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		estimateCPT(net.nodes[name], history, length)
	}
	logger.Info("learned dependency structure",
		"nodes", len(names), "edges", len(net.edges), "rejected", len(net.rejected))
	return net, nil
}

// collectCandidates evaluates every unordered pair once and orients
// the survivors from the higher-variance node to the lower-variance
// one. Pairs whose correlation is undefined (constant series) are
// recorded as rejected, not fatal.
func collectCandidates(net *Network, names []string, history map[string][]float64) []candidateEdge {
	var out []candidateEdge
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := names[i], names[j]
			r, err := stats.Pearson(history[a], history[b])
			if err != nil {
				net.rejected = append(net.rejected, RejectedEdge{
					From: a, To: b, Reason: fmt.Sprintf("correlation undefined: %v", err),
				})
				continue
			}
			if abs(r) <= CorrelationThreshold {
				continue
			}
			from, to := a, b
			if stats.Variance(history[b]) > stats.Variance(history[a]) {
				from, to = b, a
			}
			out = append(out, candidateEdge{from: from, to: to, correlation: r})
		}
	}
	return out
}

// estimateCPT fills the node's table from discretized counts.
func estimateCPT(node *Node, history map[string][]float64, length int) {
	combos := node.numCombos()
	counts := make([][]float64, combos)
	for i := range counts {
		counts[i] = make([]float64, NumStates)
		for s := range counts[i] {
			counts[i][s] = laplaceAlpha
		}
	}

	parentStates := make([]int, len(node.Parents))
	for t := 0; t < length; t++ {
		for p, parent := range node.Parents {
			parentStates[p] = Discretize(history[parent][t])
		}
		row := node.comboIndex(parentStates)
		counts[row][Discretize(history[node.Name][t])]++
	}

	node.CPT = counts
	for _, row := range node.CPT {
		total := 0.0
		for _, c := range row {
			total += c
		}
		for s := range row {
			row[s] /= total
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
