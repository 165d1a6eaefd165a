// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bayes models dependencies between risk factors as a discrete
// Bayesian network. Structure and parameters are learned from
// historical factor series; inference runs junction-tree message
// passing over an immutable network snapshot, so a learned network can
// be shared across goroutines without locking. Relearning builds a new
// network and the owner swaps the reference.
package bayes

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCyclicDependency indicates an edge insertion that would create a
// directed cycle.
var ErrCyclicDependency = errors.New("cyclic dependency")

// ErrUnknownNode indicates a reference to a node the network does not
// contain.
var ErrUnknownNode = errors.New("unknown node")

// NumStates is the discretization arity: every variable takes the
// states low (0), medium (1), high (2).
const NumStates = 3

// Discretize maps a [0,1] value to its state index at thirds.
func Discretize(v float64) int {
	switch {
	case v < 1.0/3.0:
		return 0
	case v < 2.0/3.0:
		return 1
	default:
		return 2
	}
}

// ----------------------------------------------------------------------------
// Network structure
// ----------------------------------------------------------------------------

// Node is one tracked factor. Parents are ordered; the CPT is indexed
// by the mixed-radix combination of parent states (first parent is the
// least significant digit), each row a distribution over NumStates.
type Node struct {
	Name    string      `json:"name"`
	Parents []string    `json:"parents,omitempty"`
	CPT     [][]float64 `json:"cpt,omitempty"`
}

// comboIndex returns the CPT row for the given parent states.
func (n *Node) comboIndex(parentStates []int) int {
	index := 0
	stride := 1
	for _, state := range parentStates {
		index += state * stride
		stride *= NumStates
	}
	return index
}

// numCombos returns the CPT row count for the node's parent set.
func (n *Node) numCombos() int {
	combos := 1
	for range n.Parents {
		combos *= NumStates
	}
	return combos
}

// Edge is a retained directed dependency.
type Edge struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Correlation float64 `json:"correlation"`
}

// RejectedEdge records a candidate dependency that structure learning
// dropped, with the reason.
type RejectedEdge struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Correlation float64 `json:"correlation"`
	Reason      string  `json:"reason"`
}

// Network is a DAG over factor nodes. It is mutable during
// construction and must be treated as immutable once handed to
// inference.
type Network struct {
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	rejected []RejectedEdge
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Node)}
}

// AddNode inserts a node if absent and returns it.
func (net *Network) AddNode(name string) *Node {
	if node, ok := net.nodes[name]; ok {
		return node
	}
	node := &Node{Name: name}
	net.nodes[name] = node
	net.order = append(net.order, name)
	return node
}

// Node returns the named node.
func (net *Network) Node(name string) (*Node, bool) {
	node, ok := net.nodes[name]
	return node, ok
}

// Nodes returns node names in sorted order.
func (net *Network) Nodes() []string {
	names := make([]string, len(net.order))
	copy(names, net.order)
	sort.Strings(names)
	return names
}

// Edges returns the retained edges in insertion order.
func (net *Network) Edges() []Edge {
	out := make([]Edge, len(net.edges))
	copy(out, net.edges)
	return out
}

// RejectedEdges returns the candidates structure learning dropped.
func (net *Network) RejectedEdges() []RejectedEdge {
	out := make([]RejectedEdge, len(net.rejected))
	copy(out, net.rejected)
	return out
}

// AddEdge inserts a directed edge from -> to. Both endpoints must
// exist. The insertion is rejected with ErrCyclicDependency when a
// directed path to -> ... -> from already exists.
func (net *Network) AddEdge(from, to string, correlation float64) error {
	if _, ok := net.nodes[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	if _, ok := net.nodes[to]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if from == to {
		return fmt.Errorf("%w: self edge on %s", ErrCyclicDependency, from)
	}
	if net.reaches(to, from) {
		return fmt.Errorf("%w: %s -> %s closes a cycle", ErrCyclicDependency, from, to)
	}
	net.nodes[to].Parents = append(net.nodes[to].Parents, from)
	net.edges = append(net.edges, Edge{From: from, To: to, Correlation: correlation})
	return nil
}

// reaches reports whether a directed path start -> ... -> target
// exists, following child links.
func (net *Network) reaches(start, target string) bool {
	if start == target {
		return true
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range net.children(current) {
			if child == target {
				return true
			}
			if !seen[child] {
				seen[child] = true
				stack = append(stack, child)
			}
		}
	}
	return false
}

// children returns the nodes that list name as a parent.
func (net *Network) children(name string) []string {
	var out []string
	for _, childName := range net.order {
		for _, parent := range net.nodes[childName].Parents {
			if parent == name {
				out = append(out, childName)
				break
			}
		}
	}
	return out
}
