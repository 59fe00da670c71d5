package models

import "sort"

// Graph is the parsed, id-indexed form of a Definition. Definitions
// are parsed into a Graph once on load and validated once at publish
// time, never on every execution.
type Graph struct {
	def      *Definition
	nodes    map[string]*Node
	outgoing map[string][]*Edge
	incoming map[string][]*Edge
}

// NewGraph builds the adjacency maps for a definition. It does not
// validate; call Validate before trusting the graph for execution.
func NewGraph(def *Definition) *Graph {
	g := &Graph{
		def:      def,
		nodes:    make(map[string]*Node, len(def.Nodes)),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
	}

	for _, node := range def.Nodes {
		g.nodes[node.ID] = node
	}

	for _, edge := range def.Edges {
		g.outgoing[edge.From] = append(g.outgoing[edge.From], edge)
		g.incoming[edge.To] = append(g.incoming[edge.To], edge)
	}

	return g
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes in the definition.
func (g *Graph) Nodes() []*Node {
	return g.def.Nodes
}

// Outgoing returns the edges leaving the given node.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	return g.outgoing[nodeID]
}

// Incoming returns the edges entering the given node.
func (g *Graph) Incoming(nodeID string) []*Edge {
	return g.incoming[nodeID]
}

// TriggerNode returns the single in-degree-zero node. Only valid on a
// graph that passed Validate.
func (g *Graph) TriggerNode() *Node {
	for _, node := range g.def.Nodes {
		if len(g.incoming[node.ID]) == 0 {
			return node
		}
	}

	return nil
}

// Validate enforces the definition invariants: every edge endpoint
// exists, exactly one node has in-degree zero and carries a trigger
// type, and the graph is acyclic (Kahn's algorithm).
func (g *Graph) Validate() error {
	for _, edge := range g.def.Edges {
		if _, ok := g.nodes[edge.From]; !ok {
			return &UnknownNodeError{NodeID: edge.From}
		}

		if _, ok := g.nodes[edge.To]; !ok {
			return &UnknownNodeError{NodeID: edge.To}
		}
	}

	var roots []*Node

	for _, node := range g.def.Nodes {
		if len(g.incoming[node.ID]) == 0 {
			roots = append(roots, node)
		}
	}

	switch {
	case len(g.def.Nodes) == 0:
		return &InvalidTriggerError{Reason: "definition has no nodes"}
	case len(roots) == 0:
		return &InvalidTriggerError{Reason: "no node with in-degree zero"}
	case len(roots) > 1:
		return &InvalidTriggerError{Reason: "more than one node with in-degree zero"}
	case !IsTriggerType(roots[0].Type):
		return &InvalidTriggerError{Reason: "root node " + roots[0].ID + " is not a trigger type"}
	}

	return g.checkAcyclic()
}

func (g *Graph) checkAcyclic() error {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.incoming[id])
	}

	queue := make([]string, 0, len(g.nodes))

	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, edge := range g.outgoing[id] {
			inDegree[edge.To]--
			if inDegree[edge.To] == 0 {
				queue = append(queue, edge.To)
			}
		}
	}

	if visited == len(g.nodes) {
		return nil
	}

	remaining := make([]string, 0, len(g.nodes)-visited)

	for id, degree := range inDegree {
		if degree > 0 {
			remaining = append(remaining, id)
		}
	}

	sort.Strings(remaining)

	return &CyclicGraphError{Nodes: remaining}
}
