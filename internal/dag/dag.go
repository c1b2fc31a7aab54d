// Package dag provides the table-level lineage graph.
// An edge runs from a source table to the target of a statement that reads
// it, labelled with the procedures that move the data. It supports cycle
// detection, levels, and upstream/downstream closure.
package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/ezql/pkg/lineage"
)

// Node represents a table in the graph.
type Node struct {
	// ID is the qualified table name
	ID    string
	Table lineage.Table
}

// Edge is a source-to-target dependency and the procedures that create it.
type Edge struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Procedures []string `json:"procedures"`
}

type edgeKey struct {
	from, to string
}

// Graph represents a directed graph of tables.
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string // source -> targets
	parents  map[string][]string // target -> sources
	labels   map[edgeKey][]string
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
		labels:   make(map[edgeKey][]string),
	}
}

// Build creates the graph of every statement in r. Statements reading their
// own target add no edge.
func Build(r lineage.Result) *Graph {
	g := NewGraph()
	for _, s := range r.Statements() {
		if s.TargetTable == nil {
			continue
		}
		target := *s.TargetTable
		g.AddNode(target)
		for _, src := range s.Sources() {
			g.AddNode(src)
			if src == target {
				continue
			}
			g.link(src.String(), target.String(), s.Procedure)
		}
	}
	return g
}

// AddNode adds a table to the graph. Adding it twice is a no-op.
func (g *Graph) AddNode(t lineage.Table) {
	id := t.String()
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = &Node{ID: id, Table: t}
	g.children[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from source to target. The procedure label
// is recorded once per edge.
func (g *Graph) AddEdge(source, target lineage.Table, procedure string) error {
	from, to := source.String(), target.String()
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("source node %q does not exist", from)
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("target node %q does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self-loop detected: %s", from)
	}
	g.link(from, to, procedure)
	return nil
}

// link records the edge from -> to. Both nodes must exist and differ.
func (g *Graph) link(from, to, procedure string) {
	if !slices.Contains(g.children[from], to) {
		g.children[from] = append(g.children[from], to)
		g.parents[to] = append(g.parents[to], from)
	}
	key := edgeKey{from, to}
	if procedure != "" && !slices.Contains(g.labels[key], procedure) {
		g.labels[key] = append(g.labels[key], procedure)
	}
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Parents returns the direct sources of a table, sorted.
func (g *Graph) Parents(id string) []string {
	return sorted(g.parents[id])
}

// Children returns the direct targets fed by a table, sorted.
func (g *Graph) Children(id string) []string {
	return sorted(g.children[id])
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// Edges returns every edge sorted by source, then target. Labels are
// sorted too.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.labels))
	for from, targets := range g.children {
		for _, to := range targets {
			edges = append(edges, Edge{From: from, To: to, Procedures: sorted(g.labels[edgeKey{from, to}])})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.children {
		count += len(targets)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	via := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, next := range g.Children(id) {
			if !visited[next] {
				via[next] = id
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cyclePath = []string{next}
				for curr := id; curr != next; curr = via[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{next}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, node := range g.Nodes() {
		if !visited[node.ID] && dfs(node.ID) {
			return true, cyclePath
		}
	}
	return false, nil
}

// Levels groups tables by distance from the roots: level 0 holds tables no
// statement writes from another table, level N tables whose deepest source
// sits at level N-1. It fails on cyclic graphs.
func (g *Graph) Levels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, parent := range g.parents[id] {
			level = max(level, levelOf(parent)+1)
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for id := range g.nodes {
		maxLevel = max(maxLevel, levelOf(id))
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for id, level := range assigned {
		levels[level] = append(levels[level], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns every table fed, directly or transitively, by the given
// tables. The given tables are not included unless a cycle reaches them.
func (g *Graph) Downstream(ids ...string) []string {
	return g.closure(ids, g.children)
}

// Upstream returns every table the given tables are built from, directly or
// transitively.
func (g *Graph) Upstream(ids ...string) []string {
	return g.closure(ids, g.parents)
}

func (g *Graph) closure(ids []string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		for _, n := range next[id] {
			if !seen[n] {
				seen[n] = true
				mark(n)
			}
		}
	}
	for _, id := range ids {
		mark(id)
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Roots returns tables with no sources.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns tables that feed no other table.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// Subgraph returns a new graph containing only the given tables and the
// edges between them.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	for _, id := range ids {
		if node, exists := g.nodes[id]; exists {
			sub.AddNode(node.Table)
		}
	}
	for _, id := range ids {
		for _, to := range g.children[id] {
			if _, ok := sub.nodes[to]; !ok {
				continue
			}
			labels := g.labels[edgeKey{id, to}]
			if len(labels) == 0 {
				sub.link(id, to, "")
			}
			for _, p := range labels {
				sub.link(id, to, p)
			}
		}
	}
	return sub
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	sort.Strings(out)
	return out
}
