// Package graph builds the directed money-flow multigraph over account
// identifiers. Nodes are stable integer indices into an account table;
// edges carry amount and timestamp. Building is a pure function of the
// transaction set and the analysis window.
package graph

import (
	"sort"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Edge is one transaction rendered as a directed edge.
type Edge struct {
	From      int
	To        int
	Amount    float64
	TxID      string
	Timestamp int64 // unix nanos, kept flat for cache-friendly scans
}

// Graph is a directed multigraph with index-based adjacency lists.
type Graph struct {
	accounts []string       // node index -> account id
	index    map[string]int // account id -> node index
	out      [][]Edge
	in       [][]Edge
	edges    int
}

// Build constructs the graph from the windowed transaction set.
// Transactions outside the window, with an external counterparty, or
// from an account to itself contribute no edge. External transactions
// are not represented here at all; structuring detection consumes them
// separately.
func Build(txs []*domain.Transaction, window domain.Window) *Graph {
	g := &Graph{index: make(map[string]int)}

	for _, tx := range txs {
		if !window.Contains(tx.Timestamp) {
			continue
		}
		if tx.External() || tx.SelfTransfer() {
			continue
		}

		from := g.node(tx.SourceAccount)
		to := g.node(tx.DestAccount)

		e := Edge{
			From:      from,
			To:        to,
			Amount:    tx.Amount,
			TxID:      tx.ID,
			Timestamp: tx.Timestamp.UnixNano(),
		}
		g.out[from] = append(g.out[from], e)
		g.in[to] = append(g.in[to], e)
		g.edges++
	}

	return g
}

// node returns the index for an account id, allocating one if needed.
func (g *Graph) node(accountID string) int {
	if i, ok := g.index[accountID]; ok {
		return i
	}
	i := len(g.accounts)
	g.index[accountID] = i
	g.accounts = append(g.accounts, accountID)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return i
}

// NodeCount returns the number of accounts with at least one edge.
func (g *Graph) NodeCount() int { return len(g.accounts) }

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int { return g.edges }

// AccountID returns the account id for a node index.
func (g *Graph) AccountID(i int) string { return g.accounts[i] }

// Index returns the node index for an account id, or -1 if absent.
func (g *Graph) Index(accountID string) int {
	if i, ok := g.index[accountID]; ok {
		return i
	}
	return -1
}

// OutEdges returns the outgoing edges of a node.
func (g *Graph) OutEdges(i int) []Edge { return g.out[i] }

// InEdges returns the incoming edges of a node.
func (g *Graph) InEdges(i int) []Edge { return g.in[i] }

// FanIn returns the number of distinct source accounts sending to a node.
func (g *Graph) FanIn(i int) int {
	seen := make(map[int]struct{}, len(g.in[i]))
	for _, e := range g.in[i] {
		seen[e.From] = struct{}{}
	}
	return len(seen)
}

// Components returns the weakly-connected components (undirected
// reachability) as slices of node indices. Each component's members are
// sorted by account id and components are ordered by ascending minimum
// member account id, so the output depends only on membership, never on
// input or discovery order.
func (g *Graph) Components() [][]int {
	n := len(g.accounts)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]] // path halving
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for from, edges := range g.out {
		for _, e := range edges {
			union(from, e.To)
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	components := make([][]int, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(a, b int) bool {
			return g.accounts[members[a]] < g.accounts[members[b]]
		})
		components = append(components, members)
	}
	sort.Slice(components, func(a, b int) bool {
		return g.accounts[components[a][0]] < g.accounts[components[b][0]]
	})

	return components
}
