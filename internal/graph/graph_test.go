package graph

import (
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func tx(id, src, dst string, amount float64, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:            id,
		SourceAccount: src,
		DestAccount:   dst,
		Amount:        amount,
		Currency:      "INR",
		Timestamp:     ts,
		Direction:     domain.DirectionDebit,
	}
}

func TestBuild_ExcludesExternalAndSelfTransfers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("t1", "acc-a", "acc-b", 1000, now),
		tx("t2", "acc-a", "", 2000, now),          // external: no edge
		tx("t3", "acc-b", "UNKNOWN", 3000, now),   // external: no edge
		tx("t4", "acc-c", "acc-c", 4000, now),     // self transfer: dropped
		tx("t5", "acc-b", "acc-a", 500, now),
	}

	g := Build(txs, domain.Window{})

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}
	if g.Index("acc-c") != -1 {
		t.Error("self-transfer-only account should not appear in the graph")
	}
}

func TestBuild_WindowFiltering(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	txs := []*domain.Transaction{
		tx("t1", "acc-a", "acc-b", 1000, start.Add(time.Hour)),
		tx("t2", "acc-a", "acc-b", 1000, start.Add(-time.Hour)), // before window
		tx("t3", "acc-a", "acc-b", 1000, end),                   // end is exclusive
	}

	g := Build(txs, domain.Window{ID: "2025-06", Start: start, End: end})

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge inside window, got %d", g.EdgeCount())
	}
}

func TestGraph_FanIn(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("t1", "acc-a", "acc-x", 100, now),
		tx("t2", "acc-b", "acc-x", 100, now),
		tx("t3", "acc-b", "acc-x", 100, now), // same source again, counted once
		tx("t4", "acc-c", "acc-x", 100, now),
	}

	g := Build(txs, domain.Window{})

	x := g.Index("acc-x")
	if x == -1 {
		t.Fatal("acc-x not in graph")
	}
	if got := g.FanIn(x); got != 3 {
		t.Errorf("expected fan-in 3 (distinct sources), got %d", got)
	}
}

func TestComponents_DeterministicAcrossInputOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	txs := []*domain.Transaction{
		tx("t1", "acc-b", "acc-a", 100, now),
		tx("t2", "acc-d", "acc-c", 100, now),
		tx("t3", "acc-e", "acc-d", 100, now),
	}
	reversed := []*domain.Transaction{txs[2], txs[1], txs[0]}

	for _, order := range [][]*domain.Transaction{txs, reversed} {
		g := Build(order, domain.Window{})

		comps := g.Components()
		if len(comps) != 2 {
			t.Fatalf("expected 2 components, got %d", len(comps))
		}

		// Components ordered by minimum member account id.
		if g.AccountID(comps[0][0]) != "acc-a" {
			t.Errorf("first component should start at acc-a, got %s", g.AccountID(comps[0][0]))
		}
		if g.AccountID(comps[1][0]) != "acc-c" {
			t.Errorf("second component should start at acc-c, got %s", g.AccountID(comps[1][0]))
		}
		if len(comps[1]) != 3 {
			t.Errorf("expected second component of size 3, got %d", len(comps[1]))
		}
	}
}

func TestComponents_EmptyGraph(t *testing.T) {
	g := Build(nil, domain.Window{})
	if comps := g.Components(); comps != nil {
		t.Errorf("expected nil components for empty graph, got %v", comps)
	}
}
