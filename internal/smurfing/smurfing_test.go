package smurfing

import (
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/graph"
)

func testConfig() domain.SmurfingConfig {
	return domain.SmurfingConfig{
		MinClusterSize:         2,
		MinClusterTransactions: 3,
		FanInThreshold:         5,
		VolumeReference:        10_000_000,
		FanInWeight:            0.40,
		VolumeWeight:           0.35,
		StructuringWeight:      0.25,
	}
}

// fanIn builds n source accounts all sending to one destination.
func fanIn(n int, dest string) []*domain.Transaction {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	txs := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, &domain.Transaction{
			ID:            fmt.Sprintf("tx-%s-%d", dest, i),
			SourceAccount: fmt.Sprintf("src-%s-%02d", dest, i),
			DestAccount:   dest,
			Amount:        100_000,
			Timestamp:     ts.Add(time.Duration(i) * time.Minute),
			Direction:     domain.DirectionDebit,
		})
	}
	return txs
}

func TestDetect_FanInClassification(t *testing.T) {
	d := NewDetector(testConfig())

	t.Run("six sources into one destination is a cluster", func(t *testing.T) {
		g := graph.Build(fanIn(6, "mule"), domain.Window{})
		result := d.Detect(g, "w1", nil)

		if len(result.Clusters) != 1 {
			t.Fatalf("expected 1 cluster, got %d", len(result.Clusters))
		}
		c := result.Clusters[0]
		if c.TopBeneficiary != "mule" {
			t.Errorf("expected top beneficiary mule, got %s", c.TopBeneficiary)
		}
		if c.TopFanIn != 6 {
			t.Errorf("expected fan-in 6, got %d", c.TopFanIn)
		}
		if len(c.Members) != 7 {
			t.Errorf("expected 7 member accounts, got %d", len(c.Members))
		}
		if result.ClusterByAccount["mule"] != c.ID {
			t.Error("destination account not mapped to cluster")
		}
	})

	t.Run("four sources stays under the fan-in threshold", func(t *testing.T) {
		g := graph.Build(fanIn(4, "mule"), domain.Window{})
		result := d.Detect(g, "w1", nil)

		if len(result.Clusters) != 0 {
			t.Fatalf("expected no clusters, got %d", len(result.Clusters))
		}
		if len(result.ClusterByAccount) != 0 {
			t.Error("no account should map to a cluster")
		}
	})
}

func TestDetect_ComponentFilters(t *testing.T) {
	cfg := testConfig()
	cfg.MinClusterTransactions = 10
	d := NewDetector(cfg)

	// Six distinct sources but only 6 edges, below the edge minimum.
	g := graph.Build(fanIn(6, "mule"), domain.Window{})
	if result := d.Detect(g, "w1", nil); len(result.Clusters) != 0 {
		t.Errorf("expected sparse component to be discarded, got %d clusters", len(result.Clusters))
	}
}

func TestDetect_DegenerateGraph(t *testing.T) {
	d := NewDetector(testConfig())

	g := graph.Build(nil, domain.Window{})
	result := d.Detect(g, "w1", nil)
	if len(result.Clusters) != 0 {
		t.Errorf("empty graph should yield no clusters, got %d", len(result.Clusters))
	}
}

func TestDetect_DeterministicClusterIDs(t *testing.T) {
	d := NewDetector(testConfig())

	txs := append(fanIn(6, "mule-a"), fanIn(7, "mule-b")...)
	reversed := make([]*domain.Transaction, len(txs))
	for i, tx := range txs {
		reversed[len(txs)-1-i] = tx
	}

	first := d.Detect(graph.Build(txs, domain.Window{}), "w1", nil)
	second := d.Detect(graph.Build(reversed, domain.Window{}), "w1", nil)

	if len(first.Clusters) != 2 || len(second.Clusters) != 2 {
		t.Fatalf("expected 2 clusters in both runs, got %d and %d", len(first.Clusters), len(second.Clusters))
	}
	for i := range first.Clusters {
		if first.Clusters[i].ID != second.Clusters[i].ID {
			t.Errorf("cluster id %d differs across input orders: %s vs %s",
				i, first.Clusters[i].ID, second.Clusters[i].ID)
		}
		if first.Clusters[i].TopBeneficiary != second.Clusters[i].TopBeneficiary {
			t.Errorf("cluster %d beneficiary differs across input orders", i)
		}
	}
}

func TestDetect_RiskBlend(t *testing.T) {
	cfg := testConfig()
	d := NewDetector(cfg)

	txs := fanIn(6, "mule")
	g := graph.Build(txs, domain.Window{})

	structuring := map[string]*domain.StructuringFinding{}
	for _, tx := range txs {
		structuring[tx.SourceAccount] = &domain.StructuringFinding{
			AccountID:   tx.SourceAccount,
			FlaggedDays: []time.Time{tx.Timestamp},
			ActiveDays:  1,
			Intensity:   1,
		}
	}

	result := d.Detect(g, "w1", structuring)
	if len(result.Clusters) != 1 {
		t.Fatal("expected 1 cluster")
	}
	c := result.Clusters[0]

	// fanTerm = min(6/6, 1) = 1; volumeTerm = 600000/1e7 = 0.06;
	// structured fraction = 6/7.
	want := cfg.FanInWeight*1 + cfg.VolumeWeight*0.06 + cfg.StructuringWeight*(6.0/7.0)
	if diff := c.RiskScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("risk score = %v, want %v", c.RiskScore, want)
	}
	if c.RiskScore < 0 || c.RiskScore > 1 {
		t.Errorf("risk score out of [0,1]: %v", c.RiskScore)
	}
}
