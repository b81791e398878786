// Package smurfing detects coordinated fan-in/fan-out topologies: many
// source accounts funneling money to few destination accounts inside the
// analysis window.
package smurfing

import (
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/graph"
)

// Detector classifies weakly-connected components of the money-flow
// graph as smurfing clusters.
type Detector struct {
	cfg domain.SmurfingConfig
}

// NewDetector creates a detector from validated configuration.
func NewDetector(cfg domain.SmurfingConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Result is the output of one detection pass.
type Result struct {
	Clusters         []*domain.Cluster
	ClusterByAccount map[string]string
}

// Detect runs the three-stage classification: component filtering,
// common-beneficiary identification, and cluster risk scoring.
// Structuring findings feed the risk blend's participation term. A
// degenerate graph (no edges, single node) yields an empty result.
func (d *Detector) Detect(g *graph.Graph, windowID string, structuring map[string]*domain.StructuringFinding) *Result {
	result := &Result{ClusterByAccount: make(map[string]string)}

	n := 0
	for _, members := range g.Components() {
		if len(members) < d.cfg.MinClusterSize {
			continue
		}

		edgeCount := 0
		for _, i := range members {
			edgeCount += len(g.OutEdges(i))
		}
		if edgeCount < d.cfg.MinClusterTransactions {
			continue
		}

		topBeneficiary, topFanIn := d.busiestBeneficiary(g, members)
		if topFanIn <= d.cfg.FanInThreshold {
			// No common beneficiary: connected, but not a smurfing shape.
			continue
		}

		n++
		cluster := d.buildCluster(g, members, windowID, n)
		cluster.TopBeneficiary = topBeneficiary
		cluster.TopFanIn = topFanIn
		cluster.RiskScore = d.riskScore(cluster, len(members), structuring)

		result.Clusters = append(result.Clusters, cluster)
		for _, account := range cluster.Members {
			result.ClusterByAccount[account] = cluster.ID
		}
	}

	return result
}

// busiestBeneficiary returns the member with the highest distinct-source
// fan-in. Members arrive sorted by account id, so ties resolve to the
// lexicographically smallest beneficiary.
func (d *Detector) busiestBeneficiary(g *graph.Graph, members []int) (string, int) {
	best, bestFanIn := "", 0
	for _, i := range members {
		if fanIn := g.FanIn(i); fanIn > bestFanIn {
			best, bestFanIn = g.AccountID(i), fanIn
		}
	}
	return best, bestFanIn
}

func (d *Detector) buildCluster(g *graph.Graph, members []int, windowID string, ordinal int) *domain.Cluster {
	cluster := &domain.Cluster{
		// Ordinals follow the deterministic component ordering, so ids
		// are stable across runs on identical input.
		ID:       fmt.Sprintf("%s-cluster-%04d", windowID, ordinal),
		WindowID: windowID,
		Members:  make([]string, 0, len(members)),
	}

	for _, i := range members {
		cluster.Members = append(cluster.Members, g.AccountID(i))
		for _, e := range g.OutEdges(i) {
			cluster.TotalVolume += e.Amount
			cluster.TransactionCount++
		}
	}

	return cluster
}

// riskScore is the documented linear blend: normalized busiest fan-in,
// volume against the reference scale, and the fraction of member
// accounts individually flagged for structuring. Each term is in [0,1].
func (d *Detector) riskScore(cluster *domain.Cluster, size int, structuring map[string]*domain.StructuringFinding) float64 {
	fanTerm := 0.0
	if size > 1 {
		fanTerm = min(float64(cluster.TopFanIn)/float64(size-1), 1)
	}

	volumeTerm := min(cluster.TotalVolume/d.cfg.VolumeReference, 1)

	flagged := 0
	for _, account := range cluster.Members {
		if f := structuring[account]; f.Flagged() {
			flagged++
		}
	}
	structTerm := float64(flagged) / float64(len(cluster.Members))

	return d.cfg.FanInWeight*fanTerm +
		d.cfg.VolumeWeight*volumeTerm +
		d.cfg.StructuringWeight*structTerm
}
