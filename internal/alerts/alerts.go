// Package alerts turns detection output into review artifacts. Each
// alert type is generated independently; one customer can collect
// several alerts per window. Re-running a window updates open alerts in
// place instead of duplicating them.
package alerts

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Generator produces alerts from one analysis pass.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates an alert generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// Input is the detection output an alert pass consumes.
type Input struct {
	WindowID string

	Scores      []*domain.CustomerScore
	Structuring map[string]*domain.StructuringFinding // by account id
	Clusters    []*domain.Cluster
	Behavioral  map[string][]domain.BehavioralFinding // by customer id

	// OwnerByAccount maps account ids to owning customer ids.
	OwnerByAccount map[string]string

	// Existing holds the open alerts to reconcile against. A match on
	// (customer, type, window) updates the open alert rather than
	// creating a new one.
	Existing []*domain.Alert
}

// Generate produces the alert set for one window. Output is ordered by
// customer id then type, so identical input yields identical output
// apart from the ids of newly created alerts.
func (g *Generator) Generate(in Input) []*domain.Alert {
	fresh := make(map[string]*domain.Alert)

	g.scoreAlerts(in, fresh)
	g.structuringAlerts(in, fresh)
	g.smurfingAlerts(in, fresh)
	g.behavioralAlerts(in, fresh)

	existing := make(map[string]*domain.Alert, len(in.Existing))
	for _, a := range in.Existing {
		if a.Status == domain.AlertOpen || a.Status == domain.AlertAssigned {
			existing[a.DedupKey()] = a
		}
	}

	now := g.now()
	out := make([]*domain.Alert, 0, len(fresh))
	for key, a := range fresh {
		if prev, ok := existing[key]; ok {
			// Keep identity and review state, refresh the signal.
			a.ID = prev.ID
			a.Status = prev.Status
			a.CreatedAt = prev.CreatedAt
			a.AssignedAnalyst = prev.AssignedAnalyst
		} else {
			a.ID = uuid.NewString()
			a.Status = domain.AlertOpen
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CustomerID != out[j].CustomerID {
			return out[i].CustomerID < out[j].CustomerID
		}
		return out[i].Type < out[j].Type
	})

	return out
}

func (g *Generator) scoreAlerts(in Input, fresh map[string]*domain.Alert) {
	for _, s := range in.Scores {
		if s.Category != domain.RiskCritical {
			continue
		}
		a := &domain.Alert{
			CustomerID: s.CustomerID,
			Type:       domain.AlertHighRiskScore,
			Severity:   domain.SeverityCritical,
			WindowID:   in.WindowID,
			Score:      float64(s.Score),
			Reasons:    []string{"composite risk score in critical band"},
		}
		fresh[a.DedupKey()] = a
	}
}

func (g *Generator) structuringAlerts(in Input, fresh map[string]*domain.Alert) {
	// One alert per customer; a customer structuring through several
	// accounts gets the highest intensity and all reasons.
	for _, accountID := range sortedKeys(in.Structuring) {
		f := in.Structuring[accountID]
		if !f.Flagged() {
			continue
		}
		customerID, ok := in.OwnerByAccount[accountID]
		if !ok {
			continue
		}

		reason := "account " + accountID + " split amounts below the reporting threshold"
		key := (&domain.Alert{CustomerID: customerID, Type: domain.AlertStructuring, WindowID: in.WindowID}).DedupKey()
		if a, seen := fresh[key]; seen {
			a.Reasons = append(a.Reasons, reason)
			if f.Intensity*100 > a.Score {
				a.Score = f.Intensity * 100
				a.Severity = domain.SeverityFromRatio(f.Intensity)
			}
			continue
		}
		fresh[key] = &domain.Alert{
			CustomerID: customerID,
			Type:       domain.AlertStructuring,
			Severity:   domain.SeverityFromRatio(f.Intensity),
			WindowID:   in.WindowID,
			Score:      f.Intensity * 100,
			Reasons:    []string{reason},
		}
	}
}

func (g *Generator) smurfingAlerts(in Input, fresh map[string]*domain.Alert) {
	for _, cluster := range in.Clusters {
		for _, accountID := range cluster.Members {
			customerID, ok := in.OwnerByAccount[accountID]
			if !ok {
				continue
			}

			key := (&domain.Alert{CustomerID: customerID, Type: domain.AlertSmurfing, WindowID: in.WindowID}).DedupKey()
			if a, seen := fresh[key]; seen {
				if cluster.RiskScore*100 > a.Score {
					a.Score = cluster.RiskScore * 100
					a.Severity = domain.SeverityFromRatio(cluster.RiskScore)
					a.ClusterID = cluster.ID
				}
				continue
			}
			fresh[key] = &domain.Alert{
				CustomerID: customerID,
				Type:       domain.AlertSmurfing,
				Severity:   domain.SeverityFromRatio(cluster.RiskScore),
				WindowID:   in.WindowID,
				ClusterID:  cluster.ID,
				Score:      cluster.RiskScore * 100,
				Reasons:    []string{"member of fan-in cluster " + cluster.ID},
			}
		}
	}
}

func (g *Generator) behavioralAlerts(in Input, fresh map[string]*domain.Alert) {
	for _, customerID := range sortedKeys(in.Behavioral) {
		findings := in.Behavioral[customerID]
		if len(findings) == 0 {
			continue
		}

		maxScore := 0.0
		reasons := make([]string, 0, len(findings))
		for _, f := range findings {
			if f.Score > maxScore {
				maxScore = f.Score
			}
			reasons = append(reasons, f.Reason)
		}

		a := &domain.Alert{
			CustomerID: customerID,
			Type:       domain.AlertBehavioral,
			Severity:   domain.SeverityFromRatio(maxScore),
			WindowID:   in.WindowID,
			Score:      maxScore * 100,
			Reasons:    reasons,
		}
		fresh[a.DedupKey()] = a
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
