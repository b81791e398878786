// Package structuring detects transactions split to stay under the
// regulatory reporting threshold while still moving a large total.
package structuring

import (
	"sort"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Detector flags accounts whose daily activity matches the structuring
// predicate: at least MinDailyCount transactions, every amount strictly
// below the reporting threshold, and a daily total at or above it.
type Detector struct {
	cfg domain.StructuringConfig
	loc *time.Location
}

// NewDetector creates a detector. The boundary timezone must have been
// validated with the rest of the configuration.
func NewDetector(cfg domain.StructuringConfig) *Detector {
	loc, err := time.LoadLocation(cfg.BoundaryTimezone)
	if err != nil {
		loc = time.UTC
	}
	return &Detector{cfg: cfg, loc: loc}
}

// Detect evaluates one account's transactions. Transactions outside the
// window or not matching the configured direction mode are ignored.
// The returned finding is never nil; an account with no considered
// transactions has zero active days and zero intensity.
func (d *Detector) Detect(accountID string, txs []*domain.Transaction, window domain.Window) *domain.StructuringFinding {
	type day struct {
		count    int
		total    float64
		overCap  bool // some amount >= threshold
	}

	days := make(map[time.Time]*day)

	for _, tx := range txs {
		if !window.Contains(tx.Timestamp) {
			continue
		}
		if !d.considers(tx.Direction) {
			continue
		}

		local := tx.Timestamp.In(d.loc)
		key := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.loc)

		entry := days[key]
		if entry == nil {
			entry = &day{}
			days[key] = entry
		}
		entry.count++
		entry.total += tx.Amount
		if tx.Amount >= d.cfg.ReportingThreshold {
			// Exactly-at-threshold amounts count as reported, not structured.
			entry.overCap = true
		}
	}

	finding := &domain.StructuringFinding{
		AccountID:  accountID,
		ActiveDays: len(days),
	}

	for key, entry := range days {
		if entry.count >= d.cfg.MinDailyCount &&
			!entry.overCap &&
			entry.total >= d.cfg.ReportingThreshold {
			finding.FlaggedDays = append(finding.FlaggedDays, key)
		}
	}
	sort.Slice(finding.FlaggedDays, func(i, j int) bool {
		return finding.FlaggedDays[i].Before(finding.FlaggedDays[j])
	})

	if finding.ActiveDays > 0 {
		finding.Intensity = float64(len(finding.FlaggedDays)) / float64(finding.ActiveDays)
	}

	return finding
}

// DetectAll evaluates every account's transaction slice independently.
func (d *Detector) DetectAll(txsByAccount map[string][]*domain.Transaction, window domain.Window) map[string]*domain.StructuringFinding {
	findings := make(map[string]*domain.StructuringFinding, len(txsByAccount))
	for accountID, txs := range txsByAccount {
		findings[accountID] = d.Detect(accountID, txs, window)
	}
	return findings
}

func (d *Detector) considers(dir domain.Direction) bool {
	switch d.cfg.Direction {
	case domain.DirectionModeDebit:
		return dir == domain.DirectionDebit
	case domain.DirectionModeCredit:
		return dir == domain.DirectionCredit
	default:
		return true
	}
}
