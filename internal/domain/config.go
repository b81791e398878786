package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Harrier configuration. All detection
// behavior is parameterized here; nothing is hard-coded in the
// detectors. Validate runs once at load time and is the only fatal
// error class in the engine.
type Config struct {
	Server ServerConfig `json:"server"`

	Structuring StructuringConfig `json:"structuring"`
	Smurfing    SmurfingConfig    `json:"smurfing"`
	Scoring     ScoringConfig     `json:"scoring"`
	Alerts      AlertConfig       `json:"alerts"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// DirectionMode selects which transaction directions a detector sums.
type DirectionMode string

const (
	DirectionModeDebit  DirectionMode = "debit"
	DirectionModeCredit DirectionMode = "credit"
	DirectionModeBoth   DirectionMode = "both"
)

// StructuringConfig parameterizes structuring detection.
type StructuringConfig struct {
	// ReportingThreshold is the regulatory per-transaction reporting
	// limit. Amounts strictly below it can participate in a structured
	// day.
	ReportingThreshold float64 `json:"reportingThreshold"`

	// MinDailyCount is the minimum transactions per day for the day to
	// qualify as structured.
	MinDailyCount int `json:"minDailyCount"`

	// Direction selects which transaction directions are summed.
	Direction DirectionMode `json:"direction"`

	// BoundaryTimezone is the IANA zone defining the calendar-day
	// boundary. The upstream source never pinned this down, so it is a
	// configuration choice rather than an assumption.
	BoundaryTimezone string `json:"boundaryTimezone"`
}

// SmurfingConfig parameterizes network (fan-in) detection.
type SmurfingConfig struct {
	// MinClusterSize discards components with fewer accounts.
	MinClusterSize int `json:"minClusterSize"`

	// MinClusterTransactions discards components with fewer edges.
	MinClusterTransactions int `json:"minClusterTransactions"`

	// FanInThreshold is the distinct-source count a destination must
	// exceed to count as a common beneficiary.
	FanInThreshold int `json:"fanInThreshold"`

	// VolumeReference normalizes cluster volume for the risk blend.
	VolumeReference float64 `json:"volumeReference"`

	// Blend weights for the cluster risk score.
	FanInWeight       float64 `json:"fanInWeight"`
	VolumeWeight      float64 `json:"volumeWeight"`
	StructuringWeight float64 `json:"structuringWeight"`
}

// ScoringConfig parameterizes the composite risk score.
//
// The score is
//
//	clamp(w1*incomeMismatch + w2*structuringIntensity*100 +
//	      w3*clusterRisk*100 + w4*modelProbability*100 + w5*kycPenalty, 0, 100)
//
// where incomeMismatch is the volume/income ratio capped at
// IncomeMismatchCap and normalized to [0,1], and kycPenalty applies only
// when KYC is incomplete. The weights need not sum to 1; the clamp
// absorbs overflow.
type ScoringConfig struct {
	IncomeWeight      float64 `json:"incomeWeight"`      // w1
	StructuringWeight float64 `json:"structuringWeight"` // w2
	NetworkWeight     float64 `json:"networkWeight"`     // w3
	ModelWeight       float64 `json:"modelWeight"`       // w4
	KYCWeight         float64 `json:"kycWeight"`         // w5

	// IncomeMismatchCap bounds the volume/income ratio. Zero or missing
	// declared income scores the capped sentinel instead of dividing.
	IncomeMismatchCap float64 `json:"incomeMismatchCap"`

	// KYCPenalty is the fixed penalty for incomplete KYC, in score points.
	KYCPenalty float64 `json:"kycPenalty"`

	// AnomalyThreshold is the model anomaly probability above which a
	// transaction counts as anomalous for behavioral features.
	AnomalyThreshold float64 `json:"anomalyThreshold"`

	// LargeAmountThreshold is the single-transaction amount above which
	// a movement counts as large for behavioral features.
	LargeAmountThreshold float64 `json:"largeAmountThreshold"`

	// Bands derive the risk category from the score.
	Bands ScoreBands `json:"bands"`

	// MaxWorkers caps concurrent per-customer scoring goroutines.
	MaxWorkers int `json:"maxWorkers"`
}

// AlertConfig parameterizes alert generation.
type AlertConfig struct {
	// RetentionDays is advisory for the persistence layer.
	RetentionDays int `json:"retentionDays"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// DefaultConfig returns the default engine configuration. Threshold
// defaults follow the national reporting regime the platform was built
// for (amounts in INR).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Structuring: StructuringConfig{
			ReportingThreshold: 900_000,
			MinDailyCount:      3,
			Direction:          DirectionModeBoth,
			BoundaryTimezone:   "Asia/Kolkata",
		},
		Smurfing: SmurfingConfig{
			MinClusterSize:         2,
			MinClusterTransactions: 3,
			FanInThreshold:         5,
			VolumeReference:        10_000_000,
			FanInWeight:            0.40,
			VolumeWeight:           0.35,
			StructuringWeight:      0.25,
		},
		Scoring: ScoringConfig{
			IncomeWeight:      25,
			StructuringWeight: 0.20,
			NetworkWeight:     0.30,
			ModelWeight:       0.35,
			KYCWeight:         1.0,
			IncomeMismatchCap: 10,
			KYCPenalty:        20,
			AnomalyThreshold:     0.7,
			LargeAmountThreshold: 1_000_000,
			Bands:             ScoreBands{Medium: 30, High: 60, Critical: 80},
			MaxWorkers:        16,
		},
		Alerts: AlertConfig{
			RetentionDays: 90,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// Validate checks the configuration surface. It must pass before any
// analysis runs; a failure here aborts startup.
func (c *Config) Validate() error {
	if c.Structuring.ReportingThreshold <= 0 {
		return fmt.Errorf("%w: structuring.reportingThreshold must be positive, got %v",
			ErrInvalidConfig, c.Structuring.ReportingThreshold)
	}
	if c.Structuring.MinDailyCount < 1 {
		return fmt.Errorf("%w: structuring.minDailyCount must be >= 1, got %d",
			ErrInvalidConfig, c.Structuring.MinDailyCount)
	}
	switch c.Structuring.Direction {
	case DirectionModeDebit, DirectionModeCredit, DirectionModeBoth:
	default:
		return fmt.Errorf("%w: structuring.direction must be debit, credit, or both, got %q",
			ErrInvalidConfig, c.Structuring.Direction)
	}
	if _, err := time.LoadLocation(c.Structuring.BoundaryTimezone); err != nil {
		return fmt.Errorf("%w: structuring.boundaryTimezone %q: %v",
			ErrInvalidConfig, c.Structuring.BoundaryTimezone, err)
	}

	if c.Smurfing.MinClusterSize < 2 {
		return fmt.Errorf("%w: smurfing.minClusterSize must be >= 2, got %d",
			ErrInvalidConfig, c.Smurfing.MinClusterSize)
	}
	if c.Smurfing.MinClusterTransactions < 0 {
		return fmt.Errorf("%w: smurfing.minClusterTransactions must be >= 0, got %d",
			ErrInvalidConfig, c.Smurfing.MinClusterTransactions)
	}
	if c.Smurfing.FanInThreshold < 1 {
		return fmt.Errorf("%w: smurfing.fanInThreshold must be >= 1, got %d",
			ErrInvalidConfig, c.Smurfing.FanInThreshold)
	}
	if c.Smurfing.VolumeReference <= 0 {
		return fmt.Errorf("%w: smurfing.volumeReference must be positive, got %v",
			ErrInvalidConfig, c.Smurfing.VolumeReference)
	}
	for name, w := range map[string]float64{
		"smurfing.fanInWeight":       c.Smurfing.FanInWeight,
		"smurfing.volumeWeight":      c.Smurfing.VolumeWeight,
		"smurfing.structuringWeight": c.Smurfing.StructuringWeight,
		"scoring.incomeWeight":       c.Scoring.IncomeWeight,
		"scoring.structuringWeight":  c.Scoring.StructuringWeight,
		"scoring.networkWeight":      c.Scoring.NetworkWeight,
		"scoring.modelWeight":        c.Scoring.ModelWeight,
		"scoring.kycWeight":          c.Scoring.KYCWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidConfig, name, w)
		}
	}

	if c.Scoring.IncomeMismatchCap <= 0 {
		return fmt.Errorf("%w: scoring.incomeMismatchCap must be positive, got %v",
			ErrInvalidConfig, c.Scoring.IncomeMismatchCap)
	}
	if c.Scoring.KYCPenalty < 0 {
		return fmt.Errorf("%w: scoring.kycPenalty must be >= 0, got %v",
			ErrInvalidConfig, c.Scoring.KYCPenalty)
	}
	if c.Scoring.AnomalyThreshold < 0 || c.Scoring.AnomalyThreshold > 1 {
		return fmt.Errorf("%w: scoring.anomalyThreshold must be in [0,1], got %v",
			ErrInvalidConfig, c.Scoring.AnomalyThreshold)
	}
	if c.Scoring.LargeAmountThreshold <= 0 {
		return fmt.Errorf("%w: scoring.largeAmountThreshold must be positive, got %v",
			ErrInvalidConfig, c.Scoring.LargeAmountThreshold)
	}

	b := c.Scoring.Bands
	if !(b.Medium < b.High && b.High < b.Critical) {
		return fmt.Errorf("%w: score bands must be strictly increasing, got medium=%v high=%v critical=%v",
			ErrInvalidConfig, b.Medium, b.High, b.Critical)
	}
	if b.Medium < 0 || b.Critical > 100 {
		return fmt.Errorf("%w: score bands must lie within [0,100]", ErrInvalidConfig)
	}

	if c.Scoring.MaxWorkers < 1 {
		return fmt.Errorf("%w: scoring.maxWorkers must be >= 1, got %d",
			ErrInvalidConfig, c.Scoring.MaxWorkers)
	}

	return nil
}

// BoundaryLocation returns the loaded boundary timezone. Validate must
// have passed first.
func (c *Config) BoundaryLocation() *time.Location {
	loc, err := time.LoadLocation(c.Structuring.BoundaryTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
