package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Customers,
// accounts and transactions are written by the ingestion collaborator
// and are read-only inputs to the engine; scores, clusters and alerts
// are engine outputs.
type Repository interface {
	// Input records
	SaveCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)

	SaveAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context) ([]*Account, error)

	SaveTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionsByAccount(ctx context.Context, accountID string, since time.Time) ([]*Transaction, error)
	ListTransactions(ctx context.Context, window Window) ([]*Transaction, error)

	// Derived outputs
	SaveCustomerScore(ctx context.Context, score *CustomerScore) error
	GetCustomerScore(ctx context.Context, customerID string) (*CustomerScore, error)

	ReplaceClusters(ctx context.Context, windowID string, clusters []*Cluster) error
	ListClusters(ctx context.Context, windowID string) ([]*Cluster, error)

	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	ListOpenAlerts(ctx context.Context, windowID string) ([]*Alert, error)
	ListAlertsByCustomer(ctx context.Context, customerID string) ([]*Alert, error)
	UpdateAlertStatus(ctx context.Context, alertID string, status AlertStatus, analyst, notes string) error

	// Behavioral rule configuration
	SaveBehaviorRule(ctx context.Context, rule *BehaviorRule) error
	ListBehaviorRules(ctx context.Context) ([]*BehaviorRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
