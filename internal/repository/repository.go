// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	// ErrNotFound aliases the domain sentinel so callers can match on
	// either package.
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCustomer stores or updates a customer.
func (r *SQLRepository) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (
			id, name, declared_income, kyc_complete, opened_at, risk_score, risk_category
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			declared_income = excluded.declared_income,
			kyc_complete = excluded.kyc_complete,
			opened_at = excluded.opened_at,
			risk_score = excluded.risk_score,
			risk_category = excluded.risk_category
	`

	category := c.RiskCategory
	if category == "" {
		category = domain.RiskLow
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, c.Name, c.DeclaredIncome, boolToInt(c.KYCComplete),
		c.OpenedAt, c.RiskScore, string(category),
	)
	return err
}

// GetCustomer retrieves a customer by ID.
func (r *SQLRepository) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	query := `
		SELECT id, name, declared_income, kyc_complete, opened_at, risk_score, risk_category
		FROM customers
		WHERE id = ?
	`

	var c domain.Customer
	var kyc int

	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(
		&c.ID, &c.Name, &c.DeclaredIncome, &kyc, &c.OpenedAt, &c.RiskScore, &c.RiskCategory,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.KYCComplete = kyc == 1

	return &c, nil
}

// ListCustomers retrieves all customers ordered by id.
func (r *SQLRepository) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	query := `
		SELECT id, name, declared_income, kyc_complete, opened_at, risk_score, risk_category
		FROM customers
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		var c domain.Customer
		var kyc int

		if err := rows.Scan(
			&c.ID, &c.Name, &c.DeclaredIncome, &kyc, &c.OpenedAt, &c.RiskScore, &c.RiskCategory,
		); err != nil {
			return nil, err
		}

		c.KYCComplete = kyc == 1
		customers = append(customers, &c)
	}

	return customers, rows.Err()
}

// SaveAccount stores or updates an account.
func (r *SQLRepository) SaveAccount(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO accounts (id, customer_id, balance)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			balance = excluded.balance
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), a.ID, a.CustomerID, a.Balance)
	return err
}

// ListAccounts retrieves all accounts ordered by id.
func (r *SQLRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT id, customer_id, balance FROM accounts ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}

	return accounts, rows.Err()
}

// SaveTransaction stores a transaction. Saving an existing id is a
// no-op: input records are immutable.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, source_account, dest_account, amount, currency, timestamp, direction, category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.SourceAccount, tx.DestAccount,
		tx.Amount, tx.Currency, tx.Timestamp,
		string(tx.Direction), tx.Category,
	)
	return err
}

// GetTransactionsByAccount retrieves transactions touching an account.
func (r *SQLRepository) GetTransactionsByAccount(ctx context.Context, accountID string, since time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT id, source_account, dest_account, amount, currency, timestamp, direction, category
		FROM transactions
		WHERE (source_account = ? OR dest_account = ?)
		  AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), accountID, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListTransactions retrieves transactions inside a window, ordered by
// timestamp then id.
func (r *SQLRepository) ListTransactions(ctx context.Context, window domain.Window) ([]*domain.Transaction, error) {
	query := `
		SELECT id, source_account, dest_account, amount, currency, timestamp, direction, category
		FROM transactions
	`
	args := []any{}

	if !window.Start.IsZero() || !window.End.IsZero() {
		conds := make([]string, 0, 2)
		if !window.Start.IsZero() {
			conds = append(conds, "timestamp >= ?")
			args = append(args, window.Start)
		}
		if !window.End.IsZero() {
			conds = append(conds, "timestamp < ?")
			args = append(args, window.End)
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp, id"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var dest, category sql.NullString

		if err := rows.Scan(
			&tx.ID, &tx.SourceAccount, &dest,
			&tx.Amount, &tx.Currency, &tx.Timestamp,
			&tx.Direction, &category,
		); err != nil {
			return nil, err
		}

		tx.DestAccount = dest.String
		tx.Category = category.String
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

// SaveCustomerScore stores the latest score for a customer.
func (r *SQLRepository) SaveCustomerScore(ctx context.Context, score *domain.CustomerScore) error {
	if score == nil || score.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(score.Factors)

	query := `
		INSERT INTO customer_scores (customer_id, score, category, partial, factors, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			score = excluded.score,
			category = excluded.category,
			partial = excluded.partial,
			factors = excluded.factors,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.CustomerID, score.Score, string(score.Category),
		boolToInt(score.Partial), string(factors), time.Now().UTC(),
	)
	return err
}

// GetCustomerScore retrieves the latest score for a customer.
func (r *SQLRepository) GetCustomerScore(ctx context.Context, customerID string) (*domain.CustomerScore, error) {
	query := `
		SELECT customer_id, score, category, partial, factors
		FROM customer_scores
		WHERE customer_id = ?
	`

	var s domain.CustomerScore
	var partial int
	var factors sql.NullString

	err := r.db.QueryRowContext(ctx, r.rebind(query), customerID).Scan(
		&s.CustomerID, &s.Score, &s.Category, &partial, &factors,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Partial = partial == 1
	if factors.String != "" {
		json.Unmarshal([]byte(factors.String), &s.Factors)
	}

	return &s, nil
}

// ReplaceClusters swaps out a window's cluster set atomically. Clusters
// are derived artifacts and are always rewritten wholesale.
func (r *SQLRepository) ReplaceClusters(ctx context.Context, windowID string, clusters []*domain.Cluster) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, r.rebind(`DELETE FROM clusters WHERE window_id = ?`), windowID); err != nil {
		return err
	}

	insert := `
		INSERT INTO clusters (
			id, window_id, members, risk_score, total_volume,
			transaction_count, top_beneficiary, top_fan_in
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, c := range clusters {
		members, _ := json.Marshal(c.Members)
		if _, err := dbTx.ExecContext(ctx, r.rebind(insert),
			c.ID, c.WindowID, string(members), c.RiskScore,
			c.TotalVolume, c.TransactionCount, c.TopBeneficiary, c.TopFanIn,
		); err != nil {
			return err
		}
	}

	return dbTx.Commit()
}

// ListClusters retrieves a window's clusters ordered by id.
func (r *SQLRepository) ListClusters(ctx context.Context, windowID string) ([]*domain.Cluster, error) {
	query := `
		SELECT id, window_id, members, risk_score, total_volume,
			   transaction_count, top_beneficiary, top_fan_in
		FROM clusters
		WHERE window_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), windowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []*domain.Cluster
	for rows.Next() {
		var c domain.Cluster
		var members string

		if err := rows.Scan(
			&c.ID, &c.WindowID, &members, &c.RiskScore,
			&c.TotalVolume, &c.TransactionCount, &c.TopBeneficiary, &c.TopFanIn,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(members), &c.Members)
		clusters = append(clusters, &c)
	}

	return clusters, rows.Err()
}

// SaveAlert stores or updates an alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(alert.Reasons)

	var resolvedAt sql.NullTime
	if alert.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *alert.ResolvedAt, Valid: true}
	}

	query := `
		INSERT INTO alerts (
			id, customer_id, type, severity, status, window_id, cluster_id,
			score, reasons, created_at, updated_at,
			assigned_analyst, resolution_notes, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			severity = excluded.severity,
			status = excluded.status,
			cluster_id = excluded.cluster_id,
			score = excluded.score,
			reasons = excluded.reasons,
			updated_at = excluded.updated_at,
			assigned_analyst = excluded.assigned_analyst,
			resolution_notes = excluded.resolution_notes,
			resolved_at = excluded.resolved_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.CustomerID, string(alert.Type), string(alert.Severity),
		string(alert.Status), alert.WindowID, alert.ClusterID,
		alert.Score, string(reasons), alert.CreatedAt, alert.UpdatedAt,
		alert.AssignedAnalyst, alert.ResolutionNotes, resolvedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID.
func (r *SQLRepository) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	query := selectAlerts + ` WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), alertID)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return alert, err
}

// ListOpenAlerts retrieves a window's alerts still under review.
func (r *SQLRepository) ListOpenAlerts(ctx context.Context, windowID string) ([]*domain.Alert, error) {
	query := selectAlerts + `
		WHERE window_id = ? AND status IN (?, ?)
		ORDER BY customer_id, type
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		windowID, string(domain.AlertOpen), string(domain.AlertAssigned))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ListAlertsByCustomer retrieves all alerts for a customer, newest first.
func (r *SQLRepository) ListAlertsByCustomer(ctx context.Context, customerID string) ([]*domain.Alert, error) {
	query := selectAlerts + `
		WHERE customer_id = ?
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// UpdateAlertStatus moves an alert through its review lifecycle.
// Resolution timestamps are set here, not by the caller.
func (r *SQLRepository) UpdateAlertStatus(ctx context.Context, alertID string, status domain.AlertStatus, analyst, notes string) error {
	now := time.Now().UTC()

	var resolvedAt sql.NullTime
	if status == domain.AlertResolved || status == domain.AlertDismissed {
		resolvedAt = sql.NullTime{Time: now, Valid: true}
	}

	query := `
		UPDATE alerts
		SET status = ?, assigned_analyst = ?, resolution_notes = ?, resolved_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(status), analyst, notes, resolvedAt, now, alertID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

const selectAlerts = `
	SELECT id, customer_id, type, severity, status, window_id, cluster_id,
		   score, reasons, created_at, updated_at,
		   assigned_analyst, resolution_notes, resolved_at
	FROM alerts
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var clusterID, reasons, analyst, notes sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.CustomerID, &a.Type, &a.Severity, &a.Status,
		&a.WindowID, &clusterID, &a.Score, &reasons,
		&a.CreatedAt, &a.UpdatedAt, &analyst, &notes, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ClusterID = clusterID.String
	a.AssignedAnalyst = analyst.String
	a.ResolutionNotes = notes.String
	if reasons.String != "" {
		json.Unmarshal([]byte(reasons.String), &a.Reasons)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}

	return &a, nil
}

func scanAlerts(rows *sql.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// SaveBehaviorRule stores or updates a behavioral rule.
func (r *SQLRepository) SaveBehaviorRule(ctx context.Context, rule *domain.BehaviorRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO behavior_rules (
			id, name, description, expression, threshold, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			threshold = excluded.threshold,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Threshold, rule.Reason, boolToInt(rule.Enabled), now, now,
	)
	return err
}

// ListBehaviorRules retrieves all behavioral rules ordered by id.
// Disabled rules are included; the engine filters on load.
func (r *SQLRepository) ListBehaviorRules(ctx context.Context) ([]*domain.BehaviorRule, error) {
	query := `
		SELECT id, name, description, expression, threshold, reason, enabled
		FROM behavior_rules
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.BehaviorRule
	for rows.Next() {
		var rule domain.BehaviorRule
		var description, reason sql.NullString
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &description, &rule.Expression,
			&rule.Threshold, &reason, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Reason = reason.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
