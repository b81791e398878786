package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    declared_income REAL NOT NULL DEFAULT 0,
    kyc_complete INTEGER NOT NULL DEFAULT 0,
    opened_at TIMESTAMP NOT NULL,
    risk_score INTEGER NOT NULL DEFAULT 0,
    risk_category TEXT NOT NULL DEFAULT 'LOW'
);

CREATE INDEX IF NOT EXISTS idx_customers_category ON customers(risk_category);
`

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    balance REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer_id);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    source_account TEXT NOT NULL,
    dest_account TEXT,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    direction TEXT NOT NULL,
    category TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source_account);
CREATE INDEX IF NOT EXISTS idx_transactions_dest ON transactions(dest_account);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

const schemaCustomerScores = `
CREATE TABLE IF NOT EXISTS customer_scores (
    customer_id TEXT PRIMARY KEY,
    score INTEGER NOT NULL,
    category TEXT NOT NULL,
    partial INTEGER NOT NULL DEFAULT 0,
    factors TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaClusters = `
CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    window_id TEXT NOT NULL,
    members TEXT NOT NULL,
    risk_score REAL NOT NULL,
    total_volume REAL NOT NULL,
    transaction_count INTEGER NOT NULL,
    top_beneficiary TEXT NOT NULL,
    top_fan_in INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clusters_window ON clusters(window_id);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    status TEXT NOT NULL,
    window_id TEXT NOT NULL,
    cluster_id TEXT,
    score REAL NOT NULL,
    reasons TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    assigned_analyst TEXT,
    resolution_notes TEXT,
    resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_customer ON alerts(customer_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_window ON alerts(window_id, status);
`

const schemaBehaviorRules = `
CREATE TABLE IF NOT EXISTS behavior_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    threshold REAL NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_behavior_rules_enabled ON behavior_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaAccounts,
		schemaTransactions,
		schemaCustomerScores,
		schemaClusters,
		schemaAlerts,
		schemaBehaviorRules,
	}
}
