package domain

import "errors"

var (
	// ErrInvalidRecord marks a per-record validation failure. These are
	// local: the record is skipped and counted, the pass continues.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidConfig marks a configuration validation failure. These
	// are global and fatal: detected at load time, before any pass runs.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("record not found")
)
