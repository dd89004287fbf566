// Package store persists the console's constructs (engines with their
// version history, paradigms, pipelines, consumers, and change events)
// in a single SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"engineroom/internal/logging"
)

var (
	// ErrNotFound is returned when a requested construct does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a construct whose key is taken.
	ErrExists = errors.New("already exists")
)

// ConsoleStore is the SQLite-backed registry behind the console. One
// instance serves all construct kinds; methods are safe for concurrent
// use.
type ConsoleStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New opens (or creates) the console database at the given path.
func New(path string) (*ConsoleStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &ConsoleStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Opened console database at %s (driver=%s)", path, driverName)
	return s, nil
}

// initialize creates the required tables.
func (s *ConsoleStore) initialize() error {
	enginesTable := `
	CREATE TABLE IF NOT EXISTS engines (
		id TEXT PRIMARY KEY,
		engine_key TEXT NOT NULL UNIQUE,
		version INTEGER NOT NULL DEFAULT 1,
		engine_name TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'primitive',
		reasoning_domain TEXT,
		researcher_question TEXT,
		stage_context TEXT,
		extraction_prompt TEXT,
		curation_prompt TEXT,
		concretization_prompt TEXT,
		canonical_schema TEXT,
		extraction_focus TEXT,
		primary_output_modes TEXT,
		paradigm_keys TEXT,
		engine_profile TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_engines_category ON engines(category);
	CREATE INDEX IF NOT EXISTS idx_engines_status ON engines(status);
	`

	engineVersionsTable := `
	CREATE TABLE IF NOT EXISTS engine_versions (
		id TEXT PRIMARY KEY,
		engine_id TEXT NOT NULL,
		engine_key TEXT NOT NULL,
		version INTEGER NOT NULL,
		full_snapshot TEXT NOT NULL,
		change_summary TEXT,
		changed_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(engine_key, version)
	);
	CREATE INDEX IF NOT EXISTS idx_engine_versions_key ON engine_versions(engine_key);
	`

	paradigmsTable := `
	CREATE TABLE IF NOT EXISTS paradigms (
		id TEXT PRIMARY KEY,
		paradigm_key TEXT NOT NULL UNIQUE,
		paradigm_name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '1.0.0',
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		definition TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_paradigms_status ON paradigms(status);
	`

	pipelinesTable := `
	CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		pipeline_key TEXT NOT NULL UNIQUE,
		pipeline_name TEXT NOT NULL,
		blend_mode TEXT NOT NULL,
		category TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		definition TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pipelines_status ON pipelines(status);
	CREATE INDEX IF NOT EXISTS idx_pipelines_category ON pipelines(category);
	`

	consumersTable := `
	CREATE TABLE IF NOT EXISTS consumers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		consumer_type TEXT NOT NULL,
		repo_url TEXT,
		webhook_url TEXT,
		contact_email TEXT,
		auto_update INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	dependenciesTable := `
	CREATE TABLE IF NOT EXISTS consumer_dependencies (
		id TEXT PRIMARY KEY,
		consumer_id TEXT NOT NULL,
		construct_type TEXT NOT NULL,
		construct_key TEXT NOT NULL,
		usage_location TEXT,
		usage_type TEXT NOT NULL DEFAULT 'direct',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deps_consumer ON consumer_dependencies(consumer_id);
	CREATE INDEX IF NOT EXISTS idx_deps_construct ON consumer_dependencies(construct_type, construct_key);
	`

	changesTable := `
	CREATE TABLE IF NOT EXISTS changes (
		id TEXT PRIMARY KEY,
		construct_type TEXT NOT NULL,
		construct_key TEXT NOT NULL,
		change_type TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		diff TEXT,
		changed_by TEXT,
		change_summary TEXT,
		changed_at DATETIME NOT NULL,
		propagation_status TEXT NOT NULL DEFAULT 'pending',
		affected_consumers TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_changes_construct ON changes(construct_type, construct_key);
	CREATE INDEX IF NOT EXISTS idx_changes_status ON changes(propagation_status);
	`

	notificationsTable := `
	CREATE TABLE IF NOT EXISTS change_notifications (
		id TEXT PRIMARY KEY,
		change_id TEXT NOT NULL,
		consumer_id TEXT NOT NULL,
		notified_at DATETIME NOT NULL,
		acknowledged_at DATETIME,
		action_taken TEXT NOT NULL DEFAULT 'pending',
		response_message TEXT,
		UNIQUE(change_id, consumer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_change ON change_notifications(change_id);
	`

	tables := []string{
		enginesTable, engineVersionsTable, paradigmsTable, pipelinesTable,
		consumersTable, dependenciesTable, changesTable, notificationsTable,
	}
	for _, ddl := range tables {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *ConsoleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file path.
func (s *ConsoleStore) Path() string {
	return s.dbPath
}

// Stats returns per-table row counts.
func (s *ConsoleStore) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"engines", "engine_versions", "paradigms", "pipelines",
		"consumers", "consumer_dependencies", "changes", "change_notifications",
	}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}
