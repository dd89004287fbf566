package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"engineroom/internal/logging"
	"engineroom/internal/paradigm"

	"github.com/google/uuid"
)

// ParadigmFilter narrows ListParadigms results.
type ParadigmFilter struct {
	Status paradigm.Status
	Search string // substring match over key, name, description
}

// CreateParadigm inserts a new paradigm. A duplicate key returns
// ErrExists.
func (s *ConsoleStore) CreateParadigm(p *paradigm.Paradigm) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateParadigm")
	defer timer.Stop()

	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM paradigms WHERE paradigm_key = ?", p.ParadigmKey).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check paradigm %s: %w", p.ParadigmKey, err)
	}
	if exists > 0 {
		return fmt.Errorf("paradigm %q: %w", p.ParadigmKey, ErrExists)
	}

	now := time.Now().UTC()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize paradigm %s: %w", p.ParadigmKey, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO paradigms (id, paradigm_key, paradigm_name, version, description, status, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ParadigmKey, p.ParadigmName, p.Version, p.Description, string(p.Status), string(definition), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert paradigm %s: %w", p.ParadigmKey, err)
	}

	logging.Get(logging.CategoryParadigm).Info("Created paradigm %s (version %s)", p.ParadigmKey, p.Version)
	return nil
}

// GetParadigm returns one paradigm by key.
func (s *ConsoleStore) GetParadigm(key string) (*paradigm.Paradigm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getParadigmLocked(key)
}

func (s *ConsoleStore) getParadigmLocked(key string) (*paradigm.Paradigm, error) {
	var definition string
	err := s.db.QueryRow("SELECT definition FROM paradigms WHERE paradigm_key = ?", key).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("paradigm %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load paradigm %s: %w", key, err)
	}

	var p paradigm.Paradigm
	if err := json.Unmarshal([]byte(definition), &p); err != nil {
		return nil, fmt.Errorf("failed to decode paradigm %s: %w", key, err)
	}
	return &p, nil
}

// ListParadigms returns paradigms matching the filter, ordered by name.
func (s *ConsoleStore) ListParadigms(filter ParadigmFilter) ([]*paradigm.Paradigm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT definition FROM paradigms WHERE 1=1"
	var args []interface{}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		query += " AND (paradigm_key LIKE ? OR paradigm_name LIKE ? OR description LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += " ORDER BY paradigm_name"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list paradigms: %w", err)
	}
	defer rows.Close()

	var paradigms []*paradigm.Paradigm
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			continue
		}
		var p paradigm.Paradigm
		if err := json.Unmarshal([]byte(definition), &p); err != nil {
			continue
		}
		paradigms = append(paradigms, &p)
	}
	return paradigms, rows.Err()
}

// UpdateParadigm replaces a paradigm's definition and bumps its minor
// version.
func (s *ConsoleStore) UpdateParadigm(p *paradigm.Paradigm) (*paradigm.Paradigm, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateParadigm")
	defer timer.Stop()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getParadigmLocked(p.ParadigmKey)
	if err != nil {
		return nil, err
	}

	updated := p.Clone()
	updated.ID = current.ID
	updated.Version = current.Version
	updated.CreatedAt = current.CreatedAt
	if err := updated.BumpMinor(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.writeParadigmLocked(updated); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryParadigm).Info("Updated paradigm %s to version %s", updated.ParadigmKey, updated.Version)
	return updated, nil
}

// UpdateParadigmLayer patches one ontology layer and bumps the patch
// version.
func (s *ConsoleStore) UpdateParadigmLayer(key, layerName string, layer interface{}) (*paradigm.Paradigm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getParadigmLocked(key)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	if err := updated.SetLayer(layerName, layer); err != nil {
		return nil, err
	}
	if err := updated.BumpPatch(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.writeParadigmLocked(updated); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryParadigm).Info("Updated %s layer of paradigm %s to version %s", layerName, key, updated.Version)
	return updated, nil
}

// DeleteParadigm archives a paradigm.
func (s *ConsoleStore) DeleteParadigm(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getParadigmLocked(key)
	if err != nil {
		return err
	}
	current.Status = paradigm.StatusArchived
	current.UpdatedAt = time.Now().UTC()

	if err := s.writeParadigmLocked(current); err != nil {
		return err
	}
	logging.Get(logging.CategoryParadigm).Info("Archived paradigm %s", key)
	return nil
}

func (s *ConsoleStore) writeParadigmLocked(p *paradigm.Paradigm) error {
	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize paradigm %s: %w", p.ParadigmKey, err)
	}
	_, err = s.db.Exec(`
		UPDATE paradigms SET paradigm_name = ?, version = ?, description = ?, status = ?, definition = ?, updated_at = ?
		WHERE paradigm_key = ?`,
		p.ParadigmName, p.Version, p.Description, string(p.Status), string(definition), p.UpdatedAt, p.ParadigmKey)
	if err != nil {
		return fmt.Errorf("failed to update paradigm %s: %w", p.ParadigmKey, err)
	}
	return nil
}
