package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"engineroom/internal/diff"
	"engineroom/internal/engine"
	"engineroom/internal/logging"

	"github.com/google/uuid"
)

// EngineFilter narrows ListEngines results. Zero values mean "no filter".
type EngineFilter struct {
	Category string
	Kind     engine.Kind
	Paradigm string
	Status   engine.Status
	Search   string // substring match over key, name, description
	Limit    int
	Offset   int
}

// CreateEngine inserts a new engine at version 1 and writes its first
// version snapshot. An engine with the same key returns ErrExists.
func (s *ConsoleStore) CreateEngine(e *engine.Engine, changedBy, summary string) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateEngine")
	defer timer.Stop()

	e.ApplyDefaults()
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM engines WHERE engine_key = ?", e.EngineKey).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check engine %s: %w", e.EngineKey, err)
	}
	if exists > 0 {
		return fmt.Errorf("engine %q: %w", e.EngineKey, ErrExists)
	}

	now := time.Now().UTC()
	e.ID = uuid.New().String()
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.insertEngine(e); err != nil {
		return err
	}

	if summary == "" {
		summary = "Initial version"
	}
	if err := s.insertVersionSnapshot(e, changedBy, summary); err != nil {
		return err
	}

	logging.Registry("Created engine %s (version 1)", e.EngineKey)
	logging.Audit().EngineCreated(e.EngineKey, "1")
	return nil
}

// GetEngine returns one engine by key.
func (s *ConsoleStore) GetEngine(key string) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(engineSelect+" WHERE engine_key = ?", key)
	e, err := scanEngine(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("engine %q: %w", key, ErrNotFound)
	}
	return e, err
}

// ListEngines returns engines matching the filter, ordered by key.
func (s *ConsoleStore) ListEngines(filter EngineFilter) ([]*engine.Engine, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListEngines")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := engineSelect + " WHERE 1=1"
	var args []interface{}

	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Paradigm != "" {
		// paradigm_keys is a JSON array of strings
		query += " AND paradigm_keys LIKE ?"
		args = append(args, "%\""+filter.Paradigm+"\"%")
	}
	if filter.Search != "" {
		query += " AND (engine_key LIKE ? OR engine_name LIKE ? OR description LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query += " ORDER BY engine_key"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list engines: %w", err)
	}
	defer rows.Close()

	var engines []*engine.Engine
	for rows.Next() {
		e, err := scanEngine(rows)
		if err != nil {
			logging.RegistryDebug("Skipping unreadable engine row: %v", err)
			continue
		}
		engines = append(engines, e)
	}
	return engines, rows.Err()
}

// EngineCategories returns category names with their engine counts.
func (s *ConsoleStore) EngineCategories() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT category, COUNT(*) FROM engines GROUP BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			continue
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

// UpdateEngine replaces an engine's definition, bumps its version, and
// snapshots the new state. The change summary defaults to the list of
// fields that actually differ.
func (s *ConsoleStore) UpdateEngine(e *engine.Engine, changedBy, summary string) (*engine.Engine, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateEngine")
	defer timer.Stop()

	if err := e.Validate(); err != nil {
		return nil, err
	}

	current, err := s.GetEngine(e.EngineKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := e.Clone()
	updated.ID = current.ID
	updated.Version = current.Version + 1
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	if updated.Status == "" {
		updated.Status = current.Status
	}

	if summary == "" {
		summary = updateSummary(current, updated)
	}

	if err := s.replaceEngine(updated); err != nil {
		return nil, err
	}
	if err := s.insertVersionSnapshot(updated, changedBy, summary); err != nil {
		return nil, err
	}

	logging.Registry("Updated engine %s to version %d: %s", updated.EngineKey, updated.Version, summary)
	logging.Audit().EngineUpdated(updated.EngineKey, fmt.Sprintf("%d", updated.Version), nil)
	return updated, nil
}

// DeleteEngine archives an engine. The row and its version history stay
// in place for inspection and restore.
func (s *ConsoleStore) DeleteEngine(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE engines SET status = ?, updated_at = ? WHERE engine_key = ?",
		string(engine.StatusArchived), time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to archive engine %s: %w", key, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("engine %q: %w", key, ErrNotFound)
	}

	logging.Registry("Archived engine %s", key)
	logging.Audit().EngineDeleted(key)
	return nil
}

// RestoreEngine reinstates an earlier version's snapshot as a new version.
func (s *ConsoleStore) RestoreEngine(key string, version int, changedBy string) (*engine.Engine, error) {
	record, err := s.GetEngineVersion(key, version)
	if err != nil {
		return nil, err
	}

	restored := record.FullSnapshot.Clone()
	restored.EngineKey = key

	summary := fmt.Sprintf("Restored from version %d", version)
	updated, err := s.UpdateEngine(restored, changedBy, summary)
	if err != nil {
		return nil, err
	}

	logging.Audit().EngineRestored(key, version, fmt.Sprintf("%d", updated.Version))
	return updated, nil
}

// EngineVersions returns all version snapshots for an engine, newest
// first.
func (s *ConsoleStore) EngineVersions(key string) ([]*engine.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, engine_id, version, full_snapshot, change_summary, changed_by, created_at
		FROM engine_versions WHERE engine_key = ? ORDER BY version DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", key, err)
	}
	defer rows.Close()

	var records []*engine.VersionRecord
	for rows.Next() {
		record, err := scanVersionRecord(rows)
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("engine %q: %w", key, ErrNotFound)
	}
	return records, rows.Err()
}

// GetEngineVersion returns one version snapshot of an engine.
func (s *ConsoleStore) GetEngineVersion(key string, version int) (*engine.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, engine_id, version, full_snapshot, change_summary, changed_by, created_at
		FROM engine_versions WHERE engine_key = ? AND version = ?`, key, version)
	record, err := scanVersionRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("engine %q version %d: %w", key, version, ErrNotFound)
	}
	return record, err
}

// StageContextOf returns an engine's stage context, or ErrNotFound when
// the engine does not exist. A nil context with a nil error means the
// engine is still legacy-authored.
func (s *ConsoleStore) StageContextOf(key string) (*engine.StageContext, error) {
	e, err := s.GetEngine(key)
	if err != nil {
		return nil, err
	}
	return e.StageContext, nil
}

// ---- row plumbing ----

const engineSelect = `
	SELECT id, engine_key, version, engine_name, description, category, kind,
		reasoning_domain, researcher_question, stage_context,
		extraction_prompt, curation_prompt, concretization_prompt,
		canonical_schema, extraction_focus, primary_output_modes,
		paradigm_keys, engine_profile, status, created_at, updated_at
	FROM engines`

func (s *ConsoleStore) insertEngine(e *engine.Engine) error {
	cols, err := engineColumns(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO engines (
			id, engine_key, version, engine_name, description, category, kind,
			reasoning_domain, researcher_question, stage_context,
			extraction_prompt, curation_prompt, concretization_prompt,
			canonical_schema, extraction_focus, primary_output_modes,
			paradigm_keys, engine_profile, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cols...)
	if err != nil {
		return fmt.Errorf("failed to insert engine %s: %w", e.EngineKey, err)
	}
	return nil
}

func (s *ConsoleStore) replaceEngine(e *engine.Engine) error {
	cols, err := engineColumns(e)
	if err != nil {
		return err
	}
	// Same column order as insertEngine, minus the leading id and key.
	args := append(cols[2:], e.EngineKey)
	_, err = s.db.Exec(`
		UPDATE engines SET
			version = ?, engine_name = ?, description = ?, category = ?, kind = ?,
			reasoning_domain = ?, researcher_question = ?, stage_context = ?,
			extraction_prompt = ?, curation_prompt = ?, concretization_prompt = ?,
			canonical_schema = ?, extraction_focus = ?, primary_output_modes = ?,
			paradigm_keys = ?, engine_profile = ?, status = ?, created_at = ?, updated_at = ?
		WHERE engine_key = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update engine %s: %w", e.EngineKey, err)
	}
	return nil
}

func (s *ConsoleStore) insertVersionSnapshot(e *engine.Engine, changedBy, summary string) error {
	snapshot, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot of %s: %w", e.EngineKey, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO engine_versions (id, engine_id, engine_key, version, full_snapshot, change_summary, changed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), e.ID, e.EngineKey, e.Version, string(snapshot), summary, changedBy, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to snapshot engine %s version %d: %w", e.EngineKey, e.Version, err)
	}
	return nil
}

func engineColumns(e *engine.Engine) ([]interface{}, error) {
	stageContext, err := jsonColumn(e.StageContext)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize stage context of %s: %w", e.EngineKey, err)
	}
	schema, _ := jsonColumn(e.CanonicalSchema)
	focus, _ := jsonColumn(e.ExtractionFocus)
	modes, _ := jsonColumn(e.PrimaryOutputModes)
	paradigms, _ := jsonColumn(e.ParadigmKeys)
	profile, _ := jsonColumn(e.EngineProfile)

	return []interface{}{
		e.ID, e.EngineKey, e.Version, e.EngineName, e.Description, e.Category, string(e.Kind),
		e.ReasoningDomain, e.ResearcherQuestion, stageContext,
		e.ExtractionPrompt, e.CurationPrompt, e.ConcretizationPrompt,
		schema, focus, modes, paradigms, profile,
		string(e.Status), e.CreatedAt, e.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEngine(row rowScanner) (*engine.Engine, error) {
	var e engine.Engine
	var kind, status string
	var reasoningDomain, researcherQuestion sql.NullString
	var stageContext, extractionPrompt, curationPrompt, concretizationPrompt sql.NullString
	var schema, focus, modes, paradigms, profile sql.NullString

	err := row.Scan(
		&e.ID, &e.EngineKey, &e.Version, &e.EngineName, &e.Description, &e.Category, &kind,
		&reasoningDomain, &researcherQuestion, &stageContext,
		&extractionPrompt, &curationPrompt, &concretizationPrompt,
		&schema, &focus, &modes, &paradigms, &profile,
		&status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = engine.Kind(kind)
	e.Status = engine.Status(status)
	e.ReasoningDomain = reasoningDomain.String
	e.ResearcherQuestion = researcherQuestion.String
	e.ExtractionPrompt = extractionPrompt.String
	e.CurationPrompt = curationPrompt.String
	e.ConcretizationPrompt = concretizationPrompt.String

	if stageContext.Valid && stageContext.String != "" {
		var sc engine.StageContext
		if err := json.Unmarshal([]byte(stageContext.String), &sc); err != nil {
			return nil, fmt.Errorf("failed to decode stage context of %s: %w", e.EngineKey, err)
		}
		e.StageContext = &sc
	}
	decodeJSONColumn(schema, &e.CanonicalSchema)
	decodeJSONColumn(focus, &e.ExtractionFocus)
	decodeJSONColumn(modes, &e.PrimaryOutputModes)
	decodeJSONColumn(paradigms, &e.ParadigmKeys)
	decodeJSONColumn(profile, &e.EngineProfile)

	return &e, nil
}

func scanVersionRecord(row rowScanner) (*engine.VersionRecord, error) {
	var record engine.VersionRecord
	var snapshot string
	var summary, changedBy sql.NullString

	err := row.Scan(&record.ID, &record.EngineID, &record.Version, &snapshot, &summary, &changedBy, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.ChangeSummary = summary.String
	record.ChangedBy = changedBy.String

	var e engine.Engine
	if err := json.Unmarshal([]byte(snapshot), &e); err != nil {
		return nil, fmt.Errorf("failed to decode version snapshot: %w", err)
	}
	record.FullSnapshot = &e
	return &record, nil
}

func updateSummary(current, updated *engine.Engine) string {
	oldSnap, errOld := diff.Snapshot(current)
	newSnap, errNew := diff.Snapshot(updated)
	if errOld != nil || errNew != nil {
		return "Updated engine"
	}
	d := diff.Construct(oldSnap, newSnap)
	fields := make([]string, 0, 8)
	for _, f := range d.ChangedFields() {
		// Bookkeeping columns change on every update; callers care about
		// the definition fields.
		switch f {
		case "version", "updated_at", "created_at", "id":
			continue
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return "Updated engine"
	}
	return "Updated fields: " + strings.Join(fields, ", ")
}

func jsonColumn(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typed := v.(type) {
	case *engine.StageContext:
		if typed == nil {
			return nil, nil
		}
	case map[string]interface{}:
		if typed == nil {
			return nil, nil
		}
	case []string:
		if typed == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeJSONColumn(col sql.NullString, target interface{}) {
	if !col.Valid || col.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(col.String), target); err != nil {
		logging.StoreDebug("Ignoring undecodable JSON column: %v", err)
	}
}
