package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"engineroom/internal/logging"
	"engineroom/internal/pipeline"

	"github.com/google/uuid"
)

// PipelineFilter narrows ListPipelines results.
type PipelineFilter struct {
	Status   pipeline.Status
	Category string
}

// CreatePipeline inserts a new pipeline. A duplicate key returns
// ErrExists.
func (s *ConsoleStore) CreatePipeline(p *pipeline.Pipeline) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreatePipeline")
	defer timer.Stop()

	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pipelines WHERE pipeline_key = ?", p.PipelineKey).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check pipeline %s: %w", p.PipelineKey, err)
	}
	if exists > 0 {
		return fmt.Errorf("pipeline %q: %w", p.PipelineKey, ErrExists)
	}

	now := time.Now().UTC()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.SortStages()

	definition, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize pipeline %s: %w", p.PipelineKey, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO pipelines (id, pipeline_key, pipeline_name, blend_mode, category, status, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PipelineKey, p.PipelineName, string(p.BlendMode), p.Category, string(p.Status), string(definition), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline %s: %w", p.PipelineKey, err)
	}

	logging.Get(logging.CategoryPipeline).Info("Created pipeline %s (%d stages)", p.PipelineKey, len(p.Stages))
	return nil
}

// GetPipeline returns one pipeline by key.
func (s *ConsoleStore) GetPipeline(key string) (*pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPipelineLocked(key)
}

func (s *ConsoleStore) getPipelineLocked(key string) (*pipeline.Pipeline, error) {
	var definition string
	err := s.db.QueryRow("SELECT definition FROM pipelines WHERE pipeline_key = ?", key).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pipeline %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline %s: %w", key, err)
	}

	var p pipeline.Pipeline
	if err := json.Unmarshal([]byte(definition), &p); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", key, err)
	}
	return &p, nil
}

// ListPipelines returns pipelines matching the filter, ordered by key.
func (s *ConsoleStore) ListPipelines(filter PipelineFilter) ([]*pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT definition FROM pipelines WHERE 1=1"
	var args []interface{}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	query += " ORDER BY pipeline_key"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []*pipeline.Pipeline
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			continue
		}
		var p pipeline.Pipeline
		if err := json.Unmarshal([]byte(definition), &p); err != nil {
			continue
		}
		pipelines = append(pipelines, &p)
	}
	return pipelines, rows.Err()
}

// UpdatePipeline replaces a pipeline's definition.
func (s *ConsoleStore) UpdatePipeline(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getPipelineLocked(p.PipelineKey)
	if err != nil {
		return nil, err
	}

	updated := p.Clone()
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	updated.SortStages()
	if updated.Status == "" {
		updated.Status = current.Status
	}

	definition, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize pipeline %s: %w", updated.PipelineKey, err)
	}

	_, err = s.db.Exec(`
		UPDATE pipelines SET pipeline_name = ?, blend_mode = ?, category = ?, status = ?, definition = ?, updated_at = ?
		WHERE pipeline_key = ?`,
		updated.PipelineName, string(updated.BlendMode), updated.Category, string(updated.Status), string(definition), updated.UpdatedAt, updated.PipelineKey)
	if err != nil {
		return nil, fmt.Errorf("failed to update pipeline %s: %w", updated.PipelineKey, err)
	}

	logging.Get(logging.CategoryPipeline).Info("Updated pipeline %s", updated.PipelineKey)
	return updated, nil
}

// DeletePipeline archives a pipeline.
func (s *ConsoleStore) DeletePipeline(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE pipelines SET status = ?, updated_at = ? WHERE pipeline_key = ?",
		string(pipeline.StatusArchived), time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("failed to archive pipeline %s: %w", key, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("pipeline %q: %w", key, ErrNotFound)
	}

	logging.Get(logging.CategoryPipeline).Info("Archived pipeline %s", key)
	return nil
}

// PipelinesUsingEngine returns every pipeline with a stage that runs the
// given engine, directly or as a sub-pass. Used for impact analysis when
// an engine changes.
func (s *ConsoleStore) PipelinesUsingEngine(engineKey string) ([]*pipeline.Pipeline, error) {
	all, err := s.ListPipelines(PipelineFilter{})
	if err != nil {
		return nil, err
	}
	var using []*pipeline.Pipeline
	for _, p := range all {
		if p.ReferencesEngine(engineKey) {
			using = append(using, p)
		}
	}
	return using, nil
}
