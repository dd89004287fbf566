package store

import (
	"database/sql"
	"fmt"
	"time"

	"engineroom/internal/logging"
	"engineroom/internal/propagation"

	"github.com/google/uuid"
)

// RegisterConsumer inserts a new consumer and its declared dependencies.
// A duplicate name returns ErrExists.
func (s *ConsoleStore) RegisterConsumer(c *propagation.Consumer) error {
	timer := logging.StartTimer(logging.CategoryStore, "RegisterConsumer")
	defer timer.Stop()

	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM consumers WHERE name = ?", c.Name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check consumer %s: %w", c.Name, err)
	}
	if exists > 0 {
		return fmt.Errorf("consumer %q: %w", c.Name, ErrExists)
	}

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO consumers (id, name, consumer_type, repo_url, webhook_url, contact_email, auto_update, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.ConsumerType), c.RepoURL, c.WebhookURL, c.ContactEmail, boolInt(c.AutoUpdate), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert consumer %s: %w", c.Name, err)
	}

	for i := range c.Dependencies {
		dep := &c.Dependencies[i]
		dep.ConsumerID = c.ID
		if err := s.insertDependencyLocked(dep); err != nil {
			return err
		}
	}

	logging.Propagation("Registered consumer %s (%d dependencies)", c.Name, len(c.Dependencies))
	return nil
}

// GetConsumer returns one consumer by ID, with its dependencies.
func (s *ConsoleStore) GetConsumer(id string) (*propagation.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(consumerSelect+" WHERE id = ?", id)
	c, err := scanConsumer(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("consumer %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDependenciesLocked(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetConsumerByName returns one consumer by its registered name.
func (s *ConsoleStore) GetConsumerByName(name string) (*propagation.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(consumerSelect+" WHERE name = ?", name)
	c, err := scanConsumer(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("consumer %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDependenciesLocked(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListConsumers returns all consumers with their dependencies, ordered by
// name.
func (s *ConsoleStore) ListConsumers() ([]*propagation.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(consumerSelect + " ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list consumers: %w", err)
	}
	defer rows.Close()

	var consumers []*propagation.Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			continue
		}
		consumers = append(consumers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range consumers {
		if err := s.loadDependenciesLocked(c); err != nil {
			return nil, err
		}
	}
	return consumers, nil
}

// AddDependency records that a consumer uses a construct.
func (s *ConsoleStore) AddDependency(dep *propagation.Dependency) error {
	dep.ApplyDefaults()
	if err := dep.Validate(); err != nil {
		return err
	}
	if dep.ConsumerID == "" {
		return fmt.Errorf("dependency missing consumer id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertDependencyLocked(dep)
}

// ActiveDependents returns every consumer with an active dependency on
// the given construct. This is the propagation.Registry hook the recorder
// uses to resolve a change's blast radius.
func (s *ConsoleStore) ActiveDependents(constructType propagation.ConstructType, constructKey string) ([]*propagation.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(consumerSelect+`
		WHERE id IN (
			SELECT DISTINCT consumer_id FROM consumer_dependencies
			WHERE construct_type = ? AND construct_key = ? AND is_active = 1
		) ORDER BY name`, string(constructType), constructKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependents of %s %s: %w", constructType, constructKey, err)
	}
	defer rows.Close()

	var consumers []*propagation.Consumer
	for rows.Next() {
		c, err := scanConsumer(rows)
		if err != nil {
			continue
		}
		consumers = append(consumers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range consumers {
		if err := s.loadDependenciesLocked(c); err != nil {
			return nil, err
		}
	}
	return consumers, nil
}

// ---- row plumbing ----

const consumerSelect = `
	SELECT id, name, consumer_type, repo_url, webhook_url, contact_email, auto_update, created_at, updated_at
	FROM consumers`

func (s *ConsoleStore) insertDependencyLocked(dep *propagation.Dependency) error {
	if dep.ID == "" {
		dep.ID = uuid.New().String()
	}
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO consumer_dependencies (id, consumer_id, construct_type, construct_key, usage_location, usage_type, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dep.ID, dep.ConsumerID, string(dep.ConstructType), dep.ConstructKey, dep.UsageLocation, string(dep.UsageType), boolInt(dep.IsActive), dep.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dependency on %s %s: %w", dep.ConstructType, dep.ConstructKey, err)
	}
	return nil
}

func (s *ConsoleStore) loadDependenciesLocked(c *propagation.Consumer) error {
	rows, err := s.db.Query(`
		SELECT id, consumer_id, construct_type, construct_key, usage_location, usage_type, is_active, created_at
		FROM consumer_dependencies WHERE consumer_id = ? ORDER BY created_at, id`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to load dependencies of %s: %w", c.Name, err)
	}
	defer rows.Close()

	c.Dependencies = nil
	for rows.Next() {
		var dep propagation.Dependency
		var constructType, usageType string
		var usageLocation sql.NullString
		var isActive int
		if err := rows.Scan(&dep.ID, &dep.ConsumerID, &constructType, &dep.ConstructKey, &usageLocation, &usageType, &isActive, &dep.CreatedAt); err != nil {
			continue
		}
		dep.ConstructType = propagation.ConstructType(constructType)
		dep.UsageType = propagation.UsageType(usageType)
		dep.UsageLocation = usageLocation.String
		dep.IsActive = isActive != 0
		c.Dependencies = append(c.Dependencies, dep)
	}
	return rows.Err()
}

func scanConsumer(row rowScanner) (*propagation.Consumer, error) {
	var c propagation.Consumer
	var consumerType string
	var repoURL, webhookURL, contactEmail sql.NullString
	var autoUpdate int

	err := row.Scan(&c.ID, &c.Name, &consumerType, &repoURL, &webhookURL, &contactEmail, &autoUpdate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ConsumerType = propagation.ConsumerType(consumerType)
	c.RepoURL = repoURL.String
	c.WebhookURL = webhookURL.String
	c.ContactEmail = contactEmail.String
	c.AutoUpdate = autoUpdate != 0
	return &c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
