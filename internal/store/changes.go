package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"engineroom/internal/diff"
	"engineroom/internal/logging"
	"engineroom/internal/propagation"
)

// ChangeFilter narrows ListChanges results.
type ChangeFilter struct {
	ConstructType propagation.ConstructType
	ConstructKey  string
	ChangeType    propagation.ChangeType
	Status        propagation.Status
	Limit         int
}

// SaveChange persists a new change event. Part of propagation.Registry.
func (s *ConsoleStore) SaveChange(change *propagation.Change) error {
	timer := logging.StartTimer(logging.CategoryStore, "SaveChange")
	defer timer.Stop()

	if err := change.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue, _ := jsonColumn(change.OldValue)
	newValue, _ := jsonColumn(change.NewValue)
	var diffCol interface{}
	if change.Diff != nil && !change.Diff.Empty() {
		data, err := json.Marshal(change.Diff)
		if err != nil {
			return fmt.Errorf("failed to serialize diff of change %s: %w", change.ID, err)
		}
		diffCol = string(data)
	}
	affected, _ := jsonColumn(change.AffectedConsumers)

	_, err := s.db.Exec(`
		INSERT INTO changes (id, construct_type, construct_key, change_type, old_value, new_value, diff,
			changed_by, change_summary, changed_at, propagation_status, affected_consumers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ID, string(change.ConstructType), change.ConstructKey, string(change.ChangeType),
		oldValue, newValue, diffCol,
		change.ChangedBy, change.ChangeSummary, change.ChangedAt,
		string(change.PropagationStatus), affected)
	if err != nil {
		return fmt.Errorf("failed to insert change %s: %w", change.ID, err)
	}
	return nil
}

// GetChange returns one change event by ID.
func (s *ConsoleStore) GetChange(id string) (*propagation.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(changeSelect+" WHERE id = ?", id)
	change, err := scanChange(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("change %q: %w", id, ErrNotFound)
	}
	return change, err
}

// ListChanges returns change events matching the filter, newest first.
func (s *ConsoleStore) ListChanges(filter ChangeFilter) ([]*propagation.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := changeSelect + " WHERE 1=1"
	var args []interface{}
	if filter.ConstructType != "" {
		query += " AND construct_type = ?"
		args = append(args, string(filter.ConstructType))
	}
	if filter.ConstructKey != "" {
		query += " AND construct_key = ?"
		args = append(args, filter.ConstructKey)
	}
	if filter.ChangeType != "" {
		query += " AND change_type = ?"
		args = append(args, string(filter.ChangeType))
	}
	if filter.Status != "" {
		query += " AND propagation_status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY changed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	var changes []*propagation.Change
	for rows.Next() {
		change, err := scanChange(rows)
		if err != nil {
			continue
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}

// ChangeHistory returns all change events for one construct, newest
// first.
func (s *ConsoleStore) ChangeHistory(constructType propagation.ConstructType, constructKey string) ([]*propagation.Change, error) {
	return s.ListChanges(ChangeFilter{ConstructType: constructType, ConstructKey: constructKey})
}

// UpdateChangeStatus moves a change to a new propagation status. Part of
// propagation.Registry.
func (s *ConsoleStore) UpdateChangeStatus(changeID string, status propagation.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown propagation status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE changes SET propagation_status = ? WHERE id = ?", string(status), changeID)
	if err != nil {
		return fmt.Errorf("failed to update status of change %s: %w", changeID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("change %q: %w", changeID, ErrNotFound)
	}
	return nil
}

// SaveNotification persists one per-consumer delivery record. Part of
// propagation.Registry.
func (s *ConsoleStore) SaveNotification(n *propagation.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO change_notifications (id, change_id, consumer_id, notified_at, acknowledged_at, action_taken, response_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(change_id, consumer_id) DO UPDATE SET notified_at = excluded.notified_at`,
		n.ID, n.ChangeID, n.ConsumerID, n.NotifiedAt, n.AcknowledgedAt, string(n.ActionTaken), n.ResponseMessage)
	if err != nil {
		return fmt.Errorf("failed to insert notification for change %s: %w", n.ChangeID, err)
	}
	return nil
}

// ListNotifications returns all delivery records for one change.
func (s *ConsoleStore) ListNotifications(changeID string) ([]*propagation.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, change_id, consumer_id, notified_at, acknowledged_at, action_taken, response_message
		FROM change_notifications WHERE change_id = ? ORDER BY notified_at, id`, changeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications of change %s: %w", changeID, err)
	}
	defer rows.Close()

	var notifications []*propagation.Notification
	for rows.Next() {
		var n propagation.Notification
		var action string
		var acknowledgedAt sql.NullTime
		var message sql.NullString
		if err := rows.Scan(&n.ID, &n.ChangeID, &n.ConsumerID, &n.NotifiedAt, &acknowledgedAt, &action, &message); err != nil {
			continue
		}
		n.ActionTaken = propagation.Action(action)
		n.ResponseMessage = message.String
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			n.AcknowledgedAt = &t
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// Acknowledge records a consumer's response to a change notification.
func (s *ConsoleStore) Acknowledge(changeID, consumerID string, action propagation.Action, message string) error {
	if !action.Valid() {
		return fmt.Errorf("unknown acknowledgement action %q", action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE change_notifications SET acknowledged_at = ?, action_taken = ?, response_message = ?
		WHERE change_id = ? AND consumer_id = ?`,
		time.Now().UTC(), string(action), message, changeID, consumerID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge change %s: %w", changeID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("notification for change %q and consumer %q: %w", changeID, consumerID, ErrNotFound)
	}

	logging.Propagation("Consumer %s acknowledged change %s with action %s", consumerID, changeID, action)
	logging.Audit().ChangeAcknowledged(changeID, consumerID, string(action))
	return nil
}

// ---- row plumbing ----

const changeSelect = `
	SELECT id, construct_type, construct_key, change_type, old_value, new_value, diff,
		changed_by, change_summary, changed_at, propagation_status, affected_consumers
	FROM changes`

func scanChange(row rowScanner) (*propagation.Change, error) {
	var change propagation.Change
	var constructType, changeType, status string
	var oldValue, newValue, diffCol, changedBy, summary, affected sql.NullString

	err := row.Scan(&change.ID, &constructType, &change.ConstructKey, &changeType,
		&oldValue, &newValue, &diffCol, &changedBy, &summary, &change.ChangedAt, &status, &affected)
	if err != nil {
		return nil, err
	}

	change.ConstructType = propagation.ConstructType(constructType)
	change.ChangeType = propagation.ChangeType(changeType)
	change.PropagationStatus = propagation.Status(status)
	change.ChangedBy = changedBy.String
	change.ChangeSummary = summary.String

	decodeJSONColumn(oldValue, &change.OldValue)
	decodeJSONColumn(newValue, &change.NewValue)
	decodeJSONColumn(affected, &change.AffectedConsumers)
	if diffCol.Valid && diffCol.String != "" {
		var d diff.ConstructDiff
		if err := json.Unmarshal([]byte(diffCol.String), &d); err == nil {
			change.Diff = &d
		}
	}
	return &change, nil
}
