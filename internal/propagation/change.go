package propagation

import (
	"fmt"
	"time"

	"engineroom/internal/diff"
)

// ChangeType classifies what happened to a construct.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Valid reports whether the change type is known.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeCreate, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// Status tracks how far a change event has propagated to its consumers.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Valid reports whether the propagation status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Action is what a consumer reports having done about a change.
type Action string

const (
	ActionUpdated           Action = "updated"
	ActionIgnored           Action = "ignored"
	ActionRollbackRequested Action = "rollback_requested"
	ActionPending           Action = "pending"
)

// Valid reports whether the action is known.
func (a Action) Valid() bool {
	switch a {
	case ActionUpdated, ActionIgnored, ActionRollbackRequested, ActionPending:
		return true
	}
	return false
}

// Change is one recorded modification of a construct, with the snapshots
// and diff needed for consumers to assess impact.
type Change struct {
	ID            string                 `json:"id"`
	ConstructType ConstructType          `json:"construct_type"`
	ConstructKey  string                 `json:"construct_key"`
	ChangeType    ChangeType             `json:"change_type"`
	OldValue      map[string]interface{} `json:"old_value,omitempty"`
	NewValue      map[string]interface{} `json:"new_value,omitempty"`
	Diff          *diff.ConstructDiff    `json:"diff,omitempty"`
	ChangedBy     string                 `json:"changed_by,omitempty"`
	ChangeSummary string                 `json:"change_summary,omitempty"`
	ChangedAt     time.Time              `json:"changed_at"`

	PropagationStatus Status `json:"propagation_status"`

	// AffectedConsumers holds the IDs of consumers with an active
	// dependency on the construct at the moment the change was recorded.
	// Registrations made later do not retroactively join old changes.
	AffectedConsumers []string `json:"affected_consumers,omitempty"`
}

// Validate checks that the change event is well formed.
func (c *Change) Validate() error {
	if !c.ConstructType.Valid() {
		return fmt.Errorf("change has unknown construct type %q", c.ConstructType)
	}
	if c.ConstructKey == "" {
		return fmt.Errorf("change missing construct key")
	}
	if !c.ChangeType.Valid() {
		return fmt.Errorf("change on %s has unknown change type %q", c.ConstructKey, c.ChangeType)
	}
	if c.PropagationStatus != "" && !c.PropagationStatus.Valid() {
		return fmt.Errorf("change on %s has unknown propagation status %q", c.ConstructKey, c.PropagationStatus)
	}
	return nil
}

// Notification is the per-consumer delivery record for one change.
type Notification struct {
	ID              string     `json:"id"`
	ChangeID        string     `json:"change_id"`
	ConsumerID      string     `json:"consumer_id"`
	NotifiedAt      time.Time  `json:"notified_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ActionTaken     Action     `json:"action_taken"`
	ResponseMessage string     `json:"response_message,omitempty"`
}

// Acknowledged reports whether the consumer has responded.
func (n *Notification) Acknowledged() bool {
	return n != nil && n.AcknowledgedAt != nil
}
