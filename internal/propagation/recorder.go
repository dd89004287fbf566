package propagation

import (
	"fmt"
	"strings"
	"time"

	"engineroom/internal/diff"
	"engineroom/internal/logging"

	"github.com/google/uuid"
)

// Registry is the persistence surface the recorder and propagator need.
// The console store implements it; tests use an in-memory fake.
type Registry interface {
	// ActiveDependents returns every consumer holding an active dependency
	// on the given construct.
	ActiveDependents(constructType ConstructType, constructKey string) ([]*Consumer, error)
	// GetConsumer returns one consumer by ID.
	GetConsumer(id string) (*Consumer, error)
	// SaveChange persists a new change event.
	SaveChange(change *Change) error
	// UpdateChangeStatus moves a change event to a new propagation status.
	UpdateChangeStatus(changeID string, status Status) error
	// SaveNotification persists one per-consumer delivery record.
	SaveNotification(n *Notification) error
}

// Recorder turns construct edits into persisted change events. The set of
// affected consumers is resolved at record time, so the event captures who
// depended on the construct when it changed.
type Recorder struct {
	registry Registry
}

// NewRecorder builds a recorder over a registry.
func NewRecorder(registry Registry) *Recorder {
	return &Recorder{registry: registry}
}

// Record snapshots both sides of a construct edit, computes the diff,
// resolves the affected consumers, and persists the change event in
// pending state. Either value may be nil (creation has no old side,
// deletion no new side).
func (r *Recorder) Record(constructType ConstructType, constructKey string, changeType ChangeType, oldValue, newValue interface{}, changedBy, summary string) (*Change, error) {
	oldSnap, err := diff.Snapshot(oldValue)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot old value of %s %s: %w", constructType, constructKey, err)
	}
	newSnap, err := diff.Snapshot(newValue)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot new value of %s %s: %w", constructType, constructKey, err)
	}

	d := diff.Construct(oldSnap, newSnap)
	if summary == "" {
		summary = defaultSummary(constructType, constructKey, changeType, d)
	}

	change := &Change{
		ID:                uuid.New().String(),
		ConstructType:     constructType,
		ConstructKey:      constructKey,
		ChangeType:        changeType,
		OldValue:          oldSnap,
		NewValue:          newSnap,
		Diff:              d,
		ChangedBy:         changedBy,
		ChangeSummary:     summary,
		ChangedAt:         time.Now().UTC(),
		PropagationStatus: StatusPending,
	}
	if err := change.Validate(); err != nil {
		return nil, err
	}

	consumers, err := r.registry.ActiveDependents(constructType, constructKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve consumers of %s %s: %w", constructType, constructKey, err)
	}
	for _, c := range consumers {
		change.AffectedConsumers = append(change.AffectedConsumers, c.ID)
	}

	if err := r.registry.SaveChange(change); err != nil {
		return nil, fmt.Errorf("failed to record change for %s %s: %w", constructType, constructKey, err)
	}

	logging.Propagation("Recorded %s of %s %s (%d affected consumers)",
		changeType, constructType, constructKey, len(change.AffectedConsumers))
	logging.Audit().ChangeRecorded(change.ID, constructKey, string(changeType), len(change.AffectedConsumers))

	return change, nil
}

func defaultSummary(constructType ConstructType, constructKey string, changeType ChangeType, d *diff.ConstructDiff) string {
	switch changeType {
	case ChangeCreate:
		return fmt.Sprintf("Created %s %s", constructType, constructKey)
	case ChangeDelete:
		return fmt.Sprintf("Deleted %s %s", constructType, constructKey)
	}
	fields := d.ChangedFields()
	if len(fields) == 0 {
		return fmt.Sprintf("Updated %s %s", constructType, constructKey)
	}
	return "Updated fields: " + strings.Join(fields, ", ")
}
