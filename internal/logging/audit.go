// Audit logging for console operations. Audit events are structured JSONL
// entries recording every registry mutation, composition, and propagation so
// operators can reconstruct what changed and when.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Engine registry events
	AuditEngineCreate  AuditEventType = "engine_create"
	AuditEngineUpdate  AuditEventType = "engine_update"
	AuditEngineDelete  AuditEventType = "engine_delete"
	AuditEngineRestore AuditEventType = "engine_restore"
	AuditEngineImport  AuditEventType = "engine_import"

	// Paradigm registry events
	AuditParadigmCreate AuditEventType = "paradigm_create"
	AuditParadigmUpdate AuditEventType = "paradigm_update"

	// Pipeline registry events
	AuditPipelineCreate AuditEventType = "pipeline_create"
	AuditPipelineUpdate AuditEventType = "pipeline_update"

	// Composition events
	AuditCompose         AuditEventType = "compose"
	AuditComposeSkip     AuditEventType = "compose_skip"
	AuditComposeFallback AuditEventType = "compose_fallback"
	AuditComposeError    AuditEventType = "compose_error"

	// Propagation events
	AuditChangeRecord      AuditEventType = "change_record"
	AuditChangePropagate   AuditEventType = "change_propagate"
	AuditChangeAcknowledge AuditEventType = "change_acknowledge"
	AuditWebhookNotify     AuditEventType = "webhook_notify"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent represents a structured audit log entry.
// One JSON object per line in the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`                  // Unix milliseconds
	EventType  AuditEventType         `json:"event"`               // Operation type
	Category   string                 `json:"cat,omitempty"`       // Log category
	EngineKey  string                 `json:"engine,omitempty"`    // Engine correlation
	Stage      string                 `json:"stage,omitempty"`     // Pipeline stage if applicable
	Audience   string                 `json:"audience,omitempty"`  // Rendering audience if applicable
	Target     string                 `json:"target,omitempty"`    // Target of operation
	Success    bool                   `json:"success"`             // Operation succeeded
	DurationMs int64                  `json:"dur_ms,omitempty"`    // Duration in milliseconds
	Error      string                 `json:"error,omitempty"`     // Error message if failed
	Message    string                 `json:"msg,omitempty"`       // Human-readable message
	Fields     map[string]interface{} `json:"fields,omitempty"`    // Additional structured fields
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging
type AuditLogger struct {
	engineKey string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithEngine creates an audit logger scoped to an engine
func AuditWithEngine(engineKey string) *AuditLogger {
	return &AuditLogger{engineKey: engineKey}
}

// AuditWithContext creates a fully-scoped audit logger
func AuditWithContext(engineKey string, category Category) *AuditLogger {
	return &AuditLogger{
		engineKey: engineKey,
		category:  category,
	}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	// Fill in defaults
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.EngineKey == "" && a.engineKey != "" {
		event.EngineKey = a.engineKey
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	// Write JSON line
	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// EngineCreated records an engine registration
func (a *AuditLogger) EngineCreated(key, version string) {
	a.Log(AuditEvent{
		EventType: AuditEngineCreate,
		Category:  string(CategoryRegistry),
		EngineKey: key,
		Success:   true,
		Message:   fmt.Sprintf("created at version %s", version),
	})
}

// EngineUpdated records an engine update with the fields that changed
func (a *AuditLogger) EngineUpdated(key, version string, changedFields []string) {
	a.Log(AuditEvent{
		EventType: AuditEngineUpdate,
		Category:  string(CategoryRegistry),
		EngineKey: key,
		Success:   true,
		Message:   fmt.Sprintf("updated to version %s", version),
		Fields: map[string]interface{}{
			"changed": strings.Join(changedFields, ", "),
		},
	})
}

// EngineDeleted records an engine archive
func (a *AuditLogger) EngineDeleted(key string) {
	a.Log(AuditEvent{
		EventType: AuditEngineDelete,
		Category:  string(CategoryRegistry),
		EngineKey: key,
		Success:   true,
	})
}

// EngineRestored records a version restore
func (a *AuditLogger) EngineRestored(key string, fromVersion int, newVersion string) {
	a.Log(AuditEvent{
		EventType: AuditEngineRestore,
		Category:  string(CategoryRegistry),
		EngineKey: key,
		Success:   true,
		Message:   fmt.Sprintf("restored from version %d as %s", fromVersion, newVersion),
	})
}

// EngineImported records a bulk definition import result
func (a *AuditLogger) EngineImported(key string, created bool) {
	action := "updated"
	if created {
		action = "created"
	}
	a.Log(AuditEvent{
		EventType: AuditEngineImport,
		Category:  string(CategoryRegistry),
		EngineKey: key,
		Success:   true,
		Message:   action,
	})
}

// Composed records a successful composition
func (a *AuditLogger) Composed(engineKey, stage, audience, framework string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditCompose,
		Category:   string(CategoryCompose),
		EngineKey:  engineKey,
		Stage:      stage,
		Audience:   audience,
		Target:     framework,
		Success:    true,
		DurationMs: durationMs,
	})
}

// ComposeSkipped records a stage skipped by configuration
func (a *AuditLogger) ComposeSkipped(engineKey, stage string) {
	a.Log(AuditEvent{
		EventType: AuditComposeSkip,
		Category:  string(CategoryCompose),
		EngineKey: engineKey,
		Stage:     stage,
		Success:   true,
	})
}

// ComposeFellBack records a legacy prompt fallback
func (a *AuditLogger) ComposeFellBack(engineKey, stage string) {
	a.Log(AuditEvent{
		EventType: AuditComposeFallback,
		Category:  string(CategoryCompose),
		EngineKey: engineKey,
		Stage:     stage,
		Success:   true,
	})
}

// ComposeFailed records a composition failure
func (a *AuditLogger) ComposeFailed(engineKey, stage string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: AuditComposeError,
		Category:  string(CategoryCompose),
		EngineKey: engineKey,
		Stage:     stage,
		Success:   false,
		Error:     msg,
	})
}

// ChangeRecorded records a new change event and its blast radius
func (a *AuditLogger) ChangeRecorded(changeID, engineKey, changeType string, affectedConsumers int) {
	a.Log(AuditEvent{
		EventType: AuditChangeRecord,
		Category:  string(CategoryPropagation),
		EngineKey: engineKey,
		Target:    changeID,
		Success:   true,
		Fields: map[string]interface{}{
			"change_type":        changeType,
			"affected_consumers": affectedConsumers,
		},
	})
}

// ChangePropagated records notification fan-out for a change
func (a *AuditLogger) ChangePropagated(changeID string, notified int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditChangePropagate,
		Category:   string(CategoryPropagation),
		Target:     changeID,
		Success:    true,
		DurationMs: durationMs,
		Fields: map[string]interface{}{
			"notified": notified,
		},
	})
}

// ChangeAcknowledged records a consumer acknowledging a change
func (a *AuditLogger) ChangeAcknowledged(changeID, consumerKey, action string) {
	a.Log(AuditEvent{
		EventType: AuditChangeAcknowledge,
		Category:  string(CategoryPropagation),
		Target:    changeID,
		Success:   true,
		Message:   fmt.Sprintf("%s: %s", consumerKey, action),
	})
}

// WebhookNotified records a webhook POST attempt
func (a *AuditLogger) WebhookNotified(consumerKey, url string, success bool, errMsg string, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditWebhookNotify,
		Category:   string(CategoryPropagation),
		Target:     consumerKey,
		Success:    success,
		Error:      errMsg,
		DurationMs: durationMs,
		Fields: map[string]interface{}{
			"url": url,
		},
	})
}
