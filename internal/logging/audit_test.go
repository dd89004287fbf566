package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupAudit(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	configContent := "logging:\n  level: debug\n  debug_mode: true\n"
	if err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	resetState()
	CloseAudit()
	auditLogger = nil

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("Failed to initialize audit: %v", err)
	}
	return tempDir
}

// readAuditEvents parses the audit log back into events, skipping comments.
func readAuditEvents(t *testing.T, dir string) []AuditEvent {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	var path string
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			path = filepath.Join(dir, "logs", e.Name())
		}
	}
	if path == "" {
		t.Fatal("No audit log file found")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("Audit line is not valid JSON: %v\n%s", err, line)
		}
		events = append(events, ev)
	}
	return events
}

func TestAuditTrail(t *testing.T) {
	tempDir := setupAudit(t)

	Audit().EngineCreated("spectral-evidence", "1.0.0")
	Audit().EngineUpdated("spectral-evidence", "1.1.0", []string{"display_name", "stage_context"})
	Audit().Composed("spectral-evidence", "extraction", "analyst", "Brandomian Scorekeeping", 3)
	Audit().ComposeFailed("spectral-evidence", "curation", os.ErrNotExist)
	Audit().ChangeRecorded("chg-123", "spectral-evidence", "prompt_update", 2)
	Audit().ChangeAcknowledged("chg-123", "report-builder", "updated")

	CloseAudit()
	events := readAuditEvents(t, tempDir)

	if len(events) != 6 {
		t.Fatalf("Expected 6 audit events, got %d", len(events))
	}

	if events[0].EventType != AuditEngineCreate || !events[0].Success {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	if events[1].Fields["changed"] != "display_name, stage_context" {
		t.Errorf("Expected changed fields in update event, got %+v", events[1].Fields)
	}
	if events[2].Stage != "extraction" || events[2].Audience != "analyst" {
		t.Errorf("Compose event should carry stage and audience: %+v", events[2])
	}
	if events[3].Success || events[3].Error == "" {
		t.Errorf("Failed composition should be recorded as failure with error: %+v", events[3])
	}
	if events[4].Fields["affected_consumers"] != float64(2) {
		t.Errorf("Change record should carry affected consumer count: %+v", events[4].Fields)
	}
	if !strings.Contains(events[5].Message, "report-builder") {
		t.Errorf("Acknowledge event should name the consumer: %+v", events[5])
	}
}

func TestAuditScopedLogger(t *testing.T) {
	tempDir := setupAudit(t)

	scoped := AuditWithEngine("lattice-metrics")
	scoped.Log(AuditEvent{EventType: AuditComposeSkip, Success: true})

	CloseAudit()
	events := readAuditEvents(t, tempDir)

	if len(events) != 1 {
		t.Fatalf("Expected 1 audit event, got %d", len(events))
	}
	if events[0].EngineKey != "lattice-metrics" {
		t.Errorf("Scoped logger should fill in engine key, got %q", events[0].EngineKey)
	}
}

func TestAuditDisabledInProduction(t *testing.T) {
	tempDir := t.TempDir()
	// No config file = production mode

	resetState()
	CloseAudit()
	auditLogger = nil

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit should be a silent no-op in production: %v", err)
	}

	Audit().EngineCreated("spectral-evidence", "1.0.0")
	CloseAudit()

	if _, err := os.Stat(filepath.Join(tempDir, "logs")); !os.IsNotExist(err) {
		t.Error("No logs directory should exist in production mode")
	}
}

func BenchmarkAuditLog(b *testing.B) {
	tempDir := b.TempDir()

	configContent := "logging:\n  level: debug\n  debug_mode: true\n"
	os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)

	resetState()
	CloseAudit()
	Initialize(tempDir)
	InitAudit()
	defer CloseAudit()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Audit().Composed("spectral-evidence", "extraction", "analyst", "Brandomian Scorekeeping", 3)
	}
}
