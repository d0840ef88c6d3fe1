package worksheet_test

import (
	"testing"

	"github.com/p-n-ai/pai-qcm/internal/worksheet"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := worksheet.NewMemoryEventLogger()

	err := logger.LogEvent(worksheet.Event{
		EventType: worksheet.EventQCMsGenerated,
		Data: map[string]any{
			"count": 4,
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].EventType != worksheet.EventQCMsGenerated {
		t.Errorf("EventType = %q, want %s", events[0].EventType, worksheet.EventQCMsGenerated)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if logger.Count(worksheet.EventQCMDropped) != 0 {
		t.Error("Count(qcm_dropped) should be 0")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	if err := worksheet.NewMemoryEventLogger().LogEvent(worksheet.Event{}); err == nil {
		t.Error("expected error for missing event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := worksheet.NewPostgresEventLogger(nil)

	err := logger.LogEvent(worksheet.Event{
		EventType: worksheet.EventWorksheetSaved,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestNopEventLogger(t *testing.T) {
	var l worksheet.EventLogger = worksheet.NopEventLogger{}
	if err := l.LogEvent(worksheet.Event{}); err != nil {
		t.Errorf("LogEvent() error = %v", err)
	}
}
