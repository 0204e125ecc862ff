package security

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_WritesJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	logger := NewAuditLogger(AuditLoggerConfig{
		Writer: &buf,
		Now:    func() time.Time { return fixedTime },
	})

	logger.Log(AuditEvent{
		Type:     EventUserAdded,
		ChatID:   -100123,
		SenderID: 42,
		Command:  "adduser",
		Detail:   "user 99",
	})
	logger.Log(AuditEvent{Type: EventReplayStart, Detail: "10-20"})

	dec := json.NewDecoder(&buf)
	var first, second AuditEvent
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second line: %v", err)
	}

	if first.Type != EventUserAdded || first.SenderID != 42 || first.ChatID != -100123 {
		t.Errorf("first = %+v", first)
	}
	if !first.Timestamp.Equal(fixedTime) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, fixedTime)
	}
	if second.Type != EventReplayStart || second.Detail != "10-20" {
		t.Errorf("second = %+v", second)
	}
}

func TestAuditLogger_RedactsDetail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("my-secret-key")

	logger := NewAuditLogger(AuditLoggerConfig{
		Writer:   &buf,
		Redactor: r,
	})

	meta := map[string]string{"arg": "value is my-secret-key here"}
	logger.Log(AuditEvent{
		Type:     EventConfigChange,
		Detail:   "set with my-secret-key",
		Metadata: meta,
	})

	output := buf.String()
	if strings.Contains(output, "my-secret-key") {
		t.Errorf("secret found in audit output: %s", output)
	}
	if !strings.Contains(output, Placeholder) {
		t.Errorf("expected placeholder in audit output: %s", output)
	}
	if meta["arg"] != "value is my-secret-key here" {
		t.Error("caller's metadata was mutated")
	}
}

func TestAuditLogger_OnEventWithoutWriter(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []AuditEvent
	)
	logger := NewAuditLogger(AuditLoggerConfig{
		OnEvent: func(e AuditEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEvent{Type: EventAuthFailure})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 10 {
		t.Fatalf("events = %d, want 10", len(events))
	}
	for _, e := range events {
		if e.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}
}
