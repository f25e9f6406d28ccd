package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogAudit(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	event := AuditEvent{
		Action:   ActionCreate,
		Resource: "note:123",
		ActorID:  "user:1",
		Metadata: map[string]any{"key": "value"},
	}

	LogAudit(logger, event)

	entries := observedLogs.All()
	assert.Len(t, entries, 1)
	entry := entries[0]

	assert.Equal(t, "audit event", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "audit", fields["event_type"])
	assert.Equal(t, "create", fields["audit_action"])
	assert.Equal(t, "note:123", fields["audit_resource"])
	assert.Equal(t, "user:1", fields["audit_actor_id"])
	assert.Equal(t, "", fields["audit_status"])

	meta := fields["audit_metadata"].(map[string]interface{})
	assert.Equal(t, "value", meta["key"])
}

func TestLogAudit_SecurityStackRejectionAction(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := NewZapLogger(zap.New(core))

	LogAudit(logger, AuditEvent{
		Action:    ActionXSSBlock,
		Resource:  "/api/v1/comments",
		Status:    "failure",
		RequestID: "req-1",
	})

	entries := observedLogs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "xss_block", fields["audit_action"])
	assert.Equal(t, "failure", fields["audit_status"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestLogAudit_NilLogger(t *testing.T) {
	event := AuditEvent{Action: ActionCreate}

	// Should not panic
	LogAudit(nil, event)
}
