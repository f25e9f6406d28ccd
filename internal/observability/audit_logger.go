package observability

// LogAudit logs an audit event through the package's Logger abstraction (so
// any Logger implementation, not just ZapLogger, can receive audit events),
// tagging the entry so audit events are easy to filter out of the general
// access/error log stream.
func LogAudit(logger Logger, event AuditEvent) {
	if logger == nil {
		return
	}

	fields := []Field{
		String("event_type", "audit"),
		String("audit_action", string(event.Action)),
		String("audit_resource", event.Resource),
		String("audit_actor_id", event.ActorID),
		String("audit_status", event.Status),
		Any("audit_metadata", event.Metadata),
	}

	if event.Error != "" {
		fields = append(fields, String("audit_error", event.Error))
	}
	if event.RequestID != "" {
		fields = append(fields, String("request_id", event.RequestID))
	}
	if event.IPAddress != "" {
		fields = append(fields, String("ip_address", event.IPAddress))
	}

	logger.Warn("audit event", fields...)
}
