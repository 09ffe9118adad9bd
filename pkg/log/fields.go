package log

const (
	// HTTP request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Domain
	FieldTenant   = "tenant_key"
	FieldHandle   = "handle"
	FieldQueue    = "queue"
	FieldEntryID  = "entry_id"
	FieldPlatform = "platform"
	FieldClientID = "client_id"

	// Service
	FieldService = "service"
)
