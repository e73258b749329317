package log

// Shared field names. Handlers and services use these instead of bare
// strings so log queries stay stable.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEntity     = "entity"
	FieldRecordID   = "record_id"
	FieldVersion    = "version"
	FieldAttempts   = "attempts"
)

// Component names, one per process area.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentLedger   = "ledger"
	ComponentDocument = "documents"
	ComponentCatalog  = "catalog"
	ComponentSettings = "settings"
	ComponentSync     = "sync"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentRemote   = "remote"
	ComponentCache    = "cache"
	ComponentTemplate = "template"
)

// Operation names for the FieldOperation attribute.
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpPush     = "push"
	OpPull     = "pull"
	OpRender   = "render"
	OpExport   = "export"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// Fields builds slog attribute pairs incrementally.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithComponent(component string) Fields {
	f[FieldComponent] = component
	return f
}

func (f Fields) WithRequestID(requestID string) Fields {
	f[FieldRequestID] = requestID
	return f
}

func (f Fields) WithClientIP(ip string) Fields {
	f[FieldClientIP] = ip
	return f
}

func (f Fields) WithOperation(op string) Fields {
	f[FieldOperation] = op
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithRecord tags a log line with the synced record it concerns.
func (f Fields) WithRecord(entity, recordID string, version int64) Fields {
	f[FieldEntity] = entity
	f[FieldRecordID] = recordID
	f[FieldVersion] = version
	return f
}

func (f Fields) WithHTTPRequest(method, path, userAgent string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldUserAgent] = userAgent
	return f
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens into the alternating key/value form slog takes.
func (f Fields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
