package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldTable          = "table"
	FieldID             = "id"
	FieldQuery          = "query"
	FieldSubscriptionID = "subscription_id"
	FieldDuration       = "duration_ms"
	FieldAmount         = "amount"
	FieldCategory       = "category"
	FieldIsIncome       = "is_income"
	FieldRemoteID       = "remote_id"
	FieldQueue          = "queue"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentStorage = "storage"
	ComponentTracker = "tracker"
	ComponentLive    = "live"
	ComponentService = "service"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
	ComponentMetrics = "metrics"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
	OpRerun     = "rerun"
	OpCancel    = "cancel"
	OpPublish   = "publish"
	OpRestore   = "restore"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMutation adds the fields describing a write against one table.
func (f LogFields) WithMutation(table, op string, id int64) LogFields {
	f[FieldTable] = table
	f[FieldOperation] = op
	f[FieldID] = id
	return f
}

// WithSubscription adds the live query name and subscription id.
func (f LogFields) WithSubscription(query string, id uint64) LogFields {
	f[FieldQuery] = query
	f[FieldSubscriptionID] = id
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
