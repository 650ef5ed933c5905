package outbox

import "time"

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one row of the outbox table. Payload is the JSON body handed to
// the sink unchanged; Headers carry static metadata such as the source service.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
}

// Attributes flattens the routing metadata of e into a single map. Headers
// never override the event's own identifiers.
func (e Event) Attributes() map[string]string {
	attrs := make(map[string]string, len(e.Headers)+3)
	for k, v := range e.Headers {
		attrs[k] = v
	}
	attrs["event_type"] = e.Type
	attrs["aggregate_type"] = e.AggregateType
	attrs["aggregate_id"] = e.AggregateID
	return attrs
}
