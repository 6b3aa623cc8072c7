package notification

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names a notification job type.
type Kind string

// KindCancellation notifies a courier that one of their deliveries was canceled.
const KindCancellation Kind = "cancellation"

// HeaderKind carries the job kind as a message header for routing without decoding.
const HeaderKind = "kind"

// Envelope is the wire format published onto the notifications topic.
type Envelope struct {
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Keyed payloads choose their own partition key.
type Keyed interface {
	JobKey() string
}

// CancellationJob snapshots what the cancellation email needs, so the consumer
// never reads the order back.
type CancellationJob struct {
	OrderID       int64     `json:"order_id"`
	Product       string    `json:"product"`
	CourierName   string    `json:"courier_name"`
	CourierEmail  string    `json:"courier_email"`
	RecipientName string    `json:"recipient_name"`
	Street        string    `json:"street"`
	Number        string    `json:"number"`
	Complement    string    `json:"complement,omitempty"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Zip           string    `json:"zip"`
	CanceledAt    time.Time `json:"canceled_at"`
}

// JobKey partitions cancellation jobs by order.
func (j CancellationJob) JobKey() string {
	return fmt.Sprintf("order-%d", j.OrderID)
}
