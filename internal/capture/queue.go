package capture

import "context"

// Message is one capture work item pulled from the durable queue. ID is the
// transport's delivery handle.
type Message struct {
	ID               string
	ChargeExternalID string
}

// Queue is the durable work-queue contract. Receive blocks up to the
// configured wait time and also surfaces redelivered messages whose
// visibility timeout expired without an ack. A message never acked via
// MarkProcessed is redelivered; that, not an in-process loop, is how the
// processor expresses retry.
type Queue interface {
	Receive(ctx context.Context) ([]Message, error)
	MarkProcessed(ctx context.Context, m Message) error
}

// Producer enqueues charges for capture.
type Producer interface {
	AddChargeToQueue(ctx context.Context, chargeExternalID string) error
}
