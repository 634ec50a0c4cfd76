package worker

// Outcome is what a per-message handler decides. The consume loop turns it
// into the broker acknowledgement; handlers never touch the delivery tag
// themselves.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Nack returns the message for redelivery.
	Nack
	// Drop rejects the message without requeueing. Reserved for payloads
	// that can never succeed, e.g. malformed JSON.
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}
