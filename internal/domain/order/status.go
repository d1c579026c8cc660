package order

type Status string

const (
	StatusProcessing Status = "processing"
	StatusVerified   Status = "verified"
	StatusShipping   Status = "shipping"
	StatusReceived   Status = "received"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// validNext encodes the fulfillment state machine. Cancellation is only
// reachable before stock has been reserved; releasing reserved stock on a
// later cancellation would need explicit support and is not offered here.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusVerified: true, StatusCancelled: true},
	StatusVerified:   {StatusShipping: true},
	StatusShipping:   {StatusReceived: true},
	StatusReceived:   {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// PredecessorOf returns the status an order must hold before it may move to
// the given target.
func PredecessorOf(to Status) Status {
	switch to {
	case StatusVerified, StatusCancelled:
		return StatusProcessing
	case StatusShipping:
		return StatusVerified
	case StatusReceived:
		return StatusShipping
	case StatusCompleted:
		return StatusReceived
	}
	return ""
}
