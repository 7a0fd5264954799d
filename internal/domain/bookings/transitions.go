package bookings

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
// Same-state writes are allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
