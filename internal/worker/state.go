package worker

// State is a job's position in the pipeline.
type State int

const (
	Discovered State = iota
	TimestampResolved
	Decoded
	Encoded
	Written
	OriginalDeleted
	Failed
)

var stateNames = [...]string{
	Discovered:        "Discovered",
	TimestampResolved: "TimestampResolved",
	Decoded:           "Decoded",
	Encoded:           "Encoded",
	Written:           "Written",
	OriginalDeleted:   "OriginalDeleted",
	Failed:            "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
