package types

// DefaultCap controls how many processes a single cycle may terminate.
const DefaultCap = 5

// ProcessInfo is one row of a process census. Values are copied out of the
// OS listing and never mutated afterwards.
type ProcessInfo struct {
	PID        int
	PPID       int
	CPUPercent float64
	VSZKiB     uint64
	Comm       string
}

// Outcome classifies a single termination attempt.
type Outcome int

const (
	Terminated Outcome = iota
	PermissionDenied
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Terminated:
		return "Terminated"
	case PermissionDenied:
		return "PermissionDenied"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// MarshalText renders the outcome label in reports and YAML sidecars.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// TerminationOutcome pairs a census row with what happened when we signalled it.
type TerminationOutcome struct {
	Process ProcessInfo
	Outcome Outcome
}

// LoadSample holds the 1, 5 and 15 minute load averages.
type LoadSample struct {
	One     float64
	Five    float64
	Fifteen float64
}

// Window returns the load average for the given window in minutes.
// Unknown windows fall back to the 15 minute figure.
func (s LoadSample) Window(minutes int) float64 {
	switch minutes {
	case 1:
		return s.One
	case 5:
		return s.Five
	default:
		return s.Fifteen
	}
}
