package hotswap

// State of the reload cycle.
type State int

const (
	Idle          State = iota //no library loaded
	Building                   //a build is in flight
	BuildFinished              //a build result is being handled
	Swapping                   //instance and library are being replaced
	Running                    //root instance runs, waiting for changes
	Failed                     //no usable library, or session terminated
)

var stateNames = [...]string{"Idle", "Building", "BuildFinished", "Swapping", "Running", "Failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
