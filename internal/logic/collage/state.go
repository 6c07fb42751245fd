package collage

import "fmt"

// State is the progress of one export.
type State int

const (
	Idle        State = iota // nothing in progress
	Compositing              // slots are being decoded and drawn
	Ready                    // canvas finalized, not yet saved
	Exported                 // saved (and recorded in the gallery for collages)
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compositing:
		return "compositing"
	case Ready:
		return "ready"
	case Exported:
		return "exported"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Idle, Compositing, Ready, Exported} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown export state: %q", b)
}
