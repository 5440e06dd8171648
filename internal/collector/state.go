package collector

import "sync"

// State is a collector's lifecycle position.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "stopped"
	}
}

// status is the state cell every collector embeds. Failures never cross the
// collector boundary as errors; they land here as a string the coordinator
// reads.
type status struct {
	mu    sync.Mutex
	state State
	err   string
}

func (s *status) set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *status) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.err = msg
}

func (s *status) softErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

func (s *status) clearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
}

// State returns the current lifecycle state.
func (s *status) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the latest error string, empty when healthy.
func (s *status) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
