package accelerator

import "fmt"

// State is the position of a Session in the encryption workflow.
type State int

const (
	// Idle is the state of a new session
	Idle State = iota

	// KeyLoaded means the key was acknowledged
	KeyLoaded

	// NonceLoaded means the nonce was acknowledged
	NonceLoaded

	// AdLoaded means the associated data was acknowledged
	AdLoaded

	// DataLoaded means the data block was acknowledged
	DataLoaded

	// Triggered means the accelerator acknowledged the trigger
	Triggered

	// TagRetrieved means the tag was read back
	TagRetrieved

	// Complete means the ciphertext was read back
	Complete
)

var stateNames = [...]string{
	Idle:         "Idle",
	KeyLoaded:    "KeyLoaded",
	NonceLoaded:  "NonceLoaded",
	AdLoaded:     "AdLoaded",
	DataLoaded:   "DataLoaded",
	Triggered:    "Triggered",
	TagRetrieved: "TagRetrieved",
	Complete:     "Complete",
}

var stateActions = [...]string{
	Idle:         "start session",
	KeyLoaded:    "load key",
	NonceLoaded:  "load nonce",
	AdLoaded:     "load associated data",
	DataLoaded:   "load data block",
	Triggered:    "trigger",
	TagRetrieved: "fetch tag",
	Complete:     "fetch ciphertext",
}

func (s State) String() string {
	if s < Idle || s > Complete {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Action names the step that moves a session into s.
func (s State) Action() string {
	if s < Idle || s > Complete {
		return s.String()
	}
	return stateActions[s]
}
