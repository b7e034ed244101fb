// Package call provides the call lifecycle state and status snapshot consumed by the audio coordinator.
package call

import "github.com/cockroachdb/errors"

// State represents the lifecycle state of a call.
type State int

const (
	StateIdle                       State = iota // No call activity
	StateDialing                                 // Outgoing call being set up
	StateAnswering                               // Incoming call accepted, media being set up
	StateRemoteRinging                           // Callee's device is ringing
	StateLocalRinging                            // This device is ringing
	StateConnected                               // Media flowing
	StateReconnecting                            // Media interrupted, trying to recover
	StateLocalFailure                            // Call failed on this side
	StateLocalHangup                             // Hung up by the local user
	StateRemoteHangup                            // Hung up by the remote party
	StateRemoteHangupNeedPermission              // Remote hangup, permission prompt pending
	StateRemoteBusy                              // Remote party is busy
	StateAnsweredElsewhere                       // Answered on another linked device
	StateDeclinedElsewhere                       // Declined on another linked device
	StateBusyElsewhere                           // Another linked device is busy in a call
)

var stateNames = map[State]string{
	StateIdle:                       "idle",
	StateDialing:                    "dialing",
	StateAnswering:                  "answering",
	StateRemoteRinging:              "remote_ringing",
	StateLocalRinging:               "local_ringing",
	StateConnected:                  "connected",
	StateReconnecting:               "reconnecting",
	StateLocalFailure:               "local_failure",
	StateLocalHangup:                "local_hangup",
	StateRemoteHangup:               "remote_hangup",
	StateRemoteHangupNeedPermission: "remote_hangup_need_permission",
	StateRemoteBusy:                 "remote_busy",
	StateAnsweredElsewhere:          "answered_elsewhere",
	StateDeclinedElsewhere:          "declined_elsewhere",
	StateBusyElsewhere:              "busy_elsewhere",
}

// AllStates lists every state in declaration order.
func AllStates() []State {
	states := make([]State, 0, len(stateNames))
	for s := StateIdle; s <= StateBusyElsewhere; s++ {
		states = append(states, s)
	}
	return states
}

// String returns the string representation of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the state ends the call for audio purposes.
func (s State) IsTerminal() bool {
	switch s {
	case StateLocalFailure,
		StateLocalHangup,
		StateRemoteHangup,
		StateRemoteHangupNeedPermission,
		StateRemoteBusy,
		StateAnsweredElsewhere,
		StateDeclinedElsewhere,
		StateBusyElsewhere:
		return true
	default:
		return false
	}
}

// ParseState parses a state name as produced by String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return StateIdle, errors.Newf("unknown call state: %q", name)
}
