package call

import "fmt"

// Status is an immutable snapshot of a call taken at one observed transition.
type Status struct {
	State         State
	IsMuted       bool
	IsOnHold      bool
	HasLocalVideo bool
	IsEnded       bool
}

// Ended reports whether the call no longer needs exclusive audio.
func (s Status) Ended() bool {
	return s.IsEnded || s.State.IsTerminal()
}

// String returns a compact representation for logs.
func (s Status) String() string {
	return fmt.Sprintf("state=%s muted=%t hold=%t video=%t ended=%t",
		s.State, s.IsMuted, s.IsOnHold, s.HasLocalVideo, s.IsEnded)
}
