// Package callstate holds the status of the active call and notifies observers of changes.
package callstate

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/domain/call"
)

// Source manages call status with thread-safe access.
// Observers are notified synchronously, outside the lock, with a snapshot of the status.
type Source struct {
	mu sync.RWMutex

	callID    string
	status    call.Status
	observers []call.Observer
}

// New creates a source for an idle call.
func New() *Source {
	return &Source{
		status: call.Status{State: call.StateIdle},
	}
}

// AddObserver registers an observer. Adding the same observer twice has no effect.
func (s *Source) AddObserver(o call.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.observers {
		if existing == o {
			return
		}
	}
	s.observers = append(s.observers, o)
}

// RemoveObserver unregisters an observer.
func (s *Source) RemoveObserver(o call.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.observers {
		if existing == o {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// ObserverCount returns the number of registered observers.
func (s *Source) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Status returns the current status.
func (s *Source) Status() call.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CallID returns the id of the current call, empty before the first call starts.
func (s *Source) CallID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callID
}

// SetState transitions the call. A transition out of idle or a terminal state starts a new call,
// which clears the mute, hold and video flags.
// Every transition is delivered, including one to the current state.
func (s *Source) SetState(state call.State) {
	s.mu.Lock()
	prev := s.status
	if state != call.StateIdle && !state.IsTerminal() && (prev.State == call.StateIdle || prev.Ended()) {
		s.callID = uuid.NewString()
		s.status = call.Status{}
		zlog.Info().Msgf("callstate: new call: call_id=%s", s.callID)
	}
	s.status.State = state
	s.status.IsEnded = state.IsTerminal()
	snapshot, observers, callID := s.status, s.snapshotObservers(), s.callID
	s.mu.Unlock()

	zlog.Debug().Msgf("callstate: state changed: call_id=%s %s -> %s", callID, prev.State, state)
	for _, o := range observers {
		o.StateDidChange(snapshot)
	}
}

// SetMuted updates the mute flag. Observers are notified only on change.
func (s *Source) SetMuted(muted bool) {
	s.setFlag("mute", func(st *call.Status) bool {
		if st.IsMuted == muted {
			return false
		}
		st.IsMuted = muted
		return true
	}, call.Observer.MuteDidChange)
}

// SetOnHold updates the hold flag. Observers are notified only on change.
func (s *Source) SetOnHold(onHold bool) {
	s.setFlag("hold", func(st *call.Status) bool {
		if st.IsOnHold == onHold {
			return false
		}
		st.IsOnHold = onHold
		return true
	}, call.Observer.HoldDidChange)
}

// SetLocalVideo updates the local video flag. Observers are notified only on change.
func (s *Source) SetLocalVideo(hasVideo bool) {
	s.setFlag("video", func(st *call.Status) bool {
		if st.HasLocalVideo == hasVideo {
			return false
		}
		st.HasLocalVideo = hasVideo
		return true
	}, call.Observer.HasLocalVideoDidChange)
}

func (s *Source) setFlag(name string, update func(*call.Status) bool, notify func(call.Observer, call.Status)) {
	s.mu.Lock()
	if !update(&s.status) {
		s.mu.Unlock()
		return
	}
	snapshot, observers := s.status, s.snapshotObservers()
	s.mu.Unlock()

	zlog.Debug().Msgf("callstate: %s changed: %s", name, snapshot)
	for _, o := range observers {
		notify(o, snapshot)
	}
}

// snapshotObservers must be called with the lock held.
func (s *Source) snapshotObservers() []call.Observer {
	return append([]call.Observer(nil), s.observers...)
}
