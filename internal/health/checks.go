package health

import (
	"context"
	"fmt"

	"github.com/MrWong99/pitchstream/internal/session"
	"github.com/MrWong99/pitchstream/internal/transport"
)

// SessionView is the part of [session.Session] the checkers read.
type SessionView interface {
	State() session.State
	TransportStatus() transport.Status
}

// CaptureChecker passes while the session is running.
func CaptureChecker(s SessionView) Checker {
	return Checker{
		Name: "capture",
		Check: func(context.Context) error {
			if st := s.State(); st != session.StateRunning {
				return fmt.Errorf("session is %s", st)
			}
			return nil
		},
	}
}

// TransportChecker passes while the channel to the pitch service is open.
// A disconnected channel never recovers, so this failing is final.
func TransportChecker(s SessionView) Checker {
	return Checker{
		Name: "transport",
		Check: func(context.Context) error {
			if st := s.TransportStatus(); st != transport.StatusConnected {
				return fmt.Errorf("channel is %s", st)
			}
			return nil
		},
	}
}
