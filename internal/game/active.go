package game

import "sync"

var (
	activeMu sync.RWMutex
	active   Server
)

// Activate makes srv the server of this process. Only one server may be active at a time.
func Activate(srv Server) error {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return ErrAlreadyActive
	}
	active = srv
	return nil
}

// Active returns the active server, or nil before Activate and after Deactivate.
func Active() Server {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

// Deactivate clears the active server if it is srv.
func Deactivate(srv Server) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active == srv {
		active = nil
	}
}
