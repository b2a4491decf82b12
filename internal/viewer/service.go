package viewer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"multiview-sync/internal/syncengine"
)

var (
	// ErrMultipleReferences is returned when a layout has more than one main window.
	ErrMultipleReferences = errors.New("only one main window is allowed")

	// ErrDuplicateWindow is returned when a window id is used twice.
	ErrDuplicateWindow = errors.New("window id already in use")

	// ErrUnknownRole is returned for a window with an unrecognised role.
	ErrUnknownRole = errors.New("unknown window role")

	// ErrMissingDriverID is returned for a driver window without a driver id.
	ErrMissingDriverID = errors.New("driver window needs a driver id")

	// ErrWindowNotFound is returned when removing a window that is not open.
	ErrWindowNotFound = errors.New("window not found")
)

// WindowSink receives every accepted window layout.
type WindowSink interface {
	SetWindows(windows []syncengine.Window)
}

// Service owns the viewer's window layout and pushes every change to the
// sync engine. It is the only place that enforces a single reference window.
type Service struct {
	mu      sync.RWMutex
	windows []syncengine.Window
	sink    WindowSink
}

// NewService returns a Service with an empty layout.
func NewService(sink WindowSink) *Service {
	return &Service{sink: sink}
}

// Windows returns a copy of the current layout in display order.
func (s *Service) Windows() []syncengine.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]syncengine.Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// Has reports whether a window with id is open.
func (s *Service) Has(id syncengine.WindowID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.windows {
		if w.ID == id {
			return true
		}
	}
	return false
}

// Replace swaps the whole layout. Windows without an id get a generated one.
func (s *Service) Replace(windows []syncengine.Window) ([]syncengine.Window, error) {
	next := make([]syncengine.Window, len(windows))
	copy(next, windows)
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = newWindowID()
		}
	}
	if err := ValidateWindows(next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(next)
	return s.copyLocked(), nil
}

// Add opens a window at the end of the layout.
func (s *Service) Add(w syncengine.Window) (syncengine.Window, error) {
	if w.ID == "" {
		w.ID = newWindowID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(s.copyLocked(), w)
	if err := ValidateWindows(next); err != nil {
		return syncengine.Window{}, err
	}
	s.commitLocked(next)
	return w, nil
}

// Remove closes the window with id.
func (s *Service) Remove(id syncengine.WindowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]syncengine.Window, 0, len(s.windows))
	for _, w := range s.windows {
		if w.ID != id {
			next = append(next, w)
		}
	}
	if len(next) == len(s.windows) {
		return ErrWindowNotFound
	}
	s.commitLocked(next)
	return nil
}

// commitLocked installs windows and hands them to the sink while still
// holding s.mu, so the engine sees layouts in commit order.
func (s *Service) commitLocked(windows []syncengine.Window) {
	s.windows = windows
	if s.sink != nil {
		s.sink.SetWindows(s.copyLocked())
	}
}

func (s *Service) copyLocked() []syncengine.Window {
	out := make([]syncengine.Window, len(s.windows))
	copy(out, s.windows)
	return out
}

// ValidateWindows checks a layout: known roles, unique ids, driver ids on
// driver windows and at most one main window.
func ValidateWindows(windows []syncengine.Window) error {
	seen := make(map[syncengine.WindowID]bool, len(windows))
	mains := 0
	for _, w := range windows {
		if !w.Role.Valid() {
			return fmt.Errorf("window %s: %w: %q", w.ID, ErrUnknownRole, w.Role)
		}
		if w.Role == syncengine.RoleDriver && w.DriverID == "" {
			return fmt.Errorf("window %s: %w", w.ID, ErrMissingDriverID)
		}
		if seen[w.ID] {
			return fmt.Errorf("window %s: %w", w.ID, ErrDuplicateWindow)
		}
		seen[w.ID] = true
		if w.Role == syncengine.RoleMain {
			mains++
		}
	}
	if mains > 1 {
		return ErrMultipleReferences
	}
	return nil
}

func newWindowID() syncengine.WindowID {
	return syncengine.WindowID(uuid.NewString())
}
