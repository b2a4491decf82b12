package syncengine

import (
	"fmt"
	"strings"
)

// WindowID uniquely identifies a viewer window.
type WindowID string

// Role describes what kind of feed a window shows.
type Role string

const (
	RoleMain          Role = "main"
	RoleDriver        Role = "driver"
	RoleDataChannel   Role = "data-channel"
	RoleDriverTracker Role = "driver-tracker"
	RoleOther         Role = "other"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMain, RoleDriver, RoleDataChannel, RoleDriverTracker, RoleOther:
		return true
	}
	return false
}

// Window is a single feed opened by the viewer.
// The window with RoleMain is the synchronization reference.
type Window struct {
	ID       WindowID `json:"id"`
	Role     Role     `json:"role"`
	DriverID string   `json:"driver_id,omitempty"`
}

// OverrideKey returns the key used to look up user offset overrides:
// the driver id for driver windows, the role name otherwise.
func (w Window) OverrideKey() string {
	if w.Role == RoleDriver {
		return w.DriverID
	}
	return string(w.Role)
}

// PlaybackMode selects the cadence and correction strategy of the engine.
type PlaybackMode int

const (
	ModeOnDemand PlaybackMode = iota
	ModeLive
)

func (m PlaybackMode) String() string {
	if m == ModeLive {
		return "live"
	}
	return "ondemand"
}

// ParsePlaybackMode parses "live" or "ondemand" (also "vod", "on-demand").
func ParsePlaybackMode(s string) (PlaybackMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return ModeLive, nil
	case "ondemand", "on-demand", "vod":
		return ModeOnDemand, nil
	}
	return ModeOnDemand, fmt.Errorf("unknown playback mode %q", s)
}

// TimeMode selects which clock CurrentTime reports.
type TimeMode int

const (
	// TimeModeAbsolute is the position on the event's shared timeline.
	TimeModeAbsolute TimeMode = iota
	// TimeModeRelative is the position relative to the start of the individual stream.
	TimeModeRelative
)

// PlayerEvent names an event a player handle can emit.
type PlayerEvent string

const (
	EventSeek      PlayerEvent = "seek"
	EventTimeShift PlayerEvent = "timeshift"
	EventDestroy   PlayerEvent = "destroy"
)

// ListenerID identifies a listener registered with PlayerHandle.On.
type ListenerID uint64

// PlayerHandle commands a single independent player. Commands are fire-and-forget:
// implementations must not block on the remote player.
// Implementations must be comparable (typically pointers); the engine compares
// handles to detect that a window's player was replaced.
type PlayerHandle interface {
	IsPaused() bool
	Play()
	Pause()
	CurrentTime(mode TimeMode) float64
	Seek(t float64)
	// TimeShift is the offset from the live edge in seconds (non-positive).
	TimeShift() float64
	SetTimeShift(t float64)

	On(event PlayerEvent, fn func()) ListenerID
	Off(event PlayerEvent, id ListenerID)
}

// HandleLookup is the read-only view of the player handle registry.
type HandleLookup interface {
	Handle(id WindowID) (PlayerHandle, bool)
}

// FindReference returns the first window with RoleMain.
func FindReference(windows []Window) (Window, bool) {
	for _, w := range windows {
		if w.Role == RoleMain {
			return w, true
		}
	}
	return Window{}, false
}
