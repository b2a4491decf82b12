package syncengine

import "sync/atomic"

// bridge turns reference player events and override changes into forced
// passes. It is owned by the engine goroutine; only the destroyed flag is
// written from player callbacks.
type bridge struct {
	window    WindowID
	handle    PlayerHandle
	destroyed atomic.Bool

	seekID    ListenerID
	shiftID   ListenerID
	destroyID ListenerID

	unsubscribeOverrides func()
}

func attachBridge(window WindowID, ref PlayerHandle, overrides OverrideSource, force func()) *bridge {
	b := &bridge{window: window, handle: ref}
	b.seekID = ref.On(EventSeek, force)
	b.shiftID = ref.On(EventTimeShift, force)
	b.destroyID = ref.On(EventDestroy, func() { b.destroyed.Store(true) })
	if overrides != nil {
		b.unsubscribeOverrides = overrides.Subscribe(force)
	}
	return b
}

// current reports whether the bridge was installed for h as the player of
// window. A destroyed player stays current until the registry holds another
// handle for the window, so it is never subscribed to again.
func (b *bridge) current(window WindowID, h PlayerHandle) bool {
	return b.window == window && b.handle == h
}

// detach releases every subscription. A destroyed player is never touched.
func (b *bridge) detach() {
	if !b.destroyed.Load() {
		b.handle.Off(EventSeek, b.seekID)
		b.handle.Off(EventTimeShift, b.shiftID)
		b.handle.Off(EventDestroy, b.destroyID)
	}
	if b.unsubscribeOverrides != nil {
		b.unsubscribeOverrides()
	}
}
