package syncengine

import (
	"fmt"
	"sync"
)

// fakePlayer records every command and behaves like an obedient player:
// commands take effect immediately.
type fakePlayer struct {
	mu        sync.Mutex
	paused    bool
	absolute  float64
	shift     float64
	calls     []string
	timeReads int
	offCalls  int
	nextID    ListenerID
	listeners map[PlayerEvent]map[ListenerID]func()
}

func newFakePlayer(absolute float64, paused bool) *fakePlayer {
	return &fakePlayer{
		absolute:  absolute,
		paused:    paused,
		listeners: make(map[PlayerEvent]map[ListenerID]func()),
	}
}

func (p *fakePlayer) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.calls = append(p.calls, "play")
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.calls = append(p.calls, "pause")
}

func (p *fakePlayer) CurrentTime(TimeMode) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeReads++
	return p.absolute
}

func (p *fakePlayer) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.absolute = t
	p.calls = append(p.calls, fmt.Sprintf("seek(%g)", t))
}

func (p *fakePlayer) TimeShift() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shift
}

func (p *fakePlayer) SetTimeShift(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shift = t
	p.calls = append(p.calls, fmt.Sprintf("timeshift(%g)", t))
}

func (p *fakePlayer) On(ev PlayerEvent, fn func()) ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	if p.listeners[ev] == nil {
		p.listeners[ev] = make(map[ListenerID]func())
	}
	p.listeners[ev][p.nextID] = fn
	return p.nextID
}

func (p *fakePlayer) Off(ev PlayerEvent, id ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offCalls++
	delete(p.listeners[ev], id)
}

func (p *fakePlayer) fire(ev PlayerEvent) {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.listeners[ev]))
	for _, fn := range p.listeners[ev] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *fakePlayer) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.listeners {
		n += len(m)
	}
	return n
}

func (p *fakePlayer) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// fakeOverrides is an in-memory OverrideSource.
type fakeOverrides struct {
	mu     sync.Mutex
	values map[string]float64
	nextID int
	subs   map[int]func()
}

func newFakeOverrides(values map[string]float64) *fakeOverrides {
	if values == nil {
		values = map[string]float64{}
	}
	return &fakeOverrides{values: values, subs: make(map[int]func())}
}

func (o *fakeOverrides) Override(key string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.values[key]
	return v, ok
}

func (o *fakeOverrides) Subscribe(fn func()) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

func (o *fakeOverrides) set(key string, v float64) {
	o.mu.Lock()
	o.values[key] = v
	fns := make([]func(), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (o *fakeOverrides) subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
