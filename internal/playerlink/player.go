package playerlink

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"multiview-sync/internal/platform/metrics"
	"multiview-sync/internal/syncengine"
)

// State is the last known playback state of a remote player.
type State struct {
	Paused       bool
	CurrentTime  float64
	AbsoluteTime float64
	TimeShift    float64
}

// Player is a syncengine.PlayerHandle backed by a browser window connected
// over a websocket. Reads are served from the last reported state; commands
// are queued for the connection's writer and applied to the cached state
// right away so the next pass does not repeat them.
type Player struct {
	window  syncengine.WindowID
	session string
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	state      State
	reportedAt time.Time
	closed     bool
	out        chan Command
	nextID     syncengine.ListenerID
	listeners  map[syncengine.PlayerEvent]map[syncengine.ListenerID]func()
}

func newPlayer(window syncengine.WindowID, queueSize int, m *metrics.Metrics) *Player {
	return &Player{
		window:    window,
		session:   uuid.NewString(),
		metrics:   m,
		now:       time.Now,
		out:       make(chan Command, queueSize),
		listeners: make(map[syncengine.PlayerEvent]map[syncengine.ListenerID]func()),
	}
}

// Window returns the window this player is attached to.
func (p *Player) Window() syncengine.WindowID { return p.window }

// Session returns the unique id of this player's connection.
func (p *Player) Session() string { return p.session }

// State returns the cached playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsPaused implements syncengine.PlayerHandle.
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Paused
}

// Play implements syncengine.PlayerHandle.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked()
	p.state.Paused = false
	p.sendLocked(CmdPlay, 0)
}

// Pause implements syncengine.PlayerHandle.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked()
	p.state.Paused = true
	p.sendLocked(CmdPause, 0)
}

// CurrentTime implements syncengine.PlayerHandle. While playing, the reported
// position is extrapolated by the time elapsed since the report.
func (p *Player) CurrentTime(mode syncengine.TimeMode) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.state.AbsoluteTime
	if mode == syncengine.TimeModeRelative {
		t = p.state.CurrentTime
	}
	if !p.state.Paused && !p.reportedAt.IsZero() {
		t += p.now().Sub(p.reportedAt).Seconds()
	}
	return t
}

// Seek implements syncengine.PlayerHandle. t is an absolute time.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceLocked()
	delta := t - p.state.AbsoluteTime
	p.state.AbsoluteTime = t
	p.state.CurrentTime += delta
	p.sendLocked(CmdSeek, t)
}

// TimeShift implements syncengine.PlayerHandle.
func (p *Player) TimeShift() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.TimeShift
}

// SetTimeShift implements syncengine.PlayerHandle.
func (p *Player) SetTimeShift(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.TimeShift = t
	p.sendLocked(CmdTimeShift, t)
}

// On implements syncengine.PlayerHandle. After shutdown no listener is
// registered and the zero id is returned.
func (p *Player) On(ev syncengine.PlayerEvent, fn func()) syncengine.ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}
	p.nextID++
	if p.listeners[ev] == nil {
		p.listeners[ev] = make(map[syncengine.ListenerID]func())
	}
	p.listeners[ev][p.nextID] = fn
	return p.nextID
}

// Off implements syncengine.PlayerHandle.
func (p *Player) Off(ev syncengine.PlayerEvent, id syncengine.ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[ev], id)
}

// apply folds a state report into the cached state.
func (p *Player) apply(msg Inbound) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.Paused != nil {
		p.state.Paused = *msg.Paused
	}
	if msg.CurrentTime != nil {
		p.state.CurrentTime = *msg.CurrentTime
	}
	if msg.AbsoluteTime != nil {
		p.state.AbsoluteTime = *msg.AbsoluteTime
	} else if msg.CurrentTime != nil {
		p.state.AbsoluteTime = *msg.CurrentTime
	}
	if msg.TimeShift != nil {
		p.state.TimeShift = *msg.TimeShift
	}
	p.reportedAt = p.now()
}

// emit calls the listeners of ev outside the lock.
func (p *Player) emit(ev syncengine.PlayerEvent) {
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

// shutdown stops command delivery and tells listeners the player is gone.
func (p *Player) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.out)
	p.mu.Unlock()

	p.emit(syncengine.EventDestroy)
}

// advanceLocked moves the cached position to now so that a state change does
// not lose the extrapolated progress. Caller must hold p.mu.
func (p *Player) advanceLocked() {
	now := p.now()
	if !p.state.Paused && !p.reportedAt.IsZero() {
		elapsed := now.Sub(p.reportedAt).Seconds()
		p.state.AbsoluteTime += elapsed
		p.state.CurrentTime += elapsed
	}
	if !p.reportedAt.IsZero() {
		p.reportedAt = now
	}
}

// sendLocked queues a command without blocking. Caller must hold p.mu.
func (p *Player) sendLocked(command string, value float64) {
	if p.closed {
		return
	}
	cmd := Command{Type: MsgCommand, ID: uuid.NewString(), Command: command, Value: value}
	select {
	case p.out <- cmd:
	default:
		if p.metrics != nil {
			p.metrics.IncDroppedCommands()
		}
	}
}
