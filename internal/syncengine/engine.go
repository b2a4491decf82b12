package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"multiview-sync/internal/platform/metrics"
)

// Engine schedules reconciliation passes for one viewer session.
//
// Ticks, forced passes, reference subscriptions and window set swaps all run
// on the goroutine executing Run, so no two passes ever overlap. Other
// goroutines only post requests: SetWindows, Resync and SetVisible never block.
type Engine struct {
	rec       *Reconciler
	handles   HandleLookup
	overrides OverrideSource
	mode      PlaybackMode
	interval  time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics

	force          chan struct{}
	windowsChanged chan struct{}

	mu      sync.Mutex
	pending []Window
	visible bool

	// Owned by the Run goroutine.
	windows []Window
	bridge  *bridge
}

// New returns an Engine reading players from handles. Call Run to start it.
func New(handles HandleLookup, opts Options) *Engine {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval(opts.Mode)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	opts.Logger = log
	return &Engine{
		rec:            NewReconciler(handles, opts),
		handles:        handles,
		overrides:      opts.Overrides,
		mode:           opts.Mode,
		interval:       interval,
		log:            log,
		metrics:        opts.Metrics,
		force:          make(chan struct{}, 1),
		windowsChanged: make(chan struct{}, 1),
		visible:        true,
	}
}

// Mode returns the playback mode the engine was built for.
func (e *Engine) Mode() PlaybackMode { return e.mode }

// Interval returns the regular tick period.
func (e *Engine) Interval() time.Duration { return e.interval }

// Run drives the engine until ctx is cancelled, then releases every subscription.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer e.detachBridge()

	e.log.Info("sync engine started",
		slog.String("mode", e.mode.String()),
		slog.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine stopped")
			return
		case <-ticker.C:
			e.tick()
		case <-e.force:
			e.reconcile(true)
		case <-e.windowsChanged:
			e.applyWindows()
			ticker.Reset(e.interval)
		}
	}
}

// SetWindows replaces the window set. The change is applied by the engine
// goroutine, which drops the reference subscription unless the new set keeps
// the same reference player.
func (e *Engine) SetWindows(windows []Window) {
	ws := make([]Window, len(windows))
	copy(ws, windows)

	e.mu.Lock()
	e.pending = ws
	e.mu.Unlock()

	select {
	case e.windowsChanged <- struct{}{}:
	default:
	}
}

// Resync requests a forced pass. Requests made while one is pending coalesce.
func (e *Engine) Resync() {
	select {
	case e.force <- struct{}{}:
	default:
	}
}

// SetVisible reports the viewer's visibility. Becoming visible forces a pass,
// since timers may have been throttled while hidden.
func (e *Engine) SetVisible(visible bool) {
	e.mu.Lock()
	wasVisible := e.visible
	e.visible = visible
	e.mu.Unlock()

	if visible && !wasVisible {
		e.log.Debug("viewer visible again, forcing resync")
		e.Resync()
	}
}

// Visible reports the last visibility passed to SetVisible.
func (e *Engine) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// tick is the regular interval pass: reconcile, then make sure the
// reference player's events are being listened to.
func (e *Engine) tick() {
	e.reconcile(false)
	e.ensureBridge()
}

func (e *Engine) reconcile(forced bool) TickResult {
	res := e.rec.Tick(e.windows, forced)
	if res.Skipped != "" {
		e.log.Debug("sync tick skipped", slog.String("reason", res.Skipped), slog.Bool("forced", forced))
	}
	return res
}

func (e *Engine) applyWindows() {
	e.mu.Lock()
	ws := e.pending
	e.mu.Unlock()

	e.windows = ws
	e.log.Info("window set changed", slog.Int("windows", len(ws)))
	e.ensureBridge()
}

// ensureBridge subscribes to the reference player when no subscription is
// installed, and replaces a subscription whose window or player is gone or
// was replaced. A subscription to a destroyed player is kept while the
// registry still holds that player.
func (e *Engine) ensureBridge() {
	var h PlayerHandle
	ref, ok := FindReference(e.windows)
	if ok {
		h, ok = e.handles.Handle(ref.ID)
	}
	ok = ok && h != nil

	if e.bridge != nil {
		if ok && e.bridge.current(ref.ID, h) {
			return
		}
		e.detachBridge()
	}
	if !ok {
		return
	}

	e.bridge = attachBridge(ref.ID, h, e.overrides, e.Resync)
	e.log.Info("listening to reference player", slog.String("window_id", string(ref.ID)))
	if e.metrics != nil {
		e.metrics.IncBridgeAttachments()
	}
}

func (e *Engine) detachBridge() {
	if e.bridge == nil {
		return
	}
	e.bridge.detach()
	e.bridge = nil
}
