package syncengine

import (
	"log/slog"
	"math"
	"time"

	"multiview-sync/internal/platform/metrics"
)

// DefaultDriftThreshold is the drift in seconds below which a non-forced
// pass leaves a window's position alone. Normal buffering jitter stays below it.
const DefaultDriftThreshold = 1.0

const (
	DefaultLiveInterval     = 5 * time.Second
	DefaultOnDemandInterval = 100 * time.Millisecond
)

// DefaultInterval returns the tick period for mode. Live streams only seek to
// keyframe granularity, so they are checked far less often.
func DefaultInterval(mode PlaybackMode) time.Duration {
	if mode == ModeLive {
		return DefaultLiveInterval
	}
	return DefaultOnDemandInterval
}

// Reasons a pass made no measurement.
const (
	SkipNoReference       = "no_reference"
	SkipReferenceNotReady = "reference_not_ready"
)

// CorrectionKind names the command issued to a player.
type CorrectionKind string

const (
	CorrectionPlay      CorrectionKind = "play"
	CorrectionPause     CorrectionKind = "pause"
	CorrectionSeek      CorrectionKind = "seek"
	CorrectionTimeShift CorrectionKind = "timeshift"
)

// Correction is one command issued during a pass.
type Correction struct {
	Window WindowID
	Kind   CorrectionKind
	// Drift and Target are set for seek and timeshift corrections.
	Drift  float64
	Target float64
}

// TickResult describes what a single pass did.
type TickResult struct {
	Forced      bool
	Skipped     string
	Corrections []Correction
}

// Options configures a Reconciler or Engine.
type Options struct {
	Mode      PlaybackMode
	Static    StaticOffsets
	Overrides OverrideSource
	// Interval replaces DefaultInterval(Mode) when positive.
	Interval time.Duration
	// Threshold replaces DefaultDriftThreshold when positive.
	Threshold float64
	Logger    *slog.Logger
	// Metrics may be nil to disable metric recording (e.g. in tests).
	Metrics *metrics.Metrics
}

// strategy measures and corrects position for one playback mode.
type strategy interface {
	// capture reads the reference position once per pass.
	capture(ref PlayerHandle) float64
	// align brings h towards refPos. drift is always reported; applied is
	// false when h was left alone.
	align(refPos float64, h PlayerHandle, offset float64, forced bool, threshold float64) (c Correction, applied bool)
}

// liveStrategy aligns live players by their distance from the live edge.
type liveStrategy struct{}

func (liveStrategy) capture(ref PlayerHandle) float64 {
	return ref.TimeShift()
}

func (liveStrategy) align(refShift float64, h PlayerHandle, offset float64, forced bool, threshold float64) (Correction, bool) {
	// The two shifts are summed, not differenced.
	drift := math.Abs(h.TimeShift() + offset + refShift)
	target := -offset + refShift
	c := Correction{Kind: CorrectionTimeShift, Drift: drift, Target: target}
	if drift < threshold && !forced {
		return c, false
	}
	h.SetTimeShift(target)
	return c, true
}

// onDemandStrategy aligns recorded players by absolute position.
type onDemandStrategy struct{}

func (onDemandStrategy) capture(ref PlayerHandle) float64 {
	return ref.CurrentTime(TimeModeAbsolute)
}

func (onDemandStrategy) align(refTime float64, h PlayerHandle, offset float64, forced bool, threshold float64) (Correction, bool) {
	target := refTime - offset
	drift := math.Abs(h.CurrentTime(TimeModeAbsolute) - target)
	c := Correction{Kind: CorrectionSeek, Drift: drift, Target: target}
	if !forced && (drift < threshold || target < 0) {
		return c, false
	}
	h.Seek(target)
	return c, true
}

func strategyFor(mode PlaybackMode) strategy {
	if mode == ModeLive {
		return liveStrategy{}
	}
	return onDemandStrategy{}
}

// Reconciler runs single reconciliation passes over a window set.
// It holds no per-pass state; every handle is looked up afresh on each pass.
type Reconciler struct {
	handles   HandleLookup
	static    StaticOffsets
	overrides OverrideSource
	strategy  strategy
	threshold float64
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewReconciler returns a Reconciler reading players from handles.
// The correction strategy is fixed by opts.Mode.
func NewReconciler(handles HandleLookup, opts Options) *Reconciler {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		handles:   handles,
		static:    opts.Static,
		overrides: opts.Overrides,
		strategy:  strategyFor(opts.Mode),
		threshold: threshold,
		log:       log,
		metrics:   opts.Metrics,
	}
}

// Tick aligns every window with the reference window. A forced pass ignores
// the drift threshold and repositions every window that has a player.
func (r *Reconciler) Tick(windows []Window, forced bool) TickResult {
	res := TickResult{Forced: forced}
	if r.metrics != nil {
		r.metrics.IncTicks(forced)
	}

	ref, ok := FindReference(windows)
	if !ok {
		return r.skip(res, SkipNoReference)
	}
	refHandle, ok := r.handles.Handle(ref.ID)
	if !ok || refHandle == nil {
		return r.skip(res, SkipReferenceNotReady)
	}

	// Every window is corrected against the same snapshot.
	refPaused := refHandle.IsPaused()
	refPos := r.strategy.capture(refHandle)

	for _, w := range windows {
		if w.ID == ref.ID {
			continue
		}
		h, ok := r.handles.Handle(w.ID)
		if !ok || h == nil {
			continue
		}

		offset := ResolveOffset(r.static, r.overrides, w, ref)

		if h.IsPaused() != refPaused {
			kind := CorrectionPlay
			if refPaused {
				h.Pause()
				kind = CorrectionPause
			} else {
				h.Play()
			}
			res.Corrections = append(res.Corrections, r.record(Correction{Window: w.ID, Kind: kind}))
		}

		c, applied := r.strategy.align(refPos, h, offset, forced, r.threshold)
		if r.metrics != nil {
			r.metrics.ObserveDrift(c.Drift)
		}
		if !applied {
			continue
		}
		c.Window = w.ID
		res.Corrections = append(res.Corrections, r.record(c))
	}

	return res
}

func (r *Reconciler) skip(res TickResult, reason string) TickResult {
	res.Skipped = reason
	if r.metrics != nil {
		r.metrics.IncTicksSkipped(reason)
	}
	return res
}

func (r *Reconciler) record(c Correction) Correction {
	r.log.Debug("correction issued",
		slog.String("window_id", string(c.Window)),
		slog.String("kind", string(c.Kind)),
		slog.Float64("drift", c.Drift),
		slog.Float64("target", c.Target))
	if r.metrics != nil {
		r.metrics.IncCorrections(string(c.Kind))
	}
	return c
}
