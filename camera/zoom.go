package camera

import "sync"

// ZoomMode selects what region the transform pipeline crops to
type ZoomMode int

const (
	// ZoomWholeFloor crops to the floor's cached bounding box
	ZoomWholeFloor ZoomMode = iota
	// ZoomSegment crops tightly to the segment currently being cleaned
	ZoomSegment
)

// ZoomState is the tagged auto-zoom state consumed by the pipeline:
// WholeFloor, or ZoomedSegment with the segment's id and pixel region.
type ZoomState struct {
	Mode      ZoomMode
	SegmentID string
	Region    BoundingBox
}

// ZoomTracker transitions the auto-zoom state from vacuum-state events.
// Zoom engages while the vacuum reports "cleaning" and the decoder knows the
// active segment's region; any transition away from cleaning reverts to the
// whole-floor box on the next frame.
type ZoomTracker struct {
	mu      sync.RWMutex
	enabled bool
	state   ZoomState
}

// NewZoomTracker creates a tracker; a disabled tracker always reports
// whole-floor mode.
func NewZoomTracker(enabled bool) *ZoomTracker {
	return &ZoomTracker{enabled: enabled}
}

// Observe feeds a vacuum state event (and, when cleaning, the active
// segment) into the tracker.
func (z *ZoomTracker) Observe(state VacuumState, segment *SegmentRegion) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if !z.enabled || state != StateCleaning || segment == nil {
		z.state = ZoomState{Mode: ZoomWholeFloor}
		return
	}
	z.state = ZoomState{
		Mode:      ZoomSegment,
		SegmentID: segment.ID,
		Region:    segment.Bounds,
	}
}

// Current returns the zoom state the next pipeline run should use
func (z *ZoomTracker) Current() ZoomState {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.state
}
