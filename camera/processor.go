package camera

import (
	"errors"
	"log"
	"sync"
)

// Hooks are optional callbacks fired by the processor. All of them may be
// nil. FrameProcessed runs after the output cache is updated, so handlers
// can publish or snapshot the fresh output.
type Hooks struct {
	FrameProcessed func(floorID string, frame *Frame, out *Output)
	FrameDropped   func(floorID string)
	EmptyMap       func(floorID string)
	TrimComputed   func(floorID string, box BoundingBox)
}

// Processor drives the trim/transform pipeline from decoded frames.
//
// Frames are processed one at a time per floor; a frame arriving while one
// is in flight for the same floor replaces any still-pending frame
// (latest-wins, superseded frames are dropped). Different floors process
// independently.
type Processor struct {
	floors    *FloorManager
	tolerance uint8
	autoZoom  bool
	hooks     Hooks

	mu      sync.Mutex
	workers map[string]*floorWorker

	outMu   sync.RWMutex
	outputs map[string]*Output
	frames  map[string]*Frame

	zoomMu sync.Mutex
	zoom   map[string]*ZoomTracker
}

type floorWorker struct {
	mu      sync.Mutex
	pending *Frame
	running bool
}

// NewProcessor creates a processor on top of a floor manager.
// tolerance is the background-classifier tolerance; autoZoom enables
// segment zoom while cleaning.
func NewProcessor(floors *FloorManager, tolerance uint8, autoZoom bool, hooks Hooks) *Processor {
	return &Processor{
		floors:    floors,
		tolerance: tolerance,
		autoZoom:  autoZoom,
		hooks:     hooks,
		workers:   make(map[string]*floorWorker),
		outputs:   make(map[string]*Output),
		frames:    make(map[string]*Frame),
		zoom:      make(map[string]*ZoomTracker),
	}
}

// Submit queues a frame for its floor and processes it asynchronously.
// Frames for unknown floors are dropped.
func (p *Processor) Submit(frame *Frame) {
	floorID := frame.FloorID
	if !p.floors.Has(floorID) {
		log.Printf("Dropping frame for unknown floor %s", floorID)
		if p.hooks.FrameDropped != nil {
			p.hooks.FrameDropped(floorID)
		}
		return
	}

	w := p.worker(floorID)
	w.mu.Lock()
	if w.pending != nil && p.hooks.FrameDropped != nil {
		p.hooks.FrameDropped(floorID)
	}
	w.pending = frame
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go p.drain(floorID, w)
}

// ProcessSync runs a single frame through the pipeline synchronously,
// bypassing the worker queue. Used by the -process CLI mode and by tests.
func (p *Processor) ProcessSync(frame *Frame) (*Output, error) {
	out, err := p.process(frame)
	if err != nil {
		return nil, err
	}
	p.outMu.Lock()
	p.outputs[frame.FloorID] = out
	p.frames[frame.FloorID] = frame
	p.outMu.Unlock()
	return out, nil
}

// ObserveState feeds a vacuum-state event for a floor into the auto-zoom
// tracker without a full frame.
func (p *Processor) ObserveState(floorID string, state VacuumState, segment *SegmentRegion) {
	p.zoomTracker(floorID).Observe(state, segment)
}

// LatestOutput returns the last successfully processed output for a floor
func (p *Processor) LatestOutput(floorID string) (*Output, bool) {
	p.outMu.RLock()
	defer p.outMu.RUnlock()
	out, ok := p.outputs[floorID]
	return out, ok
}

// LatestFrame returns the last successfully processed frame for a floor
func (p *Processor) LatestFrame(floorID string) (*Frame, bool) {
	p.outMu.RLock()
	defer p.outMu.RUnlock()
	frame, ok := p.frames[floorID]
	return frame, ok
}

// ActiveOutput returns the last output of the currently active floor
func (p *Processor) ActiveOutput() (*Output, bool) {
	return p.LatestOutput(p.floors.Active().ID)
}

// CurrentZoom reports the zoom tracker state for a floor
func (p *Processor) CurrentZoom(floorID string) ZoomState {
	return p.zoomTracker(floorID).Current()
}

func (p *Processor) worker(floorID string) *floorWorker {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[floorID]
	if !ok {
		w = &floorWorker{}
		p.workers[floorID] = w
	}
	return w
}

func (p *Processor) zoomTracker(floorID string) *ZoomTracker {
	p.zoomMu.Lock()
	defer p.zoomMu.Unlock()
	z, ok := p.zoom[floorID]
	if !ok {
		z = NewZoomTracker(p.autoZoom)
		p.zoom[floorID] = z
	}
	return z
}

// drain processes pending frames for one floor until the slot is empty
func (p *Processor) drain(floorID string, w *floorWorker) {
	for {
		w.mu.Lock()
		frame := w.pending
		w.pending = nil
		if frame == nil {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		out, err := p.process(frame)
		if err != nil {
			// Degrade to the last good output; never fatal.
			log.Printf("Floor %s: frame not processed: %v", floorID, err)
			continue
		}

		p.outMu.Lock()
		p.outputs[floorID] = out
		p.frames[floorID] = frame
		p.outMu.Unlock()

		if p.hooks.FrameProcessed != nil {
			p.hooks.FrameProcessed(floorID, frame, out)
		}
	}
}

// process runs the trim cache logic and the transform pipeline for one frame
func (p *Processor) process(frame *Frame) (*Output, error) {
	floorID := frame.FloorID
	store := p.floors.Store()

	ts, ok := store.Get(floorID)
	if !ok {
		ts = TrimState{Margin: DefaultMargin}
	}

	p.zoomTracker(floorID).Observe(frame.State, frame.Segment)

	needScan := ts.Box == nil
	if ts.PendingReset {
		// A reset only takes effect once the vacuum is docked; until then
		// the stale box (if any) keeps displaying.
		if frame.State == StateDocked {
			needScan = true
		} else if ts.Box == nil {
			return nil, errors.New("trim reset pending and no cached box; waiting for docked frame")
		} else {
			needScan = false
		}
	}

	if needScan {
		cl := NewClassifier(frame.Raster.Background, p.tolerance)
		box, err := ScanWithOffsets(frame.Raster, cl, ts.Offsets)
		if err != nil {
			if errors.Is(err, ErrEmptyMap) && p.hooks.EmptyMap != nil {
				p.hooks.EmptyMap(floorID)
			}
			// The previous trim state stays untouched.
			return nil, err
		}

		ts.Box = &box
		// Persist only once the vacuum is docked; otherwise the box is
		// staged in memory and used for display until then.
		var werr error
		if frame.State == StateDocked {
			werr = store.Put(floorID, ts)
		} else {
			werr = store.Stage(floorID, ts)
		}
		if werr != nil {
			// A reset raced this scan; its effect wins.
			return nil, werr
		}
		if p.hooks.TrimComputed != nil {
			p.hooks.TrimComputed(floorID, box)
		}
		log.Printf("Floor %s: computed trim box (%d,%d)-(%d,%d)",
			floorID, box.Left, box.Top, box.Right, box.Bottom)
	}

	return ApplyTransform(frame, &ts, p.zoomTracker(floorID).Current())
}

// DefaultMargin is the uniform trim margin applied when nothing is configured
const DefaultMargin = 150
