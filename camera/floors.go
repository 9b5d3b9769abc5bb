package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrFloorNotFound is returned for operations on an unknown floor id
var ErrFloorNotFound = errors.New("floor not found")

// ErrLastFloor is returned when deleting the only remaining floor.
// At least one floor must exist at all times.
var ErrLastFloor = errors.New("cannot delete the last remaining floor")

// Floor is one mapped level of a multi-floor vacuum. Each floor owns exactly
// one TrimState in the trim store, keyed by its id.
type Floor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrimDefaults seeds the trim state of newly created floors
type TrimDefaults struct {
	Margin      int
	Rotation    int
	Offsets     Margins
	AspectRatio *AspectRatio
}

// TrimSettings is a partial update for a floor's trim configuration.
// Nil fields are left unchanged. Geometry-affecting edits (margins, rotation,
// aspect lock) do not invalidate the cached bounding box: the box is stored
// in raw raster coordinates and the pipeline derives everything else.
type TrimSettings struct {
	Margin      *int         `json:"margin,omitempty"`
	Edges       *EdgeMargins `json:"edges,omitempty"`
	Offsets     *Margins     `json:"offsets,omitempty"`
	Rotation    *int         `json:"rotation,omitempty"`
	AspectRatio *string      `json:"aspectRatio,omitempty"`
}

// FloorManager owns the floor registry and mediates every trim-state edit.
// The registry is persisted to floors.json next to the trim files.
type FloorManager struct {
	mu       sync.RWMutex
	floors   []Floor
	active   string
	store    *TrimStore
	defaults TrimDefaults
	path     string
}

type floorRegistry struct {
	Active string  `json:"active"`
	Floors []Floor `json:"floors"`
}

// NewFloorManager loads the floor registry from dir, or seeds it with a
// single default floor when none exists yet.
func NewFloorManager(dir string, store *TrimStore, defaults TrimDefaults) (*FloorManager, error) {
	fm := &FloorManager{
		store:    store,
		defaults: defaults,
		path:     filepath.Join(dir, "floors.json"),
	}

	data, err := os.ReadFile(fm.path)
	switch {
	case err == nil:
		var reg floorRegistry
		if err := json.Unmarshal(data, &reg); err != nil {
			return nil, fmt.Errorf("parsing floor registry: %w", err)
		}
		fm.floors = reg.Floors
		fm.active = reg.Active
	case os.IsNotExist(err):
		// First run: the at-least-one-floor invariant is established here.
		fm.floors = []Floor{{ID: "default", Name: "Ground Floor"}}
		fm.active = "default"
		if err := fm.save(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("reading floor registry: %w", err)
	}

	if len(fm.floors) == 0 {
		return nil, fmt.Errorf("floor registry at %s is empty", fm.path)
	}
	if _, ok := fm.find(fm.active); !ok {
		fm.active = fm.floors[0].ID
	}

	// Make sure every registered floor has a trim state.
	for _, f := range fm.floors {
		fm.ensureTrimState(f.ID)
	}

	return fm, nil
}

// AddFloor registers a new floor and seeds its trim state from the defaults
func (fm *FloorManager) AddFloor(name string) (Floor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Floor{}, fmt.Errorf("floor name must not be empty")
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	id := slugify(name)
	base := id
	for n := 2; ; n++ {
		if _, exists := fm.find(id); !exists {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}

	floor := Floor{ID: id, Name: name}
	fm.floors = append(fm.floors, floor)
	fm.ensureTrimState(id)
	if err := fm.save(); err != nil {
		return Floor{}, err
	}
	return floor, nil
}

// SelectActive switches which floor's trim state the pipeline consults
func (fm *FloorManager) SelectActive(floorID string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if _, ok := fm.find(floorID); !ok {
		return fmt.Errorf("select floor %s: %w", floorID, ErrFloorNotFound)
	}
	fm.active = floorID
	return fm.save()
}

// EditTrim applies a partial trim-settings update to a floor
func (fm *FloorManager) EditTrim(floorID string, settings TrimSettings) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if _, ok := fm.find(floorID); !ok {
		return fmt.Errorf("edit floor %s: %w", floorID, ErrFloorNotFound)
	}

	ts, ok := fm.store.Get(floorID)
	if !ok {
		ts = fm.newTrimState()
	}

	if settings.Margin != nil {
		if *settings.Margin < 0 {
			return fmt.Errorf("margin must not be negative, got %d", *settings.Margin)
		}
		ts.Margin = *settings.Margin
	}
	if settings.Edges != nil {
		for _, edge := range []struct {
			name  string
			value *int
		}{
			{"left", settings.Edges.Left},
			{"top", settings.Edges.Top},
			{"right", settings.Edges.Right},
			{"bottom", settings.Edges.Bottom},
		} {
			if edge.value != nil && *edge.value < 0 {
				return fmt.Errorf("%s margin must not be negative, got %d", edge.name, *edge.value)
			}
		}
		ts.Edges = settings.Edges
	}
	if settings.Offsets != nil {
		ts.Offsets = *settings.Offsets
	}
	if settings.Rotation != nil {
		if !ValidRotation(*settings.Rotation) {
			return fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", *settings.Rotation)
		}
		ts.Rotation = *settings.Rotation
	}
	if settings.AspectRatio != nil {
		if *settings.AspectRatio == "" {
			ts.AspectRatio = nil
		} else {
			ratio, err := ParseAspectRatio(*settings.AspectRatio)
			if err != nil {
				return err
			}
			ts.AspectRatio = &ratio
		}
	}

	return fm.store.Update(floorID, ts)
}

// DeleteFloor removes a floor and its trim state. Deleting the sole
// remaining floor is rejected with ErrLastFloor.
func (fm *FloorManager) DeleteFloor(floorID string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	idx := -1
	for i, f := range fm.floors {
		if f.ID == floorID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("delete floor %s: %w", floorID, ErrFloorNotFound)
	}
	if len(fm.floors) == 1 {
		return fmt.Errorf("delete floor %s: %w", floorID, ErrLastFloor)
	}

	fm.floors = append(fm.floors[:idx], fm.floors[idx+1:]...)
	if fm.active == floorID {
		fm.active = fm.floors[0].ID
	}
	if err := fm.store.Delete(floorID); err != nil {
		return err
	}
	return fm.save()
}

// ResetTrims marks a floor's bounding box for recomputation (the reset_trims
// action). The new box is computed and persisted on the next docked frame.
func (fm *FloorManager) ResetTrims(floorID string) error {
	fm.mu.RLock()
	_, ok := fm.find(floorID)
	fm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("reset trims for %s: %w", floorID, ErrFloorNotFound)
	}
	return fm.store.Reset(floorID)
}

// Active returns the currently selected floor
func (fm *FloorManager) Active() Floor {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	f, _ := fm.find(fm.active)
	return f
}

// List returns all floors in registration order
func (fm *FloorManager) List() []Floor {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	out := make([]Floor, len(fm.floors))
	copy(out, fm.floors)
	return out
}

// Has reports whether a floor id is registered
func (fm *FloorManager) Has(floorID string) bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	_, ok := fm.find(floorID)
	return ok
}

// Store returns the underlying trim store
func (fm *FloorManager) Store() *TrimStore {
	return fm.store
}

func (fm *FloorManager) find(id string) (Floor, bool) {
	for _, f := range fm.floors {
		if f.ID == id {
			return f, true
		}
	}
	return Floor{}, false
}

func (fm *FloorManager) newTrimState() TrimState {
	return TrimState{
		Margin:      fm.defaults.Margin,
		Rotation:    fm.defaults.Rotation,
		Offsets:     fm.defaults.Offsets,
		AspectRatio: fm.defaults.AspectRatio,
	}
}

func (fm *FloorManager) ensureTrimState(floorID string) {
	if _, ok := fm.store.Get(floorID); !ok {
		// Stage only: nothing worth persisting until a box is computed.
		_ = fm.store.Stage(floorID, fm.newTrimState())
	}
}

// save persists the registry. Caller holds fm.mu (write or via NewFloorManager).
func (fm *FloorManager) save() error {
	data, err := json.MarshalIndent(floorRegistry{Active: fm.active, Floors: fm.floors}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal floor registry: %w", err)
	}
	tmp := fm.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write floor registry: %w", err)
	}
	if err := os.Rename(tmp, fm.path); err != nil {
		return fmt.Errorf("commit floor registry: %w", err)
	}
	return nil
}

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
