package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrStaleGeneration is returned when a Put or Stage carries a trim state
// read before a later Reset. The caller's scan result is discarded.
var ErrStaleGeneration = errors.New("trim state superseded by a reset")

// TrimStore holds the per-floor trim state, backed by one JSON file per
// floor so the computed geometry survives restarts. Files are written via a
// temp file and rename, so a concurrent reader never observes a partial
// write. The files are plain indented JSON and human-inspectable.
type TrimStore struct {
	mu     sync.RWMutex
	dir    string
	states map[string]TrimState
}

// NewTrimStore creates a store rooted at dir and loads any persisted trim
// files found there.
func NewTrimStore(dir string) (*TrimStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trim storage directory: %w", err)
	}

	st := &TrimStore{
		dir:    dir,
		states: make(map[string]TrimState),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trim storage directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "trims_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		floorID := strings.TrimSuffix(strings.TrimPrefix(name, "trims_"), ".json")
		ts, err := loadTrimFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: skipping unreadable trim file %s: %v", name, err)
			continue
		}
		st.states[floorID] = ts
	}

	return st, nil
}

// Get returns the trim state for a floor, if present
func (st *TrimStore) Get(floorID string) (TrimState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ts, ok := st.states[floorID]
	return ts, ok
}

// All returns a copy of every floor's trim state
func (st *TrimStore) All() map[string]TrimState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]TrimState, len(st.states))
	for k, v := range st.states {
		out[k] = v
	}
	return out
}

// Stage updates a floor's trim state in memory only. Used for the first
// bounding box computed while the vacuum is away from the dock: the geometry
// is usable immediately but is not persisted until a docked frame arrives.
// The state's generation must match the current one.
func (st *TrimStore) Stage(floorID string, ts TrimState) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkGeneration(floorID, ts); err != nil {
		return err
	}
	ts.UpdatedAt = time.Now().Unix()
	st.states[floorID] = ts
	return nil
}

// Put records a freshly scanned trim state and persists it to disk
// atomically, clearing any pending reset. The state's generation must match
// the current one.
func (st *TrimStore) Put(floorID string, ts TrimState) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkGeneration(floorID, ts); err != nil {
		return err
	}
	ts.PendingReset = false
	ts.UpdatedAt = time.Now().Unix()
	st.states[floorID] = ts
	return st.writeLocked(floorID, ts)
}

// Update persists a floor's trim state like Put but preserves the current
// pending-reset flag: a settings edit must not cancel an operator's
// reset_trims. Only a fresh scan result (Put) clears the flag.
func (st *TrimStore) Update(floorID string, ts TrimState) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.checkGeneration(floorID, ts); err != nil {
		return err
	}
	if cur, ok := st.states[floorID]; ok {
		ts.PendingReset = cur.PendingReset
	}
	ts.UpdatedAt = time.Now().Unix()
	st.states[floorID] = ts
	return st.writeLocked(floorID, ts)
}

// checkGeneration rejects writes based on a state read before a later reset
func (st *TrimStore) checkGeneration(floorID string, ts TrimState) error {
	if cur, ok := st.states[floorID]; ok && ts.Generation != cur.Generation {
		return fmt.Errorf("floor %s: %w", floorID, ErrStaleGeneration)
	}
	return nil
}

// Reset marks a floor's cached bounding box for recomputation. Margins,
// rotation, offsets and the aspect lock are preserved. The stale box is kept
// for display until the vacuum docks and a fresh scan replaces it; the bumped
// generation invalidates any scan already in flight.
func (st *TrimStore) Reset(floorID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	ts, ok := st.states[floorID]
	if !ok {
		return fmt.Errorf("floor %s: no trim state to reset", floorID)
	}
	ts.PendingReset = true
	ts.Generation++
	ts.UpdatedAt = time.Now().Unix()
	st.states[floorID] = ts
	// The persisted file intentionally keeps the old box: until the vacuum
	// docks, a restart must come back up with the stale geometry.
	return st.writeLocked(floorID, ts)
}

// Delete removes a floor's trim state and its persisted file
func (st *TrimStore) Delete(floorID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.states, floorID)
	path := st.filePath(floorID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove trim file for %s: %w", floorID, err)
	}
	return nil
}

// LogStartup logs the computed trim values for every known floor. Called
// once at service start so the persisted geometry is visible in the logs.
func (st *TrimStore) LogStartup() {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if len(st.states) == 0 {
		log.Println("Trim store: no persisted trim state")
		return
	}
	for id, ts := range st.states {
		if ts.Box == nil {
			log.Printf("Trim store: floor %s: no bounding box yet (margin=%d rotation=%d)",
				id, ts.Margin, ts.Rotation)
			continue
		}
		log.Printf("Trim store: floor %s: box=(%d,%d)-(%d,%d) margin=%d rotation=%d pendingReset=%v",
			id, ts.Box.Left, ts.Box.Top, ts.Box.Right, ts.Box.Bottom,
			ts.Margin, ts.Rotation, ts.PendingReset)
	}
}

func (st *TrimStore) filePath(floorID string) string {
	return filepath.Join(st.dir, fmt.Sprintf("trims_%s.json", floorID))
}

// writeLocked persists one floor's state. Caller holds st.mu.
func (st *TrimStore) writeLocked(floorID string, ts TrimState) error {
	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trim state for %s: %w", floorID, err)
	}

	path := st.filePath(floorID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write trim state for %s: %w", floorID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit trim state for %s: %w", floorID, err)
	}
	return nil
}

func loadTrimFile(path string) (TrimState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TrimState{}, fmt.Errorf("read trim file: %w", err)
	}
	var ts TrimState
	if err := json.Unmarshal(data, &ts); err != nil {
		return TrimState{}, fmt.Errorf("unmarshal trim file: %w", err)
	}
	if ts.Box != nil && !ts.Box.Valid() {
		return TrimState{}, fmt.Errorf("trim file has invalid bounding box")
	}
	return ts, nil
}
