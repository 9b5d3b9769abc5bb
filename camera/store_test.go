package camera

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTrimStorePutAndReload(t *testing.T) {
	dir := t.TempDir()

	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 850, Top: 850, Right: 4150, Bottom: 3150}
	ts := TrimState{Box: &box, Margin: 150, Rotation: 90}
	if err := st.Put("ground", ts); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "trims_ground.json")); err != nil {
		t.Fatalf("trim file not written: %v", err)
	}

	// A fresh store picks the state up from disk.
	st2, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() reload error = %v", err)
	}
	got, ok := st2.Get("ground")
	if !ok {
		t.Fatal("Get() after reload: state missing")
	}
	if got.Box == nil || *got.Box != box {
		t.Errorf("reloaded box = %+v, want %+v", got.Box, box)
	}
	if got.Margin != 150 || got.Rotation != 90 {
		t.Errorf("reloaded state = %+v", got)
	}
}

func TestTrimStoreStageIsMemoryOnly(t *testing.T) {
	dir := t.TempDir()
	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 1, Top: 1, Right: 5, Bottom: 5}
	if err := st.Stage("ground", TrimState{Box: &box, Margin: 10}); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	if _, ok := st.Get("ground"); !ok {
		t.Error("staged state not visible in memory")
	}
	if _, err := os.Stat(filepath.Join(dir, "trims_ground.json")); !os.IsNotExist(err) {
		t.Errorf("Stage() wrote a file, stat err = %v", err)
	}
}

func TestTrimStoreResetKeepsStaleBox(t *testing.T) {
	dir := t.TempDir()
	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 10, Top: 10, Right: 40, Bottom: 30}
	if err := st.Put("ground", TrimState{Box: &box, Margin: 150}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := st.Reset("ground"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	got, _ := st.Get("ground")
	if !got.PendingReset {
		t.Error("PendingReset = false after Reset()")
	}
	if got.Box == nil || *got.Box != box {
		t.Errorf("Reset() dropped the stale box: %+v", got.Box)
	}
	if got.Margin != 150 {
		t.Errorf("Reset() changed margin: %d", got.Margin)
	}

	// A restart must come back up with the stale geometry and the pending
	// flag intact.
	st2, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() reload error = %v", err)
	}
	reloaded, _ := st2.Get("ground")
	if !reloaded.PendingReset || reloaded.Box == nil {
		t.Errorf("reloaded state after reset = %+v", reloaded)
	}
}

func TestTrimStoreStaleGeneration(t *testing.T) {
	st, err := NewTrimStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 10, Top: 10, Right: 40, Bottom: 30}
	if err := st.Put("ground", TrimState{Box: &box}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A scan reads the state, then a reset lands before the scan writes back.
	stale, _ := st.Get("ground")
	if err := st.Reset("ground"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	newBox := BoundingBox{Left: 5, Top: 5, Right: 45, Bottom: 35}
	stale.Box = &newBox
	if err := st.Put("ground", stale); !errors.Is(err, ErrStaleGeneration) {
		t.Errorf("Put() with stale generation error = %v, want ErrStaleGeneration", err)
	}
	if err := st.Stage("ground", stale); !errors.Is(err, ErrStaleGeneration) {
		t.Errorf("Stage() with stale generation error = %v, want ErrStaleGeneration", err)
	}

	// The reset's effect must win.
	got, _ := st.Get("ground")
	if !got.PendingReset {
		t.Error("PendingReset lost after rejected write")
	}
	if *got.Box != box {
		t.Errorf("box = %+v, want stale box %+v", *got.Box, box)
	}
}

func TestTrimStorePutClearsPendingReset(t *testing.T) {
	st, err := NewTrimStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 10, Top: 10, Right: 40, Bottom: 30}
	if err := st.Put("ground", TrimState{Box: &box}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Reset("ground"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	// A fresh scan at the current generation replaces the box and clears the
	// pending flag.
	cur, _ := st.Get("ground")
	newBox := BoundingBox{Left: 5, Top: 5, Right: 45, Bottom: 35}
	cur.Box = &newBox
	if err := st.Put("ground", cur); err != nil {
		t.Fatalf("Put() at current generation error = %v", err)
	}

	got, _ := st.Get("ground")
	if got.PendingReset {
		t.Error("PendingReset = true after successful Put()")
	}
	if *got.Box != newBox {
		t.Errorf("box = %+v, want %+v", *got.Box, newBox)
	}
}

func TestTrimStoreUpdatePreservesPendingReset(t *testing.T) {
	dir := t.TempDir()
	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 10, Top: 10, Right: 40, Bottom: 30}
	if err := st.Put("ground", TrimState{Box: &box, Margin: 150}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Reset("ground"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	// A settings write between the reset and the rescan must not cancel the
	// pending reset.
	cur, _ := st.Get("ground")
	cur.Margin = 10
	if err := st.Update("ground", cur); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := st.Get("ground")
	if !got.PendingReset {
		t.Error("PendingReset = false after Update()")
	}
	if got.Margin != 10 {
		t.Errorf("margin = %d, want 10", got.Margin)
	}

	// The flag survives a restart too.
	st2, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() reload error = %v", err)
	}
	reloaded, _ := st2.Get("ground")
	if !reloaded.PendingReset || reloaded.Margin != 10 {
		t.Errorf("reloaded state = %+v", reloaded)
	}
}

func TestTrimStoreDelete(t *testing.T) {
	dir := t.TempDir()
	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}

	box := BoundingBox{Left: 1, Top: 1, Right: 2, Bottom: 2}
	if err := st.Put("attic", TrimState{Box: &box}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := st.Delete("attic"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, ok := st.Get("attic"); ok {
		t.Error("state still present after Delete()")
	}
	if _, err := os.Stat(filepath.Join(dir, "trims_attic.json")); !os.IsNotExist(err) {
		t.Errorf("trim file still present after Delete(), stat err = %v", err)
	}

	// Deleting a floor that was never stored is not an error.
	if err := st.Delete("nowhere"); err != nil {
		t.Errorf("Delete() of unknown floor error = %v", err)
	}
}

func TestTrimStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "trims_bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := NewTrimStore(dir)
	if err != nil {
		t.Fatalf("NewTrimStore() error = %v", err)
	}
	if _, ok := st.Get("bad"); ok {
		t.Error("corrupt trim file was loaded")
	}
}
