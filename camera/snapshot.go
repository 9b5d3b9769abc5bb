package camera

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"
)

// SnapshotWriter persists the last rendered frame of a floor when the
// vacuum returns to the dock: a PNG next to a JSON sidecar holding the trim
// geometry and calibration points. One snapshot per floor, overwritten on
// every docked cycle.
type SnapshotWriter struct {
	dir string
}

// snapshotSidecar is the JSON document written next to the snapshot PNG
type snapshotSidecar struct {
	FloorID     string             `json:"floorId"`
	TakenAt     int64              `json:"takenAt"`
	CropArea    BoundingBox        `json:"cropArea"`
	Calibration []CalibrationPoint `json:"calibration"`
	Robot       PixelPoint         `json:"robot"`
	Charger     PixelPoint         `json:"charger"`
	TrimState   TrimState          `json:"trimState"`
}

// NewSnapshotWriter creates a writer rooted at dir
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir}, nil
}

// Write stores the snapshot PNG and its sidecar for a floor.
// Both files go through a temp file and rename so a half-written snapshot is
// never visible.
func (sw *SnapshotWriter) Write(floorID string, out *Output, ts TrimState) error {
	pngPath := filepath.Join(sw.dir, fmt.Sprintf("snapshot_%s.png", floorID))
	if err := sw.writePNG(pngPath, out); err != nil {
		return err
	}

	sidecar := snapshotSidecar{
		FloorID:     floorID,
		TakenAt:     time.Now().Unix(),
		CropArea:    out.CropArea,
		Calibration: out.Calibration,
		Robot:       out.Robot,
		Charger:     out.Charger,
		TrimState:   ts,
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot sidecar for %s: %w", floorID, err)
	}

	jsonPath := filepath.Join(sw.dir, fmt.Sprintf("snapshot_%s.json", floorID))
	tmp := jsonPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot sidecar for %s: %w", floorID, err)
	}
	if err := os.Rename(tmp, jsonPath); err != nil {
		return fmt.Errorf("commit snapshot sidecar for %s: %w", floorID, err)
	}

	log.Printf("Snapshot saved for floor %s", floorID)
	return nil
}

// Remove deletes a floor's snapshot files, if present. Called when the
// floor itself is deleted.
func (sw *SnapshotWriter) Remove(floorID string) {
	for _, name := range []string{
		fmt.Sprintf("snapshot_%s.png", floorID),
		fmt.Sprintf("snapshot_%s.json", floorID),
	} {
		if err := os.Remove(filepath.Join(sw.dir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: removing snapshot file %s: %v", name, err)
		}
	}
}

// PNGPath returns the snapshot PNG path for a floor
func (sw *SnapshotWriter) PNGPath(floorID string) string {
	return filepath.Join(sw.dir, fmt.Sprintf("snapshot_%s.png", floorID))
}

func (sw *SnapshotWriter) writePNG(path string, out *Output) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := png.Encode(f, out.Image); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit snapshot file: %w", err)
	}
	return nil
}
