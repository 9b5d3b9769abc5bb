package main

import (
	"errors"
	"testing"
	"time"

	"github.com/kwv/mapcam/camera"
)

func TestAppInit(t *testing.T) {
	a := newTestApp(t)

	if a.Config == nil || a.Store == nil || a.Floors == nil || a.Processor == nil {
		t.Fatal("app components not wired")
	}
	if a.Config.Trim.Margin != 5 {
		t.Errorf("config margin = %d, want 5", a.Config.Trim.Margin)
	}
	if a.Floors.Active().ID != "default" {
		t.Errorf("active floor = %q", a.Floors.Active().ID)
	}
}

func TestAppInitMissingConfig(t *testing.T) {
	a := NewApp(AppOptions{ConfigFile: "/nonexistent/config.yaml"})
	if err := a.init(); err == nil {
		t.Error("init with missing config expected error")
	}
}

func TestAppHTTPPortOverride(t *testing.T) {
	a := newTestApp(t)
	if a.Config.HTTP.Port != 8080 {
		t.Fatalf("default port = %d", a.Config.HTTP.Port)
	}

	b := NewApp(AppOptions{ConfigFile: a.opts.ConfigFile, HTTPPort: 9090})
	if err := b.init(); err != nil {
		t.Fatal(err)
	}
	if b.Config.HTTP.Port != 9090 {
		t.Errorf("overridden port = %d, want 9090", b.Config.HTTP.Port)
	}
}

func TestOnFrameRoutesByVacuum(t *testing.T) {
	a := newTestApp(t)

	// The frame itself carries no floor; the vacuum mapping supplies it.
	frame := testFrame("", 60, 40, camera.BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29})
	a.onFrame("rocky", frame, nil)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := a.Processor.LatestOutput("default"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never processed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOnFrameDecodeError(t *testing.T) {
	a := newTestApp(t)

	// Decode failures are logged and dropped without touching the pipeline.
	a.onFrame("rocky", nil, errors.New("bad payload"))
	if _, ok := a.Processor.LatestOutput("default"); ok {
		t.Error("decode error produced an output")
	}
}

func TestOnResetCommand(t *testing.T) {
	a := newTestApp(t)

	frame := testFrame("default", 60, 40, camera.BoundingBox{Left: 10, Top: 10, Right: 39, Bottom: 29})
	if _, err := a.Processor.ProcessSync(frame); err != nil {
		t.Fatal(err)
	}

	a.onResetCommand("rocky")

	ts, _ := a.Store.Get("default")
	if !ts.PendingReset {
		t.Error("PendingReset = false after reset command")
	}

	// Unknown vacuums are ignored without touching any floor.
	a.onResetCommand("phantom")
}

func TestSnapshotDue(t *testing.T) {
	a := newTestApp(t)

	// Only the transition into docked triggers a snapshot, not every docked
	// frame.
	steps := []struct {
		state camera.VacuumState
		want  bool
	}{
		{camera.StateDocked, true},
		{camera.StateDocked, false},
		{camera.StateCleaning, false},
		{camera.StateReturning, false},
		{camera.StateDocked, true},
	}
	for i, step := range steps {
		if got := a.snapshotDue("default", step.state); got != step.want {
			t.Errorf("step %d (%v): snapshotDue = %v, want %v", i, step.state, got, step.want)
		}
	}

	// Floors track their docking cycles independently.
	if !a.snapshotDue("upstairs", camera.StateDocked) {
		t.Error("first docked frame on another floor did not trigger a snapshot")
	}
}

func TestOnVacuumState(t *testing.T) {
	a := newTestApp(t)

	// State updates without a frame only drive the zoom tracker; with no
	// segment in sight the floor stays un-zoomed.
	a.onVacuumState("rocky", camera.StateCleaning)
	if got := a.Processor.CurrentZoom("default"); got.Mode != camera.ZoomWholeFloor {
		t.Errorf("zoom mode = %v, want whole floor", got.Mode)
	}

	// Unknown vacuums are ignored.
	a.onVacuumState("phantom", camera.StateCleaning)
}
