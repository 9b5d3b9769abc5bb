package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/disintegration/imaging"

	"github.com/kwv/mapcam/camera"
)

// AppOptions carries the CLI flags into the App
type AppOptions struct {
	ConfigFile string
	OutputFile string
	HTTPPort   int
}

// App encapsulates the service state and dependencies
type App struct {
	Config    *camera.Config
	Store     *camera.TrimStore
	Floors    *camera.FloorManager
	Processor *camera.Processor
	MQTT      *camera.MQTTClient
	Publisher *camera.Publisher
	Snapshots *camera.SnapshotWriter
	Renderer  *camera.FrameRenderer

	opts AppOptions

	stateMu    sync.Mutex
	frameState map[string]camera.VacuumState
}

// NewApp creates a new App instance
func NewApp(opts AppOptions) *App {
	return &App{
		opts:       opts,
		frameState: make(map[string]camera.VacuumState),
	}
}

// init loads the config and wires the engine components. MQTT is left to
// RunService; the offline modes don't need it.
func (a *App) init() error {
	cfg, err := camera.LoadConfig(a.opts.ConfigFile)
	if err != nil {
		return err
	}
	if a.opts.HTTPPort != 0 {
		cfg.HTTP.Port = a.opts.HTTPPort
	}
	a.Config = cfg

	store, err := camera.NewTrimStore(cfg.StorageDir)
	if err != nil {
		return err
	}
	a.Store = store

	floors, err := camera.NewFloorManager(cfg.StorageDir, store, cfg.TrimDefaults())
	if err != nil {
		return err
	}
	a.Floors = floors

	snapshots, err := camera.NewSnapshotWriter(cfg.StorageDir)
	if err != nil {
		return err
	}
	a.Snapshots = snapshots

	a.Renderer = camera.NewFrameRenderer()
	a.Processor = camera.NewProcessor(floors, cfg.Trim.BackgroundTolerance, cfg.Trim.AutoZoom, a.hooks())
	return nil
}

// hooks wires metrics, publishing and the snapshot lifecycle into the
// processor callbacks
func (a *App) hooks() camera.Hooks {
	return camera.Hooks{
		FrameProcessed: func(floorID string, frame *camera.Frame, out *camera.Output) {
			recordFrameProcessed(floorID, out)

			if a.Publisher != nil {
				if err := a.Publisher.PublishOutput(floorID, out); err != nil {
					log.Printf("Publish failed for floor %s: %v", floorID, err)
				}
			}
			if a.Snapshots != nil && a.Config.Snapshots.Enabled && a.snapshotDue(floorID, frame.State) {
				ts, _ := a.Store.Get(floorID)
				if err := a.Snapshots.Write(floorID, out, ts); err != nil {
					log.Printf("Snapshot failed for floor %s: %v", floorID, err)
				}
			}
		},
		FrameDropped: recordFrameDropped,
		EmptyMap:     recordEmptyMap,
		TrimComputed: recordTrimComputed,
	}
}

// snapshotDue records a processed frame's vacuum state and reports whether
// it is the transition into docked. Snapshots are written once per docking,
// not on every docked frame.
func (a *App) snapshotDue(floorID string, state camera.VacuumState) bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	prev, seen := a.frameState[floorID]
	a.frameState[floorID] = state
	return state == camera.StateDocked && (!seen || prev != camera.StateDocked)
}

// RunService runs the MQTT consumer and the HTTP server until interrupted
func (a *App) RunService() {
	if err := a.init(); err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	// The documented debug behavior: computed trims are logged at startup.
	a.Store.LogStartup()

	mqttClient, err := camera.InitMQTT(a.Config, a.onFrame)
	if err != nil {
		log.Fatalf("MQTT setup failed: %v", err)
	}
	if mqttClient != nil {
		a.MQTT = mqttClient
		mqttClient.SetStateHandler(a.onVacuumState)
		mqttClient.SetResetHandler(a.onResetCommand)

		a.Publisher = camera.NewPublisher(mqttClient.GetClient())
		a.Publisher.SetPrefix(a.Config.MQTT.PublishPrefix)
	}

	mux := newHTTPServer(a)
	registerMetrics(mux)

	addr := fmt.Sprintf(":%d", a.Config.HTTP.Port)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if err := server.Close(); err != nil {
		log.Printf("HTTP server close: %v", err)
	}
}

// onFrame routes a decoded MQTT frame to its floor's processor
func (a *App) onFrame(vacuumID string, frame *camera.Frame, err error) {
	if err != nil {
		log.Printf("Frame from %s not decodable: %v", vacuumID, err)
		return
	}
	if frame.FloorID == "" {
		frame.FloorID = a.Config.FloorForVacuum(vacuumID)
	}
	a.Processor.Submit(frame)
}

// onVacuumState feeds state transitions into the auto-zoom tracker
func (a *App) onVacuumState(vacuumID string, state camera.VacuumState) {
	floorID := a.Config.FloorForVacuum(vacuumID)
	if floorID == "" {
		return
	}
	// Segment information only travels with full frames; a bare state
	// change away from cleaning still reverts the zoom.
	a.Processor.ObserveState(floorID, state, nil)
}

// onResetCommand handles the reset_trims MQTT action for a vacuum
func (a *App) onResetCommand(vacuumID string) {
	floorID := a.Config.FloorForVacuum(vacuumID)
	if floorID == "" {
		log.Printf("reset_trims for unknown vacuum %s ignored", vacuumID)
		return
	}
	if err := a.Floors.ResetTrims(floorID); err != nil {
		log.Printf("reset_trims for floor %s failed: %v", floorID, err)
		return
	}
	recordReset(floorID)
	log.Printf("Trims for floor %s will be recomputed on the next docked frame", floorID)
}

// RunProcess pushes one decoded frame file through the pipeline and writes
// the rendered PNG. Useful for testing trim settings against recorded frames.
func (a *App) RunProcess(path string) {
	if err := a.init(); err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Reading frame file: %v", err)
	}
	frame, err := camera.ParseFrame(data)
	if err != nil {
		log.Fatalf("Parsing frame file: %v", err)
	}
	if frame.FloorID == "" {
		frame.FloorID = a.Floors.Active().ID
	}

	out, err := a.Processor.ProcessSync(frame)
	if err != nil {
		log.Fatalf("Processing frame: %v", err)
	}

	img := a.Renderer.Render(out, frame.FloorID)
	if err := imaging.Save(img, a.opts.OutputFile); err != nil {
		log.Fatalf("Writing %s: %v", a.opts.OutputFile, err)
	}

	fmt.Printf("Wrote %s (%dx%d)\n", a.opts.OutputFile, img.Rect.Dx(), img.Rect.Dy())
	fmt.Printf("Crop area: (%d,%d)-(%d,%d)\n",
		out.CropArea.Left, out.CropArea.Top, out.CropArea.Right, out.CropArea.Bottom)
	for i, cp := range out.Calibration {
		fmt.Printf("Calibration %d: pixel (%d,%d) -> world (%.0f,%.0f)\n",
			i, cp.Vacuum.X, cp.Vacuum.Y, cp.Map.X, cp.Map.Y)
	}
}

// RunShowTrims prints the persisted trim state for every floor
func (a *App) RunShowTrims() {
	if err := a.init(); err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	floors := a.Floors.List()
	active := a.Floors.Active()
	fmt.Printf("Floors: %d (active: %s)\n\n", len(floors), active.ID)

	for _, f := range floors {
		marker := " "
		if f.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %s (%s)\n", marker, f.Name, f.ID)

		ts, ok := a.Store.Get(f.ID)
		if !ok || ts.Box == nil {
			fmt.Println("    no trim box computed yet")
			continue
		}
		fmt.Printf("    box: (%d,%d)-(%d,%d)  margin: %d  rotation: %d\n",
			ts.Box.Left, ts.Box.Top, ts.Box.Right, ts.Box.Bottom, ts.Margin, ts.Rotation)
		if ts.AspectRatio != nil {
			fmt.Printf("    aspect lock: %s\n", ts.AspectRatio)
		}
		if ts.PendingReset {
			fmt.Println("    reset pending (waiting for docked frame)")
		}
	}
}
