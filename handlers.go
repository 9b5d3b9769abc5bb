package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kwv/mapcam/camera"
)

// newHTTPServer creates the HTTP mux with all endpoints
func newHTTPServer(a *App) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, hasOutput := a.Processor.ActiveOutput()
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status      string    `json:"status"`
			Timestamp   time.Time `json:"timestamp"`
			ActiveFloor string    `json:"activeFloor"`
			HasOutput   bool      `json:"hasOutput"`
			MQTT        bool      `json:"mqttConnected"`
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			ActiveFloor: a.Floors.Active().ID,
			HasOutput:   hasOutput,
			MQTT:        a.MQTT != nil && a.MQTT.IsConnected(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Rendered camera frame for a floor (active floor unless ?floor= given)
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		floorID, out, ok := a.floorOutput(r)
		if !ok {
			http.Error(w, "No processed frame available", http.StatusServiceUnavailable)
			return
		}

		img := a.Renderer.Render(out, a.floorName(floorID))
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding map PNG: %v", err)
		}
	})

	// Vector overlay of the transform geometry (crop border, calibration
	// corners, markers, zoomed segment)
	mux.HandleFunc("/overlay.svg", func(w http.ResponseWriter, r *http.Request) {
		floorID, out, ok := a.floorOutput(r)
		if !ok {
			http.Error(w, "No processed frame available", http.StatusServiceUnavailable)
			return
		}

		overlay := camera.NewOverlayRenderer()
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := overlay.RenderSVG(w, out, a.Processor.CurrentZoom(floorID)); err != nil {
			log.Printf("Error encoding overlay SVG: %v", err)
		}
	})

	// Rasterized overlay for cards that cannot stack SVG
	mux.HandleFunc("/overlay.png", func(w http.ResponseWriter, r *http.Request) {
		floorID, out, ok := a.floorOutput(r)
		if !ok {
			http.Error(w, "No processed frame available", http.StatusServiceUnavailable)
			return
		}

		overlay := camera.NewOverlayRenderer()
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := overlay.RenderPNG(w, out, a.Processor.CurrentZoom(floorID)); err != nil {
			log.Printf("Error encoding overlay PNG: %v", err)
		}
	})

	// GeoJSON export in vacuum world coordinates for the map card
	mux.HandleFunc("/map.geojson", func(w http.ResponseWriter, r *http.Request) {
		floorID, out, ok := a.floorOutput(r)
		if !ok {
			http.Error(w, "No processed frame available", http.StatusServiceUnavailable)
			return
		}
		frame, ok := a.Processor.LatestFrame(floorID)
		if !ok {
			http.Error(w, "No processed frame available", http.StatusServiceUnavailable)
			return
		}

		fc := camera.MapCardExport(frame, out, a.Processor.CurrentZoom(floorID))
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(fc); err != nil {
			log.Printf("Error encoding GeoJSON: %v", err)
		}
	})

	// Floor registry: list and create
	mux.HandleFunc("/api/floors", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, struct {
				Active string         `json:"active"`
				Floors []camera.Floor `json:"floors"`
			}{Active: a.Floors.Active().ID, Floors: a.Floors.List()})
		case http.MethodPost:
			var req struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
			floor, err := a.Floors.AddFloor(req.Name)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, floor)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Per-floor operations: trim edits, selection, deletion, reset
	mux.HandleFunc("/api/floors/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/floors/")
		floorID, action, _ := strings.Cut(rest, "/")
		if floorID == "" {
			http.NotFound(w, r)
			return
		}

		switch {
		case action == "" && r.Method == http.MethodPatch:
			var settings camera.TrimSettings
			if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
			if err := a.Floors.EditTrim(floorID, settings); err != nil {
				writeFloorError(w, err)
				return
			}
			ts, _ := a.Store.Get(floorID)
			writeJSON(w, ts)
		case action == "" && r.Method == http.MethodDelete:
			if err := a.Floors.DeleteFloor(floorID); err != nil {
				writeFloorError(w, err)
				return
			}
			if a.Snapshots != nil {
				a.Snapshots.Remove(floorID)
			}
			w.WriteHeader(http.StatusNoContent)
		case action == "select" && r.Method == http.MethodPost:
			if err := a.Floors.SelectActive(floorID); err != nil {
				writeFloorError(w, err)
				return
			}
			writeJSON(w, a.Floors.Active())
		case action == "reset-trims" && r.Method == http.MethodPost:
			if err := a.Floors.ResetTrims(floorID); err != nil {
				writeFloorError(w, err)
				return
			}
			recordReset(floorID)
			writeJSON(w, struct {
				Status string `json:"status"`
			}{Status: "reset pending; recomputed on next docked frame"})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Persisted trim state for every floor
	mux.HandleFunc("/api/trims", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, a.Store.All())
	})

	// Reset trims for the active floor
	mux.HandleFunc("/api/reset-trims", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		floorID := a.Floors.Active().ID
		if err := a.Floors.ResetTrims(floorID); err != nil {
			writeFloorError(w, err)
			return
		}
		recordReset(floorID)
		writeJSON(w, struct {
			Floor  string `json:"floor"`
			Status string `json:"status"`
		}{Floor: floorID, Status: "reset pending; recomputed on next docked frame"})
	})

	// Default route serves an HTML page stacking the overlay on the map
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>mapcam</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%;height:100%;overflow:hidden;background:#1a1a1a}
.stack{position:relative;width:100vw;height:100vh}
.stack img{position:absolute;inset:0;width:100%;height:100%;object-fit:contain}
</style>
</head>
<body>
<div class="stack">
<img src="/map.png" alt="Vacuum Map">
<img src="/overlay.svg" alt="Overlay">
</div>
</body>
</html>`)
	})

	return mux
}

// floorOutput resolves the ?floor= query parameter (defaulting to the active
// floor) to that floor's latest processed output
func (a *App) floorOutput(r *http.Request) (string, *camera.Output, bool) {
	floorID := r.URL.Query().Get("floor")
	if floorID == "" {
		floorID = a.Floors.Active().ID
	}
	out, ok := a.Processor.LatestOutput(floorID)
	return floorID, out, ok
}

func (a *App) floorName(floorID string) string {
	for _, f := range a.Floors.List() {
		if f.ID == floorID {
			return f.Name
		}
	}
	return floorID
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// writeFloorError maps the floor manager's sentinel errors to HTTP statuses
func writeFloorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, camera.ErrFloorNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, camera.ErrLastFloor):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
