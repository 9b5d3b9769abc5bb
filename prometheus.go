package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kwv/mapcam/camera"
)

var (
	floorLabels = []string{"floor"}

	framesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "pipeline",
		Name:      "frames_processed_total",
	}, floorLabels)
	framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "pipeline",
		Name:      "frames_dropped_total",
	}, floorLabels)
	emptyMaps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "pipeline",
		Name:      "empty_maps_total",
	}, floorLabels)
	trimRecomputes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "trim",
		Name:      "recomputes_total",
	}, floorLabels)
	trimResets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapcam",
		Subsystem: "trim",
		Name:      "resets_total",
	}, floorLabels)
	outputWidth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "output",
		Name:      "width_pixels",
	}, floorLabels)
	outputHeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mapcam",
		Subsystem: "output",
		Name:      "height_pixels",
	}, floorLabels)
)

// registerMetrics builds the metrics registry and mounts /metrics on the mux
func registerMetrics(mux *http.ServeMux) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector(
		collectors.WithGoCollections(collectors.GoRuntimeMemStatsCollection | collectors.GoRuntimeMetricsCollection),
	))

	reg.MustRegister(framesProcessed)
	reg.MustRegister(framesDropped)
	reg.MustRegister(emptyMaps)
	reg.MustRegister(trimRecomputes)
	reg.MustRegister(trimResets)
	reg.MustRegister(outputWidth)
	reg.MustRegister(outputHeight)

	mux.Handle("/metrics", promhttp.HandlerFor(
		reg,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
}

func recordFrameProcessed(floorID string, out *camera.Output) {
	labels := prometheus.Labels{"floor": floorID}
	framesProcessed.With(labels).Inc()
	outputWidth.With(labels).Set(float64(out.Image.Rect.Dx()))
	outputHeight.With(labels).Set(float64(out.Image.Rect.Dy()))
}

func recordFrameDropped(floorID string) {
	framesDropped.With(prometheus.Labels{"floor": floorID}).Inc()
}

func recordEmptyMap(floorID string) {
	emptyMaps.With(prometheus.Labels{"floor": floorID}).Inc()
}

func recordTrimComputed(floorID string, _ camera.BoundingBox) {
	trimRecomputes.With(prometheus.Labels{"floor": floorID}).Inc()
}

func recordReset(floorID string) {
	trimResets.With(prometheus.Labels{"floor": floorID}).Inc()
}
