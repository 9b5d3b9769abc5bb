package main

import (
	"flag"
	"fmt"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile  = flag.String("config", "config.yaml", "Path to configuration file")
	serviceMode = flag.Bool("service", false, "Run MQTT + HTTP camera service")
	processFile = flag.String("process", "", "Process one decoded frame JSON file and exit (test mode)")
	showTrims   = flag.Bool("show-trims", false, "Print persisted trim state and exit")
	outputFile  = flag.String("output", "frame.png", "Output file for -process mode")
	httpPort    = flag.Int("http-port", 0, "HTTP server port (overrides config)")
)

func main() {
	flag.Parse()
	fmt.Printf("mapcam version: %s\n", Version)

	app := NewApp(AppOptions{
		ConfigFile: *configFile,
		OutputFile: *outputFile,
		HTTPPort:   *httpPort,
	})

	switch {
	case *processFile != "":
		app.RunProcess(*processFile)
	case *showTrims:
		app.RunShowTrims()
	case *serviceMode:
		app.RunService()
	default:
		fmt.Println("mapcam: auto-trim camera service for MQTT vacuum maps")
		fmt.Println("Use -service to run the MQTT + HTTP camera service")
		fmt.Println("Use -process FILE to run one decoded frame through the pipeline")
		fmt.Println("Use -show-trims to print the persisted trim state")
		fmt.Println("\nConfiguration:")
		fmt.Println("  config.yaml - MQTT, floor and trim settings")
		fmt.Println("  <storageDir>/trims_<floor>.json - cached trim geometry")
		fmt.Println("  <storageDir>/floors.json - floor registry")
	}
}
