// Radar Scope
// Plan-position display of live traffic around a fixed point, fed by the
// broadcast stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/pkg/coordinates"
	"github.com/unklstewy/atc-radar/pkg/stream"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "Radar server base URL")
	lat := flag.Float64("lat", 40.6413, "Scope centre latitude")
	lon := flag.Float64("lon", -73.7781, "Scope centre longitude")
	rangeNM := flag.Float64("range", 40, "Scope range in nautical miles")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("radar-scope version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	logs := NewLogManager(200)

	// Library logs go to the log pane instead of the terminal.
	logging.Init(logging.Config{Level: "info", Output: logs})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := stream.NewClient(stream.Config{
		URL: strings.TrimRight(*serverURL, "/") + "/api/atc/stream",
	})

	app := NewApp(AppConfig{
		Center: coordinates.Geographic{Latitude: *lat, Longitude: *lon},
		Range:  *rangeNM,
		Logs:   logs,
	})

	client.OnSnapshot = app.ApplySnapshot
	client.OnStatus = app.ApplyStatus
	go func() { _ = client.Run(ctx) }()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
