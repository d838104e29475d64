// Command framereco loads a point cloud frame from a serialized array
// file (.npz or .pcd), reconstructs the scene (ground surface,
// obstacle clusters, per-point classification) and serves the result
// as an interactive 3D scatter. Every page load re-reads the file and
// re-runs the pipeline, so the browser refresh button is the viewer
// loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kestrel-data/framereco/internal/frameio"
	"github.com/kestrel-data/framereco/internal/pcd"
	"github.com/kestrel-data/framereco/internal/reco"
	"github.com/kestrel-data/framereco/internal/recodb"
	"github.com/kestrel-data/framereco/internal/version"
	"github.com/kestrel-data/framereco/internal/viz"
	"github.com/kestrel-data/framereco/internal/web"
)

var (
	listen     = flag.String("listen", ":8082", "HTTP listen address for the viewer")
	configPath = flag.String("config", "", "Path to tuning params JSON (defaults apply when empty)")
	dbFile     = flag.String("db", "framereco.db", "Path to the run database (empty disables recording)")
	clusterer  = flag.String("clusterer", "grid", "Clustering algorithm: grid or dbscan")
	once       = flag.Bool("once", false, "Process the frame once, write HTML, and exit")
	outFile    = flag.String("out", "frame.html", "Output HTML path for -once mode")
	byCluster  = flag.Bool("clusters", false, "Color above-ground points per cluster")
	exportPCD  = flag.String("export-pcd", "", "Also export the loaded frame as a PCD file")
	velocity   = flag.Float64("velocity", 0, "Ego forward speed in m/s for motion compensation")
	omegaFlag  = flag.String("omega", "", "Ego angular rates as 'roll,pitch,yaw' in rad/s")
	anchorTime = flag.Float64("anchor", 0, "Anchor time (s, frame epoch) for motion compensation")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <frame file (.npz or .pcd)>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVer {
		fmt.Printf("framereco %s\n", version.String())
		return
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	framePath := flag.Arg(0)

	cfg := reco.DefaultConfig()
	if *configPath != "" {
		params, err := reco.LoadParams(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning params: %v", err)
		}
		cfg = params.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid tuning: %v", err)
	}

	motion, err := parseMotion()
	if err != nil {
		log.Fatalf("Invalid motion flags: %v", err)
	}

	// Validate the algorithm name up front so typos fail before the
	// server starts.
	if _, err := reco.NewClusterer(*clusterer, cfg); err != nil {
		log.Fatalf("%v", err)
	}

	if *exportPCD != "" {
		if err := exportFrame(framePath, *exportPCD); err != nil {
			log.Fatalf("PCD export failed: %v", err)
		}
		log.Printf("Exported %s to %s", framePath, *exportPCD)
	}

	if *once {
		if err := processOnce(framePath, cfg, motion); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	var db *recodb.DB
	if *dbFile != "" {
		db, err = recodb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(web.Config{
		Address:       *listen,
		FramePath:     framePath,
		Reco:          cfg,
		ClustererName: *clusterer,
		Motion:        motion,
		DB:            db,
	})

	log.Printf("Viewing %s (clusterer=%s); open http://localhost%s/", framePath, *clusterer, *listen)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Print("Graceful shutdown complete")
}

// processOnce runs the pipeline a single time and writes the scatter
// page to -out.
func processOnce(framePath string, cfg reco.Config, motion reco.MotionState) error {
	raw, format, err := frameio.LoadFrame(framePath)
	if err != nil {
		return err
	}

	cl, err := reco.NewClusterer(*clusterer, cfg)
	if err != nil {
		return err
	}

	res, err := reco.Run(raw, cfg, cl, motion)
	if err != nil {
		if res == nil {
			return err
		}
		log.Printf("frame %s: %v", framePath, err)
	}
	log.Printf("Processed %s (%s): %d points, %d ground, %d clusters in %s",
		framePath, format, res.PointsTotal, res.PointsGround, len(res.Clusters), res.Elapsed)

	if *dbFile != "" {
		db, err := recodb.Open(*dbFile)
		if err != nil {
			return fmt.Errorf("open run database: %w", err)
		}
		defer db.Close()
		runID, err := db.RecordRun(res, framePath, format, cfg)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		log.Printf("Recorded run %s", runID)
	}

	out, err := os.Create(*outFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", *outFile, err)
	}
	defer out.Close()
	if err := viz.RenderScatter(out, res, viz.Options{ByCluster: *byCluster}); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	log.Printf("Wrote %s", *outFile)
	return nil
}

// exportFrame converts the input frame to a binary PCD file.
func exportFrame(framePath, outPath string) error {
	raw, _, err := frameio.LoadFrame(framePath)
	if err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()
	return pcd.Encode(out, raw, pcd.FormatBinary)
}

// parseMotion assembles a MotionState from the motion flags.
func parseMotion() (reco.MotionState, error) {
	state := reco.MotionState{Velocity: *velocity, AnchorTime: *anchorTime}
	if *omegaFlag == "" {
		return state, nil
	}
	parts := strings.Split(*omegaFlag, ",")
	if len(parts) != 3 {
		return state, fmt.Errorf("-omega wants 'roll,pitch,yaw', got %q", *omegaFlag)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return state, fmt.Errorf("-omega component %d: %w", i, err)
		}
		state.Omega[i] = v
	}
	return state, nil
}
