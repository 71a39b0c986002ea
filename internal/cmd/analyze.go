package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/alpineroute/ski-analyzer/internal/cancel"
	"github.com/alpineroute/ski-analyzer/internal/geojson"
	"github.com/alpineroute/ski-analyzer/internal/orchestrator"
	"github.com/alpineroute/ski-analyzer/internal/skiarea"
	"github.com/alpineroute/ski-analyzer/internal/trajectory"
	"github.com/alpineroute/ski-analyzer/internal/worker"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <gpx-file>...",
	Short: "Annotate recorded trajectories against a ski area model",
	Long: `Analyze reads one or more GPX trajectory files, partitions each into
lift rides and movement stretches against a previously built ski area
model, and writes one annotated route JSON per input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringP("ski-area", "s", "ski-area.json", "Path to the ski area model JSON")
	analyzeCmd.Flags().StringP("output-dir", "o", ".", "Directory for annotated route output")
	analyzeCmd.Flags().Int("workers", 4, "Number of parallel analysis workers")
	analyzeCmd.Flags().Bool("progress", true, "Show a progress bar")
	analyzeCmd.Flags().Bool("geojson", false, "Also write each route as GeoJSON")
	rootCmd.AddCommand(analyzeCmd)
}

// routeAnalyzer adapts the analysis pipeline to the worker pool: one
// task per GPX file, sharing a loaded ski area and cancellation token.
type routeAnalyzer struct {
	skiArea   *skiarea.SkiArea
	outputDir string
	asGeoJSON bool
	tok       *cancel.Token
}

// waypointsFromGPX flattens a parsed GPX document into the track /
// segment / waypoint nesting the analysis pipeline consumes.
func waypointsFromGPX(g *gpx.GPX) [][][]trajectory.Waypoint {
	tracks := make([][][]trajectory.Waypoint, 0, len(g.Tracks))
	for _, trk := range g.Tracks {
		segments := make([][]trajectory.Waypoint, 0, len(trk.Segments))
		for _, seg := range trk.Segments {
			wps := make([]trajectory.Waypoint, 0, len(seg.Points))
			for _, p := range seg.Points {
				wp := trajectory.Waypoint{Point: orb.Point{p.Longitude, p.Latitude}}
				if p.Elevation.NotNull() {
					e := p.Elevation.Value()
					wp.Elevation = &e
				}
				if !p.Timestamp.IsZero() {
					t := p.Timestamp
					wp.Time = &t
				}
				if p.HorizontalDilution.NotNull() {
					h := p.HorizontalDilution.Value()
					wp.Hdop = &h
				}
				wps = append(wps, wp)
			}
			segments = append(segments, wps)
		}
		tracks = append(tracks, segments)
	}
	return tracks
}

func (a *routeAnalyzer) Analyze(ctx context.Context, trajectoryPath string) (string, int, error) {
	g, err := gpx.ParseFile(trajectoryPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse %s: %w", trajectoryPath, err)
	}

	route, err := orchestrator.Analyze(a.skiArea, waypointsFromGPX(g), a.tok)
	if err != nil {
		return "", 0, fmt.Errorf("failed to analyze %s: %w", trajectoryPath, err)
	}
	liftRides := 0
	for _, item := range route.Items {
		if item.Kind == orchestrator.KindUseLift {
			liftRides++
		}
	}

	base := strings.TrimSuffix(filepath.Base(trajectoryPath), filepath.Ext(trajectoryPath))
	outPath := filepath.Join(a.outputDir, base+".route.json")
	data, err := json.MarshalIndent(route, "", "  ")
	if err != nil {
		return "", 0, err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", 0, err
	}

	if a.asGeoJSON {
		gj, err := geojson.ToGeoJSONBytes(geojson.FromAnnotatedRoute(route))
		if err != nil {
			return "", 0, err
		}
		gjPath := filepath.Join(a.outputDir, base+".route.geojson")
		if err := os.WriteFile(gjPath, gj, 0o644); err != nil {
			return "", 0, err
		}
	}

	return outPath, liftRides, nil
}

func loadSkiArea(path string) (*skiarea.SkiArea, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var sa skiarea.SkiArea
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to decode ski area %s: %w", path, err)
	}
	return &sa, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	skiAreaPath, _ := cmd.Flags().GetString("ski-area")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	workers, _ := cmd.Flags().GetInt("workers")
	showProgress, _ := cmd.Flags().GetBool("progress")
	asGeoJSON, _ := cmd.Flags().GetBool("geojson")

	skiArea, err := loadSkiArea(skiAreaPath)
	if err != nil {
		return err
	}
	logger.Info("loaded ski area", "name", skiArea.Metadata.Name,
		"lifts", len(skiArea.Lifts), "pistes", len(skiArea.Pistes))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outputDir, err)
	}

	tok, stop := cancelOnInterrupt()
	defer stop()

	tasks := make([]worker.Task, len(args))
	for i, path := range args {
		tasks[i] = worker.Task{TrajectoryPath: path}
	}

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers: workers,
		Analyzer: &routeAnalyzer{
			skiArea:   skiArea,
			outputDir: outputDir,
			asGeoJSON: asGeoJSON,
			tok:       tok,
		},
		OnProgress: progress.Callback(),
	})

	results := pool.Run(context.Background(), tasks)
	progress.Done()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("analysis failed", "trajectory", r.Task.TrajectoryPath, "err", r.Err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), progress.Summary())
	if failed > 0 {
		return fmt.Errorf("%d of %d trajectories failed", failed, len(tasks))
	}
	return nil
}
