package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alpineroute/ski-analyzer/internal/geojson"
	"github.com/alpineroute/ski-analyzer/internal/orchestrator"
	"github.com/alpineroute/ski-analyzer/internal/osmdoc"
)

var buildSkiAreaCmd = &cobra.Command{
	Use:   "build-ski-area <overpass-json>",
	Short: "Build a ski area model from raw OSM data",
	Long: `Build-ski-area reads an Overpass API JSON export containing a resort's
nodes, ways and relations, assembles lifts and pistes, and writes the
resulting ski area model as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuildSkiArea,
}

func init() {
	buildSkiAreaCmd.Flags().StringP("output", "o", "ski-area.json", "Output path for the ski area JSON")
	buildSkiAreaCmd.Flags().String("geojson", "", "Also write the model as GeoJSON to this path")
	buildSkiAreaCmd.Flags().Bool("clip-lines", false, "Remove piste line parts inside their own areas")
	rootCmd.AddCommand(buildSkiAreaCmd)
}

func runBuildSkiArea(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	geojsonPath, _ := cmd.Flags().GetString("geojson")
	clipLines, _ := cmd.Flags().GetBool("clip-lines")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	doc, err := osmdoc.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse OSM document: %w", err)
	}
	logger.Info("parsed document",
		"nodes", len(doc.Nodes), "ways", len(doc.Ways), "relations", len(doc.Relations))

	tok, stop := cancelOnInterrupt()
	defer stop()

	skiArea, err := orchestrator.BuildSkiArea(doc, logger, tok)
	if err != nil {
		return fmt.Errorf("failed to build ski area: %w", err)
	}
	if clipLines {
		orchestrator.ClipPisteLines(skiArea)
	}
	logger.Info("built ski area", "name", skiArea.Metadata.Name, "summary", geojson.LayerSummary(skiArea))

	out, err := json.MarshalIndent(skiArea, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ski area: %w", err)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outputPath)

	if geojsonPath != "" {
		gj, err := geojson.ToGeoJSONBytes(geojson.FromSkiArea(skiArea))
		if err != nil {
			return err
		}
		if err := os.WriteFile(geojsonPath, gj, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", geojsonPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", geojsonPath)
	}

	return nil
}
