package cmd

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/alpineroute/ski-analyzer/internal/orchestrator"
)

var closestLiftCmd = &cobra.Command{
	Use:   "closest-lift <lon> <lat>",
	Short: "Find the lift closest to a point",
	Args:  cobra.ExactArgs(2),
	RunE:  runClosestLift,
}

func init() {
	closestLiftCmd.Flags().StringP("ski-area", "s", "ski-area.json", "Path to the ski area model JSON")
	closestLiftCmd.Flags().Float64("limit", 100, "Search radius in meters")
	rootCmd.AddCommand(closestLiftCmd)
}

func runClosestLift(cmd *cobra.Command, args []string) error {
	skiAreaPath, _ := cmd.Flags().GetString("ski-area")
	limit, _ := cmd.Flags().GetFloat64("limit")

	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude %q: %w", args[0], err)
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude %q: %w", args[1], err)
	}

	skiArea, err := loadSkiArea(skiAreaPath)
	if err != nil {
		return err
	}

	id, distance, ok := orchestrator.ClosestLift(skiArea, orb.Point{lon, lat}, limit)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "No lift within %.0f m\n", limit)
		return nil
	}
	lift := skiArea.Lifts[id]
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s): %.1f m\n", lift.Name, id, lift.Type, distance)
	return nil
}
