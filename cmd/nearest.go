package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/storeline/siteval-cli/internal/geometry"
	"github.com/storeline/siteval-cli/internal/interp"
)

var (
	nearestLat float64
	nearestLon float64
	nearestK   int
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Show the tracts a coordinate would blend from",
	Long: `Loads the configured geometry and prints the k nearest tracts to the
given coordinate with their distances and inverse-distance weights, plus
the tract containing the point if any. Useful for sanity-checking a
prediction before trusting it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Geometry.Path == "" {
			return eris.New("geometry.path is required")
		}

		coll, err := geometry.Load(ctx, cfg.Geometry.Path, geometry.LoadOptions{
			Attributes: cfg.Geometry.Attributes,
		})
		if err != nil {
			return err
		}

		neighbors, err := interp.Nearest(coll, nearestLat, nearestLon, nearestK)
		if err != nil {
			return err
		}

		if rec := coll.Containing(geom.Coord{nearestLon, nearestLat}); rec != nil {
			fmt.Printf("Containing tract: %s\n", rec.ID)
		} else {
			fmt.Println("Containing tract: none")
		}
		fmt.Println()

		fmt.Printf("%-20s %12s %8s\n", "ID", "Distance km", "Weight")
		fmt.Println(strings.Repeat("-", 42))
		for _, n := range neighbors {
			fmt.Printf("%-20s %12.3f %8.4f\n", n.Record.ID, n.Distance, n.Weight)
		}
		return nil
	},
}

func init() {
	nearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "site latitude")
	nearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "site longitude")
	nearestCmd.Flags().IntVarP(&nearestK, "neighbors", "k", 3, "number of neighbors to show")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(nearestCmd)
}
