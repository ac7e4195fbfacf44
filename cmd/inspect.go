package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storeline/siteval-cli/internal/geometry"
	"github.com/storeline/siteval-cli/internal/predictor"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the configured geometry and model artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		coll, err := geometry.Load(ctx, cfg.Geometry.Path, geometry.LoadOptions{
			Attributes: cfg.Geometry.Attributes,
		})
		if err != nil {
			return err
		}

		model, err := predictor.Load(cfg.Model.Path)
		if err != nil {
			return err
		}

		fmt.Printf("Geometry: %s\n", cfg.Geometry.Path)
		fmt.Printf("  records:    %d\n", coll.Len())
		fmt.Printf("  attributes: %s\n", strings.Join(coll.Schema(), ", "))
		if b := coll.Bounds(); b != nil {
			fmt.Printf("  bounds:     lon [%.4f, %.4f], lat [%.4f, %.4f]\n",
				b.Min(0), b.Max(0), b.Min(1), b.Max(1))
		}
		fmt.Println()

		fmt.Printf("Model: %s\n", cfg.Model.Path)
		fmt.Printf("  name:      %s\n", model.Name)
		fmt.Printf("  version:   %s\n", model.Version)
		fmt.Printf("  intercept: %.4f\n", model.Intercept)
		fmt.Printf("  features:  %d\n", len(model.Features))
		for _, f := range model.Features {
			if model.Categorical(f) {
				fmt.Printf("    %s (categorical, %d levels)\n", f, len(model.Levels[f]))
			} else {
				fmt.Printf("    %s\n", f)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
