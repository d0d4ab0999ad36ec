package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/service"
	"tour-engine/internal/tour/viewer"
)

func newInspectCmd() *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "inspect <model.glb|model.gltf|model.obj>",
		Short: "Load a model headlessly and report its fitted bounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			capability, err := models.ParseCapability(tier)
			if err != nil {
				return err
			}
			dir, name := filepath.Split(args[0])
			if dir == "" {
				dir = "."
			}
			loader := assets.NewLoader(assets.Options{Store: assets.NewStore(dir)})
			model := models.Model3D{
				ID:       strings.TrimSuffix(name, filepath.Ext(name)),
				Name:     name,
				ModelURL: name,
			}

			insp, err := service.InspectModel(cmd.Context(), viewer.NewAssetLoader(loader.FetchModel), model, capability, nil)
			if insp != nil {
				if perr := printJSON(cmd.OutOrStdout(), insp); perr != nil {
					return perr
				}
			}
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "capability", "high", "Device tier to load the model for")
	return cmd
}
