package main

import (
	"github.com/spf13/cobra"

	"tour-engine/internal/tour/device"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/render"
)

func newClassifyCmd() *cobra.Command {
	var dc device.Context
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a device into a capability tier",
		Long: `Classify a device from its graphics context.

With --introspection the renderer string decides the tier; otherwise the
physical pixel count of the screen does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			capability := device.Classify(dc)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"capability": capability,
				"profile":    render.ProfileFor(capability),
			})
		},
	}
	cmd.Flags().BoolVar(&dc.GraphicsAvailable, "graphics", true, "Graphics context can be created")
	cmd.Flags().BoolVar(&dc.GPUIntrospection, "introspection", false, "GPU renderer string is available")
	cmd.Flags().StringVar(&dc.Renderer, "renderer", "", "GPU renderer string")
	cmd.Flags().StringVar(&dc.Vendor, "vendor", "", "GPU vendor string")
	cmd.Flags().IntVar(&dc.ScreenWidth, "width", 1920, "Screen width in CSS pixels")
	cmd.Flags().IntVar(&dc.ScreenHeight, "height", 1080, "Screen height in CSS pixels")
	cmd.Flags().Float64Var(&dc.PixelRatio, "pixel-ratio", 1, "Device pixel ratio")
	return cmd
}

func newProfileCmd() *cobra.Command {
	var fps float64
	cmd := &cobra.Command{
		Use:   "profile <low|medium|high>",
		Short: "Print the render profile for a tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			capability, err := models.ParseCapability(args[0])
			if err != nil {
				return err
			}
			profile := render.ProfileFor(capability)
			if fps > 0 {
				profile = render.Adjust(profile, fps)
			}
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
	cmd.Flags().Float64Var(&fps, "fps", 0, "Apply one adaptation step for this measured FPS")
	return cmd
}
