package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"remix/internal/config"
	"remix/internal/icon"
)

func newIconCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var icnsPath string
	var pngPath string
	var pngSize int

	cmd := &cobra.Command{
		Use:   "icon",
		Short: "Generate the application icon",
		Long: `Icon renders the app's waveform mark: five rounded bars on a dark
vertical gradient inside a rounded square. By default it writes a full
.iconset directory; --icns additionally packs the sizes into a native ICNS
container and --png renders a single size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			params, err := icon.ParamsFromConfig(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if pngPath != "" {
				path, err := config.ExpandPath(pngPath)
				if err != nil {
					return err
				}
				if err := icon.WritePNG(path, pngSize, params); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s (%dx%d)\n", path, pngSize, pngSize)
				return nil
			}

			dir, err := config.ExpandPath(outputDir)
			if err != nil {
				return err
			}
			written, err := icon.WriteIconset(dir, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d icons to %s\n", len(written), dir)

			if icnsPath != "" {
				path, err := config.ExpandPath(icnsPath)
				if err != nil {
					return err
				}
				if err := icon.WriteICNS(path, params); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "AppIcon.iconset", "Iconset directory to write")
	cmd.Flags().StringVar(&icnsPath, "icns", "", "Also write a packed ICNS file")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write a single PNG instead of an iconset")
	cmd.Flags().IntVar(&pngSize, "size", 1024, "Pixel size for --png output")
	return cmd
}
