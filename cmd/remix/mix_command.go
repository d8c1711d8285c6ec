package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"remix/internal/audio"
	"remix/internal/config"
	"remix/internal/logging"
	"remix/internal/pca"
)

func newMixCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var volumesFlag string
	var output string

	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Recombine decomposed components at chosen volumes",
		Long: `Mix loads the <track>_component_K.wav files a decompose run left in a
directory and sums them with per-component volumes. Omitted volumes default
to 1; the result is peak-normalized only when it would clip.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			dir, err := config.ExpandPath(inputDir)
			if err != nil {
				return err
			}
			out, err := config.ExpandPath(output)
			if err != nil {
				return err
			}

			components, sampleRate, err := pca.LoadComponents(dir)
			if err != nil {
				return err
			}

			volumes, err := parseVolumes(volumesFlag, len(components))
			if err != nil {
				return err
			}

			mixed, err := pca.Mix(components, volumes)
			if err != nil {
				return err
			}

			buf := audio.NewBuffer(sampleRate, 1, len(mixed))
			for i, v := range mixed {
				buf.Data[0][i] = float32(v)
			}
			if err := audio.SaveWAV(out, buf); err != nil {
				return fmt.Errorf("write mix: %w", err)
			}
			logger.Info("mix written",
				logging.Int("components", len(components)),
				logging.String(logging.FieldOutput, out))

			fmt.Fprintf(cmd.OutOrStdout(), "Mixed %d components into %s\n", len(components), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory holding component WAV files")
	cmd.Flags().StringVarP(&volumesFlag, "volumes", "v", "", "Comma-separated component volumes (default 1 each)")
	cmd.Flags().StringVarP(&output, "output", "o", "mix.wav", "Output WAV path")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// parseVolumes expands the comma-separated volume list to one entry per
// component, defaulting missing values to unity gain.
func parseVolumes(flag string, components int) ([]float64, error) {
	volumes := make([]float64, components)
	for i := range volumes {
		volumes[i] = 1
	}
	if strings.TrimSpace(flag) == "" {
		return volumes, nil
	}

	parts := strings.Split(flag, ",")
	if len(parts) > components {
		return nil, fmt.Errorf("%d volumes given for %d components", len(parts), components)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", part, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("volume %g out of range", v)
		}
		volumes[i] = v
	}
	return volumes, nil
}
