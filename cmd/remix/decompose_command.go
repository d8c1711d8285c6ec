package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"remix/internal/audio"
	"remix/internal/config"
	"remix/internal/logging"
	"remix/internal/pca"
)

// decomposeView is the stable output shape of the decompose command.
// Variance ratios are percentages of total spectral variance.
type decomposeView struct {
	Input          string    `json:"input"`
	SampleRate     int       `json:"sample_rate"`
	Eigenvalues    []float64 `json:"eigenvalues"`
	VarianceRatios []float64 `json:"variance_ratios"`
	Components     []string  `json:"components"`
}

func newDecomposeCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var components int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "decompose INPUT",
		Short: "Split a track into spectral principal components",
		Long: `Decompose analyzes an audio file's magnitude spectrogram, extracts its
leading principal components, and writes each one back as a mono float WAV
named <track>_component_K.wav. Components are ordered by explained variance
and can be recombined with the mix command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if components == 0 {
				components = cfg.Decompose.Components
			}
			if outputDir == "" {
				outputDir = cfg.Paths.OutputDir
			}

			clip, format, err := audio.DecodeFile(input)
			if err != nil {
				return fmt.Errorf("decode %s: %w", input, err)
			}
			logger.Info("decomposing",
				logging.String(logging.FieldInput, input),
				logging.String("format", string(format)),
				logging.Int("components", components))

			result, err := pca.Decompose(clip.Mono(), clip.SampleRate, components,
				cfg.Decompose.Window, cfg.Decompose.Hop)
			if err != nil {
				return err
			}

			paths, err := pca.SaveComponents(result, outputDir, trackName(input))
			if err != nil {
				return err
			}
			logger.Info("components written",
				logging.Int("components", len(paths)),
				logging.String(logging.FieldOutput, outputDir))

			percents := result.VariancePercents()
			view := decomposeView{
				Input:          input,
				SampleRate:     result.SampleRate,
				Eigenvalues:    result.Eigenvalues,
				VarianceRatios: percents,
				Components:     paths,
			}
			if jsonOut {
				return writeJSON(cmd, view)
			}

			rows := make([][]string, 0, len(paths))
			for i, path := range paths {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					fmt.Sprintf("%.4g", result.Eigenvalues[i]),
					fmt.Sprintf("%.1f%%", percents[i]),
					path,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Eigenvalue", "Variance", "File"}, rows, 1, 2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write components into")
	cmd.Flags().IntVarP(&components, "components", "n", 0, "Number of components to extract")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

// trackName derives an output prefix from the input filename.
func trackName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." {
		return "track"
	}
	return name
}
