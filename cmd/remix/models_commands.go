package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"remix/internal/bundle"
	"remix/internal/config"
	"remix/internal/modelstore"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage pretrained separation bundles",
	}

	modelsCmd.AddCommand(newModelsFetchCommand(ctx))
	modelsCmd.AddCommand(newModelsListCommand(ctx))
	modelsCmd.AddCommand(newModelsVerifyCommand(ctx))
	modelsCmd.AddCommand(newModelsConvertCommand(ctx))

	return modelsCmd
}

func newModelsFetchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [NAME]",
		Short: "Download and stage a pretrained bundle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			name := cfg.Models.Default
			if len(args) == 1 {
				name = args[0]
			}

			store := modelstore.New(cfg, logger)
			path, err := store.Fetch(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Staged %s at %s\n", name, path)
			return nil
		},
	}
	return cmd
}

func newModelsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known bundles and their staging state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			statuses := modelstore.New(cfg, logger).List()

			if jsonOut {
				type view struct {
					Name        string `json:"name"`
					Description string `json:"description,omitempty"`
					Stems       int    `json:"stems"`
					SizeBytes   int64  `json:"size_bytes"`
					Staged      bool   `json:"staged"`
					Verified    bool   `json:"verified"`
					Path        string `json:"path,omitempty"`
				}
				views := make([]view, 0, len(statuses))
				for _, status := range statuses {
					views = append(views, view{
						Name:        status.Info.Name,
						Description: status.Info.Description,
						Stems:       status.Info.Stems,
						SizeBytes:   status.Info.Size,
						Staged:      status.Staged,
						Verified:    status.Verified,
						Path:        status.Path,
					})
				}
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				size := ""
				if status.Info.Size > 0 {
					size = humanize.Bytes(uint64(status.Info.Size))
				}
				rows = append(rows, []string{
					status.Info.Name,
					fmt.Sprintf("%d", status.Info.Stems),
					size,
					yesNo(status.Staged),
					yesNo(status.Verified),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Model", "Stems", "Size", "Staged", "Verified"}, rows, 1, 2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newModelsVerifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [NAME]",
		Short: "Check a staged bundle against its manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			name := cfg.Models.Default
			if len(args) == 1 {
				name = args[0]
			}

			if err := modelstore.New(cfg, logger).Verify(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s verified\n", name)
			return nil
		},
	}
	return cmd
}

func newModelsConvertCommand(ctx *commandContext) *cobra.Command {
	var output string
	var name string
	var stemsFlag string
	var sampleRate int
	var window int
	var hop int
	var half bool

	cmd := &cobra.Command{
		Use:   "convert SRC.safetensors",
		Short: "Convert an exchange checkpoint to a portable bundle",
		Long: `Convert reads a safetensors checkpoint of the mask-estimator network,
validates that its layers chain into whole stems, and writes the engine's
portable bundle format. Without --output the bundle is staged into the
models directory with a manifest sidecar, exactly as a fetched bundle would
be; geometry flags override whatever metadata the checkpoint carries.`,
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

			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			checkpoint, err := bundle.OpenSafetensors(src)
			if err != nil {
				return err
			}

			var stems []string
			if trimmed := strings.TrimSpace(stemsFlag); trimmed != "" {
				for _, stem := range strings.Split(trimmed, ",") {
					stems = append(stems, strings.TrimSpace(stem))
				}
			}

			result, err := bundle.Convert(checkpoint, bundle.ConvertOptions{
				Name:       name,
				SampleRate: sampleRate,
				Window:     window,
				Hop:        hop,
				Stems:      stems,
				Half:       half,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			b := result.Bundle
			var dest string
			if output != "" {
				dest, err = config.ExpandPath(output)
				if err != nil {
					return err
				}
				if err := b.WriteFile(dest, half); err != nil {
					return err
				}
			} else {
				dest, err = modelstore.New(cfg, logger).StageBundle(b, half)
				if err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "Converted %s: %d layers, %s parameters, %d stems\n",
				b.Name, result.Layers, humanize.Comma(int64(result.Parameters)), len(b.Stems))
			fmt.Fprintf(out, "Wrote %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Bundle path (default: stage into the models directory)")
	cmd.Flags().StringVar(&name, "name", "", "Model name (default: checkpoint metadata)")
	cmd.Flags().StringVar(&stemsFlag, "stems", "", "Comma-separated stem names")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "Training sample rate")
	cmd.Flags().IntVar(&window, "window", 0, "STFT window size")
	cmd.Flags().IntVar(&hop, "hop", 0, "STFT hop size")
	cmd.Flags().BoolVar(&half, "half", false, "Store tensors as float16")
	return cmd
}
