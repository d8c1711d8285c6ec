package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"remix/internal/catalog"
	"remix/internal/config"
	"remix/internal/fileutil"
	"remix/internal/logging"
	"remix/internal/modelstore"
	"remix/internal/separation"
)

// separationView is the stable output shape of the separate command. The
// desktop app parses the JSON form.
type separationView struct {
	Model  string            `json:"model"`
	Input  string            `json:"input"`
	Stems  map[string]string `json:"stems"`
	Cached bool              `json:"cached,omitempty"`
}

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var model string
	var force bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "separate INPUT",
		Short: "Split a track into isolated stems",
		Long: `Separate runs the staged separation network over an audio file and writes
one float WAV per stem under OUTPUT/<model>/<track>/. Identical requests are
answered from the separation history unless --force is given.`,
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
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("inspect input: %w", err)
			}
			if model == "" {
				model = cfg.Models.Default
			}
			if outputDir == "" {
				outputDir = cfg.Paths.OutputDir
			}

			inputSHA, err := fileutil.HashFile(input)
			if err != nil {
				return fmt.Errorf("hash input: %w", err)
			}

			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if !force {
				entry, err := store.FindBySource(cmd.Context(), inputSHA, model)
				if err != nil {
					return err
				}
				if entry != nil && stemsIntact(entry.Stems) {
					logger.Info("reusing cached separation",
						logging.String(logging.FieldModel, model),
						logging.String(logging.FieldInput, input),
						logging.String("uuid", entry.UUID))
					return writeSeparation(cmd, jsonOut, separationView{
						Model:  entry.Model,
						Input:  entry.InputPath,
						Stems:  entry.Stems,
						Cached: true,
					})
				}
			}

			models := modelstore.New(cfg, logger)
			bundlePath, err := models.Path(model)
			if errors.Is(err, modelstore.ErrNotStaged) {
				bundlePath, err = models.Fetch(cmd.Context(), model)
			}
			if err != nil {
				return err
			}

			engine, err := separation.Load(bundlePath, separation.Options{
				ChunkSeconds:   cfg.Separation.ChunkSeconds,
				OverlapSeconds: cfg.Separation.OverlapSeconds,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			result, err := separation.SeparateFile(cmd.Context(), engine, input, outputDir)
			if err != nil {
				return err
			}

			if _, err := store.Record(cmd.Context(), catalog.Entry{
				InputPath:   input,
				InputSHA256: inputSHA,
				Model:       result.Model,
				OutputDir:   result.OutputDir,
				Stems:       result.StemPaths(),
				SampleRate:  result.SampleRate,
				Duration:    result.Duration,
			}); err != nil {
				return fmt.Errorf("record separation: %w", err)
			}

			return writeSeparation(cmd, jsonOut, separationView{
				Model: result.Model,
				Input: result.Input,
				Stems: result.StemPaths(),
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write stems under")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to separate with")
	cmd.Flags().BoolVar(&force, "force", false, "Separate even when a cached result exists")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func writeSeparation(cmd *cobra.Command, jsonOut bool, view separationView) error {
	if jsonOut {
		return writeJSON(cmd, view)
	}

	names := make([]string, 0, len(view.Stems))
	for name := range view.Stems {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{separation.DisplayName(name), view.Stems[name]})
	}

	out := cmd.OutOrStdout()
	if view.Cached {
		fmt.Fprintf(out, "Reused cached separation (%s)\n", view.Model)
	} else {
		fmt.Fprintf(out, "Separated with %s\n", view.Model)
	}
	fmt.Fprintln(out, renderTable([]string{"Stem", "File"}, rows))
	return nil
}

// stemsIntact reports whether every recorded stem file still exists.
func stemsIntact(stems map[string]string) bool {
	if len(stems) == 0 {
		return false
	}
	for _, path := range stems {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.Size() == 0 {
			return false
		}
	}
	return true
}
