package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"remix/internal/audio"
	"remix/internal/config"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "info INPUT",
		Short: "Inspect an audio file's format and geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}

			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			info, err := audio.Probe(input)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"path":        info.Path,
					"format":      string(info.Format),
					"sample_rate": info.SampleRate,
					"channels":    info.Channels,
					"bit_depth":   info.BitDepth,
					"frames":      info.Frames,
					"duration":    info.Duration.Seconds(),
					"size_bytes":  info.SizeBytes,
				})
			}

			rows := [][]string{
				{"Path", info.Path},
				{"Format", string(info.Format)},
				{"Sample rate", fmt.Sprintf("%d Hz", info.SampleRate)},
				{"Channels", fmt.Sprintf("%d", info.Channels)},
				{"Bit depth", fmt.Sprintf("%d", info.BitDepth)},
				{"Frames", fmt.Sprintf("%d", info.Frames)},
				{"Duration", info.Duration.Round(time.Millisecond).String()},
				{"Size", humanize.Bytes(uint64(info.SizeBytes))},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}
