package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"remix/internal/audio"
	"remix/internal/config"
	"remix/internal/logging"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var output string
	var mono bool

	cmd := &cobra.Command{
		Use:   "convert INPUT",
		Short: "Transcode an audio file to float WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
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
			out, err := config.ExpandPath(output)
			if err != nil {
				return err
			}

			clip, format, err := audio.DecodeFile(input)
			if err != nil {
				return fmt.Errorf("decode %s: %w", input, err)
			}

			if mono && clip.Channels() > 1 {
				samples := clip.Mono()
				flat := audio.NewBuffer(clip.SampleRate, 1, len(samples))
				for i, v := range samples {
					flat.Data[0][i] = float32(v)
				}
				clip = flat
			}

			if err := audio.SaveWAV(out, clip); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("converted",
				logging.String(logging.FieldInput, input),
				logging.String("format", string(format)),
				logging.String(logging.FieldOutput, out))

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d ch, %d Hz)\n",
				out, clip.Channels(), clip.SampleRate)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "out.wav", "Output WAV path")
	cmd.Flags().BoolVar(&mono, "mono", false, "Mix all channels down to mono")
	return cmd
}
