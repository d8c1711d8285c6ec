package main

import (
	"github.com/spf13/cobra"

	"remix/internal/httpapi"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the localhost session API",
		Long: `Serve runs the HTTP API the desktop shell uses for interactive editing:
upload a track, decompose it into components, and remix them at different
volumes without re-running the analysis. The server stays up until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Serve.Bind = bind
			}
			return httpapi.NewServer(cfg, logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Address to listen on (overrides config)")
	return cmd
}
