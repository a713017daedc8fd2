package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/example/go-dspstream/internal/config"
	"github.com/example/go-dspstream/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the encode HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			srv := server.New(cfg, server.PipelineEncoder)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	defaults := config.DefaultConfig()
	config.RegisterServerFlags(cmd.Flags(), defaults)
	config.RegisterEncodeFlags(cmd.Flags(), defaults)

	return cmd
}
