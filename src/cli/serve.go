package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imagekit/src/imageservice"
	"imagekit/src/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the image endpoint and the public directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host, _ = cmd.Flags().GetString("host")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}

			c, err := newComponents(cfg)
			if err != nil {
				return err
			}
			service := imageservice.NewService(cfg)
			service.SetRemoteSizer(c.loader)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(cfg, service, c.loader, c.processor).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("host", "", "listen host, overrides server.host")
	cmd.Flags().Int("port", 0, "listen port, overrides server.port")
	return cmd
}
