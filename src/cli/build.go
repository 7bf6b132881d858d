package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imagekit/src/builder"
	"imagekit/src/watcher"
)

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Render every image referenced by content pages",
		Long: `build parses the frontmatter of every markdown page in the content
directory, writes the transformed images to the output directory and a JSON
manifest with the src, srcset and attributes of each image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := newComponents(cfg)
			if err != nil {
				return err
			}
			b := builder.NewStaticBuilder(cfg, c.loader, c.processor, c.processor, c.loader)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := b.Build(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d images for %d pages in %s\n", result.Images, result.Pages, result.Duration)

			watch, _ := cmd.Flags().GetBool("watch")
			if !watch {
				return nil
			}

			w, err := watcher.NewWatcher(cfg, func(changed []string) error {
				slog.Info("change detected", "files", changed)
				_, err := b.Build(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			<-ctx.Done()
			return w.Stop()
		},
	}
	cmd.Flags().Bool("watch", false, "rebuild when content or source images change")
	return cmd
}
