package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"imagekit/src/builder"
	"imagekit/src/common"
	"imagekit/src/imageservice"
)

func newURLCommand() *cobra.Command {
	var ref common.ImageRef
	var static bool

	cmd := &cobra.Command{
		Use:   "url SRC",
		Short: "Print the URL, srcset and attributes for an image",
		Example: `  imagekit url /images/cat.png --width 400 --densities 1x,2x
  imagekit url /images/cat.png --layout constrained --width 800 --formats avif,webp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := newComponents(cfg)
			if err != nil {
				return err
			}

			ref.Src = args[0]
			opts, err := builder.ResolveOptions(cmd.Context(), c.loader, c.processor, ref)
			if err != nil {
				return err
			}

			service := imageservice.NewService(cfg)
			service.SetRemoteSizer(c.loader)
			if static {
				service.SetCollector(imageservice.NewCollector())
			}

			var out any
			if len(ref.Formats) > 0 {
				formats := make([]imageservice.ImageFormat, 0, len(ref.Formats))
				for _, f := range ref.Formats {
					formats = append(formats, imageservice.ImageFormat(f))
				}
				out, err = service.GetPicture(cmd.Context(), opts, formats, "")
			} else {
				out, err = service.GetImage(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&ref.Width, "width", "w", 0, "target width")
	f.Float64Var(&ref.Height, "height", 0, "target height")
	f.StringVarP(&ref.Format, "format", "f", "", "output format")
	f.StringSliceVar(&ref.Formats, "formats", nil, "render a picture with one source per format")
	f.StringVarP(&ref.Quality, "quality", "q", "", "quality: 1-100 or low, mid, high, max")
	f.StringSliceVar(&ref.Densities, "densities", nil, "pixel densities such as 1x,2x")
	f.IntSliceVar(&ref.Widths, "widths", nil, "srcset widths")
	f.StringVar(&ref.Layout, "layout", "", "layout: constrained, full-width, fixed or none")
	f.StringVar(&ref.Fit, "fit", "", "object fit")
	f.StringVar(&ref.Position, "position", "", "object position")
	f.BoolVar(&ref.InferSize, "infer-size", false, "fetch remote images to read their size")
	f.BoolVar(&ref.Priority, "priority", false, "load eagerly with high fetch priority")
	f.StringVar(&ref.Alt, "alt", "", "alt text")
	f.BoolVar(&static, "static", false, "print static build paths instead of endpoint URLs")
	return cmd
}
