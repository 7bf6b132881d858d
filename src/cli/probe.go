package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"imagekit/src/common"
	"imagekit/src/imageservice"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe SRC",
		Short: "Print the size and format of a public or remote image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := newComponents(cfg)
			if err != nil {
				return err
			}

			src := args[0]
			var meta *imageservice.ImageMetadata
			if common.IsRemotePath(src) {
				meta, err = c.loader.InferRemoteSize(cmd.Context(), src)
			} else {
				var data []byte
				data, err = c.loader.Load(cmd.Context(), src)
				if err == nil {
					meta, err = c.processor.Probe(data)
					if err != nil {
						err = common.NewNoImageMetadataError(src, err)
					}
				}
			}
			if err != nil {
				return err
			}
			meta.Src = src

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}
