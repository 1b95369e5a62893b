package rpk

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropack/tools/internal/bootpack"
	"github.com/retropack/tools/internal/boottool"
	"github.com/retropack/tools/internal/config"
	"github.com/retropack/tools/internal/profileflag"
)

// packCmd is rpk pack.
var packCmd = &cobra.Command{
	GroupID: "build",
	Use:     "pack",
	Short:   "Build the canonical boot image of a profile",
	Long: `Build the canonical boot image of a profile.

pack obtains the ramdisk (extracted from the configured stock image, or
synthesized), assembles both packaging variants, validates them against the
device's mandated page size and publishes the selected variant as boot.img
in the profile's output directory.

Examples:
  # Build the boot image of profile rp2:
  % rpk -p rp2 pack

  # Build to an explicit path:
  % rpk -p rp2 pack --output=/tmp/boot.img
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}

		return packImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type packImplConfig struct {
	output string
	mode   string
}

var packImpl packImplConfig

func init() {
	profileflag.RegisterPflags(packCmd.Flags())
	packCmd.Flags().StringVarP(&packImpl.output, "output", "o", "", "write the canonical boot image to this path instead of <output dir>/boot.img")
	packCmd.Flags().StringVarP(&packImpl.mode, "packaging_mode", "", "", "override the profile's packaging mode (concatenated or separate-dtb)")
}

func (r *packImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.ReadFromFile()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("profile %s does not exist yet, create it with: rpk -p %s new", profileflag.Profile(), profileflag.Profile())
		}
		return err
	}
	if r.mode != "" {
		cfg.PackagingMode = r.mode
	}

	pack := &bootpack.Pack{
		Cfg:    cfg,
		Avail:  boottool.Probe(ctx),
		Output: r.output,
	}
	if _, err := pack.Run(ctx); err != nil {
		return err
	}
	return nil
}
