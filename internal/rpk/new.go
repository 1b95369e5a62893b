package rpk

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retropack/tools/internal/config"
	"github.com/retropack/tools/internal/deviceprofile"
	"github.com/retropack/tools/internal/profileflag"
)

// newCmd is rpk new.
var newCmd = &cobra.Command{
	GroupID: "build",
	Use:     "new",
	Short:   "Create a new build profile",
	Long: `Create a new build profile.

A profile is a directory under --profile_dir (default ~/retropack) holding a
config.json with the device, kernel and packaging settings of one boot image
build.

Examples:
  # Create a profile named rp2 for the rp2 handheld:
  % rpk -p rp2 new --device=rp2 --kernel=$HOME/kernels/rp2/zImage
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}

		return newImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type newImplConfig struct {
	device     string
	kernel     string
	deviceTree string
	stockImage string
	mode       string
}

var newImpl newImplConfig

func init() {
	profileflag.RegisterPflags(newCmd.Flags())
	newCmd.Flags().StringVarP(&newImpl.device, "device", "", "", "device slug the profile builds for (one of: "+strings.Join(deviceprofile.Slugs(), ", ")+", or one defined in a DeviceProfiles override file)")
	newCmd.Flags().StringVarP(&newImpl.kernel, "kernel", "", "", "path to the kernel image (zImage)")
	newCmd.Flags().StringVarP(&newImpl.deviceTree, "dtb", "", "", "path to the device tree blob")
	newCmd.Flags().StringVarP(&newImpl.stockImage, "stock_image", "", "", "path to a stock boot image to extract the ramdisk from")
	newCmd.Flags().StringVarP(&newImpl.mode, "packaging_mode", "", "", "how the DTB travels in the image (concatenated or separate-dtb)")
}

func (r *newImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if r.device == "" {
		return fmt.Errorf("the --device flag is required (one of: %s)", strings.Join(deviceprofile.Slugs(), ", "))
	}

	if _, err := config.ReadFromFile(); err == nil {
		return fmt.Errorf("profile %s already exists in %s", profileflag.Profile(), config.ProfilePath())
	}

	cfg := &config.Struct{
		Device:        r.device,
		PackagingMode: r.mode,
		Kernel:        r.kernel,
		DeviceTree:    r.deviceTree,
		StockImage:    r.stockImage,
	}
	if err := cfg.WriteToFile(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created profile %s in %s\n", profileflag.Profile(), config.ProfilePath())
	fmt.Fprintf(stdout, "Build it with: rpk -p %s pack\n", profileflag.Profile())
	return nil
}
