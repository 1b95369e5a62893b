package rpk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retropack/tools/internal/boottool"
	"github.com/retropack/tools/internal/config"
	"github.com/retropack/tools/internal/profileflag"
	"github.com/retropack/tools/internal/ramdisk"
)

// ramdiskCmd is rpk ramdisk.
var ramdiskCmd = &cobra.Command{
	GroupID: "build",
	Use:     "ramdisk",
	Short:   "Extract or synthesize the profile's ramdisk",
	Long: `Extract or synthesize the profile's ramdisk.

The ramdisk is taken from the profile's configured stock boot image; without
one (or when extraction fails), a minimal ramdisk is synthesized. The result
is a gzip-compressed cpio archive, shared by all packaging variants of the
profile. An existing artifact is reused; delete it to force re-extraction.

Examples:
  % rpk -p rp2 ramdisk
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}

		return ramdiskImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type ramdiskImplConfig struct {
	output string
}

var ramdiskImpl ramdiskImplConfig

func init() {
	profileflag.RegisterPflags(ramdiskCmd.Flags())
	ramdiskCmd.Flags().StringVarP(&ramdiskImpl.output, "output", "o", "", "write the ramdisk to this path instead of <output dir>/initrd.gz")
}

func (r *ramdiskImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.ReadFromFile()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("profile %s does not exist yet, create it with: rpk -p %s new", profileflag.Profile(), profileflag.Profile())
		}
		return err
	}

	out := r.output
	if out == "" {
		outDir := cfg.OutputDirOrDefault()
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return err
		}
		out = filepath.Join(outDir, "initrd.gz")
	}
	if err := ramdisk.Extract(ctx, boottool.Probe(ctx), cfg.StockImage, out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ramdisk at %s\n", out)
	return nil
}
