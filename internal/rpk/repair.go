package rpk

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
	"github.com/retropack/tools/internal/validate"
)

// repairCmd is rpk repair.
var repairCmd = &cobra.Command{
	GroupID:               "image",
	Use:                   "repair [flags] <src.img> <dst.img>",
	DisableFlagsInUseLine: true,
	Short:                 "Rebuild a boot image with the mandated page size",
	Long: `Rebuild a boot image with the mandated page size.

repair extracts the components of src.img, reassembles them with the
requested page size and writes the result to dst.img. The source image is
never modified.

Examples:
  % rpk repair /tmp/boot.img /tmp/boot-fixed.img
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() != 2 {
			fmt.Fprint(os.Stderr, `expected a source and a destination boot image path

`)
			return cmd.Usage()
		}

		return repairImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type repairImplConfig struct {
	pageSize uint32
	cmdline  string
	board    string
}

var repairImpl repairImplConfig

func init() {
	repairCmd.Flags().Uint32VarP(&repairImpl.pageSize, "page_size", "", bootimg.DefaultPageSize, "page size to rebuild the image with")
	repairCmd.Flags().StringVarP(&repairImpl.cmdline, "cmdline", "", "", "override the kernel command line (default: keep the image's)")
	repairCmd.Flags().StringVarP(&repairImpl.board, "board", "", "", "override the board name (default: keep the image's)")
}

func (r *repairImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	avail := boottool.Probe(ctx)
	params := bootimg.Params{
		PageSize:      r.pageSize,
		KernelOffset:  bootimg.DefaultKernelOffset,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
		Cmdline:       r.cmdline,
		Board:         r.board,
	}
	if err := validate.Repair(ctx, avail, args[0], args[1], params); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "repaired %s to %s (page size %d)\n", args[0], args[1], r.pageSize)
	return nil
}
