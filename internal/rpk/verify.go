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

// verifyCmd is rpk verify.
var verifyCmd = &cobra.Command{
	GroupID:               "image",
	Use:                   "verify [flags] <boot.img>",
	DisableFlagsInUseLine: true,
	Short:                 "Check a boot image against the mandated page size",
	Long: `Check a boot image against the mandated page size.

An image whose page size cannot be determined fails verification; an
unverifiable image must not be flashed.

Examples:
  % rpk verify /tmp/boot.img
  % rpk verify --page_size=4096 /tmp/boot.img
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() != 1 {
			fmt.Fprint(os.Stderr, `expected exactly one boot image path

`)
			return cmd.Usage()
		}

		return verifyImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type verifyImplConfig struct {
	pageSize uint32
}

var verifyImpl verifyImplConfig

func init() {
	verifyCmd.Flags().Uint32VarP(&verifyImpl.pageSize, "page_size", "", bootimg.DefaultPageSize, "page size the image must have")
}

func (r *verifyImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	res := validate.Check(ctx, boottool.Probe(ctx), args[0], r.pageSize)
	fmt.Fprintf(stdout, "%s: %s\n", args[0], res)
	if !res.OK {
		return fmt.Errorf("%s: %w", args[0], validate.ErrPageSizeMismatch)
	}
	return nil
}
