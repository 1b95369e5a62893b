package rpk

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/retropack/tools/internal/boottool"
)

// inspectCmd is rpk inspect.
var inspectCmd = &cobra.Command{
	GroupID:               "image",
	Use:                   "inspect [flags] <boot.img>",
	DisableFlagsInUseLine: true,
	Short:                 "Print the header fields of a boot image",
	Long: `Print the header fields of a boot image.

Fields that cannot be determined by any backend are printed as unknown.

Examples:
  % rpk inspect /tmp/boot.img
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() != 1 {
			fmt.Fprint(os.Stderr, `expected exactly one boot image path

`)
			return cmd.Usage()
		}

		return inspectImpl.run(cmd.Context(), args, cmd.OutOrStdout(), cmd.OutOrStderr())
	},
}

type inspectImplConfig struct{}

var inspectImpl inspectImplConfig

func (r *inspectImplConfig) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	info := boottool.Inspect(ctx, boottool.Probe(ctx), args[0])

	fmt.Fprintf(stdout, "page size: %s\n", info.PageSizeString())
	if info.Base != nil {
		fmt.Fprintf(stdout, "base:      %#08x\n", *info.Base)
	} else {
		fmt.Fprintf(stdout, "base:      unknown\n")
	}
	fmt.Fprintf(stdout, "board:     %q\n", info.Board)
	fmt.Fprintf(stdout, "cmdline:   %q\n", info.Cmdline)
	return nil
}
