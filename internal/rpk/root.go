package rpk

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/retropack/tools/internal/profileflag"
	"github.com/retropack/tools/internal/version"
)

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rpk",
		Short: "top-level CLI entry point for retropack boot images",
		Long: `The rpk tool builds, validates and repairs boot images for retro
handheld gaming devices. It allows you to:

1. Create new build profiles (rpk new),
2. Build the boot image of a profile (rpk pack),
3. Check existing boot images against a device's mandated page size
   and fix them (rpk verify, rpk repair, rpk inspect).
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionVal, err := cmd.Flags().GetBool("version")
			if err != nil {
				return fmt.Errorf("BUG: version flag declared as non-bool")
			}
			if versionVal {
				fmt.Println(version.Read())
				return nil
			}
			return pflag.ErrHelp
		},
	}
	rootCmd.AddGroup(&cobra.Group{
		ID:    "build",
		Title: "Commands to create and build a profile:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "image",
		Title: "Commands to work with existing boot images:",
	})
	rootCmd.Flags().Bool("version", false, "print rpk version")
	// Only defined so that it appears in documentation like --help.
	//
	// Cobra only parses local flags on the target command, but they can appear
	// at any place in the command line (before or after the verb).
	profileflag.RegisterPflags(rootCmd.Flags())
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(ramdiskCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}
