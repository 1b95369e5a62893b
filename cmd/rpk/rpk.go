// Binary rpk is the top-level CLI entry point for retropack: building boot
// images for retro handheld gaming devices, managing your ~/retropack/
// profiles, and inspecting, verifying and repairing existing boot images.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/retropack/tools/internal/rpk"
)

func main() {
	if err := rpk.RootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
