// Package boottool selects among external boot image tools (mkbootimg,
// abootimg, unpackbootimg) and an in-process native implementation to
// inspect, extract and assemble boot images. Which tools are installed
// varies wildly across hosts, so every operation walks a fixed priority
// chain of backends and the native implementation guarantees the chain never
// comes up completely empty-handed.
package boottool

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// The error taxonomy of the fallback chains. ErrToolUnavailable and
// ErrExtractionFailed are soft: the chain continues with the next backend.
var (
	ErrToolUnavailable  = errors.New("boot image tool not installed")
	ErrExtractionFailed = errors.New("boot image extraction produced no usable output")
	ErrAssemblyFailed   = errors.New("all assembly backends failed")
)

// Tool names probed on the host.
const (
	toolMkbootimg     = "mkbootimg"
	toolAbootimg      = "abootimg"
	toolUnpackbootimg = "unpackbootimg"
)

// Availability is the runtime-discovered capability set. It is probed once
// at startup and then consulted to build each operation's backend chain.
type Availability struct {
	Mkbootimg     bool
	Abootimg      bool
	Unpackbootimg bool
}

// Probe checks which boot image tools are installed. The lookups are
// independent, so they run concurrently.
func Probe(ctx context.Context) Availability {
	var avail Availability
	eg, _ := errgroup.WithContext(ctx)
	for _, probe := range []struct {
		tool string
		dest *bool
	}{
		{toolMkbootimg, &avail.Mkbootimg},
		{toolAbootimg, &avail.Abootimg},
		{toolUnpackbootimg, &avail.Unpackbootimg},
	} {
		probe := probe
		eg.Go(func() error {
			_, err := exec.LookPath(probe.tool)
			*probe.dest = err == nil
			return nil
		})
	}
	eg.Wait()
	return avail
}

// None reports whether no external tool is available. The native backend
// still works in that case.
func (a Availability) None() bool {
	return !a.Mkbootimg && !a.Abootimg && !a.Unpackbootimg
}

func (a Availability) String() string {
	var have []string
	for _, t := range []struct {
		name string
		ok   bool
	}{
		{toolMkbootimg, a.Mkbootimg},
		{toolAbootimg, a.Abootimg},
		{toolUnpackbootimg, a.Unpackbootimg},
	} {
		if t.ok {
			have = append(have, t.name)
		}
	}
	if len(have) == 0 {
		return "no external tools, native only"
	}
	return strings.Join(have, ", ") + ", native"
}
