// Package validate is the correctness gate of the packaging pipeline: it
// checks an assembled boot image against the device-mandated page size and
// rebuilds it with corrected parameters when it does not match. Backend tool
// versions have been observed to silently default to the wrong page size, so
// this runs after every assembly and before every flash.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
)

// ErrPageSizeMismatch is reported when an image's page size differs from the
// expected value or cannot be determined at all.
var ErrPageSizeMismatch = errors.New("boot image page size mismatch")

// Result is the outcome of a page size check.
type Result struct {
	OK bool
	// Detected is the page size reported by the inspector, nil when
	// unknown. Unknown counts as a failure: an unverifiable image is
	// never trusted.
	Detected *uint32
}

func (r Result) String() string {
	if r.OK {
		return fmt.Sprintf("pass (page size %d)", *r.Detected)
	}
	if r.Detected == nil {
		return "fail (page size unknown)"
	}
	return fmt.Sprintf("fail (page size %d)", *r.Detected)
}

// Check validates the image at path against the expected page size. It has
// no side effects: a passing image is not touched, so checking twice in a
// row is a no-op.
func Check(ctx context.Context, avail boottool.Availability, path string, want uint32) Result {
	info := boottool.Inspect(ctx, avail, path)
	res := Result{Detected: info.PageSize}
	if info.PageSize == nil || *info.PageSize != want {
		return res
	}

	// Reported metadata alone is not trusted: when the image is natively
	// parseable, the section layout must also respect the page boundary.
	// Parse recomputes section offsets from the header page size, so a
	// successful parse of a well-formed image is the structural check.
	if img, err := bootimg.ParseFile(path); err == nil {
		if img.PageSize != want {
			return res
		}
	}

	res.OK = true
	return res
}

// Repair produces a corrected copy of src at dst: it extracts the image's
// components, rewrites the page size (and any header parameters the caller
// supplies) and reassembles. The source image is never modified. Extraction
// failure is fatal; there is no deeper fallback once the image is known-bad.
func Repair(ctx context.Context, avail boottool.Availability, src, dst string, params bootimg.Params) error {
	dir, err := os.MkdirTemp("", "retropack-repair-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	comp, err := boottool.ExtractComponents(ctx, avail, src, dir)
	if err != nil {
		return fmt.Errorf("cannot repair %s: %v", src, err)
	}

	// Carry over what the image itself says where the caller left the
	// parameter empty; the page size always comes from the caller.
	if params.Cmdline == "" {
		params.Cmdline = comp.Info.Cmdline
	}
	if params.Board == "" {
		params.Board = comp.Info.Board
	}
	if params.Base == 0 && comp.Info.Base != nil {
		params.Base = *comp.Info.Base
	}

	if err := boottool.Assemble(ctx, avail, boottool.AssembleInput{
		Kernel:     comp.KernelPath,
		Ramdisk:    comp.RamdiskPath,
		DeviceTree: comp.DeviceTreePath,
		Output:     dst,
		Params:     params,
	}); err != nil {
		return err
	}

	if res := Check(ctx, avail, dst, params.PageSize); !res.OK {
		return fmt.Errorf("repaired image %s still does not validate: %s: %w", dst, res, ErrPageSizeMismatch)
	}
	logrus.WithFields(logrus.Fields{
		"src": src,
		"dst": dst,
	}).Infof("repaired boot image to page size %d", params.PageSize)
	return nil
}

// EnsurePageSize validates the image at path and repairs it in place (via a
// fresh file that then replaces path) when the check fails. The corrected
// image is written next to the original first so a crash mid-repair never
// leaves a half-written artifact under the original name.
func EnsurePageSize(ctx context.Context, avail boottool.Availability, path string, params bootimg.Params) error {
	res := Check(ctx, avail, path, params.PageSize)
	if res.OK {
		return nil
	}
	logrus.Warnf("%s: %s, expected %d; repairing", path, res, params.PageSize)

	fixed := path + ".fixed"
	if err := Repair(ctx, avail, path, fixed, params); err != nil {
		return err
	}
	return os.Rename(fixed, path)
}
