package boottool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
)

// Components are the pieces of an unpacked boot image, written as files
// under Dir. DeviceTreePath is empty when the image carries no separate
// device tree section.
type Components struct {
	Dir            string
	KernelPath     string
	RamdiskPath    string
	DeviceTreePath string
	Info           Info
}

type extractBackend struct {
	name string
	run  func(ctx context.Context, imgPath, dir string) (*Components, error)
}

func extractBackends(avail Availability) []extractBackend {
	var backends []extractBackend
	if avail.Abootimg {
		backends = append(backends, extractBackend{"abootimg", extractAbootimg})
	}
	if avail.Unpackbootimg {
		backends = append(backends, extractBackend{"unpackbootimg", extractUnpackbootimg})
	}
	backends = append(backends, extractBackend{"native", extractNative})
	return backends
}

// ExtractComponents unpacks the boot image at imgPath into dir using the
// first backend that produces usable output. This is the hard floor of the
// repair path: when it fails, the image cannot be fixed.
func ExtractComponents(ctx context.Context, avail Availability, imgPath, dir string) (*Components, error) {
	var attempted []string
	for _, b := range extractBackends(avail) {
		attempted = append(attempted, b.name)
		comp, err := b.run(ctx, imgPath, dir)
		if err != nil {
			logrus.WithField("backend", b.name).Debugf("extraction failed: %v", err)
			continue
		}
		return comp, nil
	}
	return nil, fmt.Errorf("extracting %s: %w (attempted: %s)", imgPath, ErrExtractionFailed, strings.Join(attempted, ", "))
}

// usableFile reports whether a backend actually produced output at path.
// Tools have been observed to exit 0 while writing nothing.
func usableFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}

func extractAbootimg(ctx context.Context, imgPath, dir string) (*Components, error) {
	abs, err := filepath.Abs(imgPath)
	if err != nil {
		return nil, err
	}
	// abootimg -x writes bootimg.cfg, zImage and initrd.img into the
	// working directory.
	if _, err := runTool(ctx, dir, toolAbootimg, "-x", abs); err != nil {
		return nil, err
	}
	comp := &Components{
		Dir:         dir,
		KernelPath:  filepath.Join(dir, "zImage"),
		RamdiskPath: filepath.Join(dir, "initrd.img"),
	}
	if !usableFile(comp.KernelPath) || !usableFile(comp.RamdiskPath) {
		return nil, fmt.Errorf("abootimg -x: %w", ErrExtractionFailed)
	}
	if cfg, err := os.ReadFile(filepath.Join(dir, "bootimg.cfg")); err == nil {
		comp.Info = parseBootCfg(cfg)
	}
	return comp, nil
}

func extractUnpackbootimg(ctx context.Context, imgPath, dir string) (*Components, error) {
	out, err := runTool(ctx, "", toolUnpackbootimg, "-i", imgPath, "-o", dir)
	if err != nil {
		return nil, err
	}
	// Output files are prefixed with the image's base name, e.g.
	// boot.img-kernel, boot.img-ramdisk.gz.
	prefix := filepath.Join(dir, filepath.Base(imgPath))
	comp := &Components{
		Dir:         dir,
		KernelPath:  prefix + "-kernel",
		RamdiskPath: prefix + "-ramdisk.gz",
		Info:        parseUnpackbootimgInfo(out),
	}
	if !usableFile(comp.KernelPath) || !usableFile(comp.RamdiskPath) {
		return nil, fmt.Errorf("unpackbootimg: %w", ErrExtractionFailed)
	}
	if usableFile(prefix + "-dt") {
		comp.DeviceTreePath = prefix + "-dt"
	}
	if comp.Info.PageSize == nil {
		// Older versions only write the value to a file, not stdout.
		if b, err := os.ReadFile(prefix + "-pagesize"); err == nil {
			if v, ok := parseSizeToken(strings.TrimSpace(string(b))); ok {
				comp.Info.PageSize = &v
			}
		}
	}
	return comp, nil
}

func extractNative(ctx context.Context, imgPath, dir string) (*Components, error) {
	img, err := bootimg.ParseFile(imgPath)
	if err != nil {
		return nil, err
	}
	comp := &Components{
		Dir:         dir,
		KernelPath:  filepath.Join(dir, "kernel"),
		RamdiskPath: filepath.Join(dir, "ramdisk"),
	}
	if err := os.WriteFile(comp.KernelPath, img.Kernel, 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(comp.RamdiskPath, img.Ramdisk, 0644); err != nil {
		return nil, err
	}
	if len(img.DeviceTree) > 0 {
		comp.DeviceTreePath = filepath.Join(dir, "dt")
		if err := os.WriteFile(comp.DeviceTreePath, img.DeviceTree, 0644); err != nil {
			return nil, err
		}
	}
	base := img.Base()
	comp.Info = Info{
		PageSize: &img.PageSize,
		Base:     &base,
		Board:    img.Board,
		Cmdline:  img.Cmdline,
	}
	return comp, nil
}
