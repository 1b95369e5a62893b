// Package ramdisk obtains the initial ramdisk for a boot image build: either
// extracted from a reference (stock) boot image, or synthesized as a minimal
// placeholder so the build can finish on hosts with no boot image tooling
// and no stock image at hand.
package ramdisk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
)

// initScript is the init of the synthesized ramdisk. It mounts the core
// pseudo filesystems, looks for a usable root partition and switches to it;
// if none is found the device drops to a shell instead of hanging, so the
// failure is at least diagnosable on the console.
const initScript = `#!/bin/sh
mount -t proc proc /proc
mount -t sysfs sysfs /sys
mount -t devtmpfs devtmpfs /dev

for dev in /dev/mmcblk0p2 /dev/mmcblk0p3 /dev/mmcblk1p2 /dev/mmcblk1p3; do
	if [ -b "$dev" ]; then
		if mount "$dev" /mnt/root 2>/dev/null; then
			if [ -x /mnt/root/sbin/init ] || [ -x /mnt/root/init ]; then
				umount /proc /sys /dev 2>/dev/null
				exec switch_root /mnt/root /sbin/init
			fi
			umount /mnt/root
		fi
	fi
done

echo "retropack: no root partition found, dropping to shell"
exec /bin/sh
`

// Extract produces a gzip-compressed cpio archive at outPath. An already
// existing artifact is reused as-is: the ramdisk is built once per output
// directory, not content-addressed. When no reference image is given or
// every extraction backend fails, a minimal ramdisk is synthesized instead.
func Extract(ctx context.Context, avail boottool.Availability, refImage, outPath string) error {
	if st, err := os.Stat(outPath); err == nil && st.Size() > 0 {
		logrus.WithField("path", outPath).Debug("ramdisk already present, skipping extraction")
		return nil
	}

	if refImage == "" {
		logrus.Info("no reference boot image configured, synthesizing a minimal ramdisk")
		return Synthesize(outPath)
	}

	dir, err := os.MkdirTemp("", "retropack-ramdisk-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	comp, err := boottool.ExtractComponents(ctx, avail, refImage, dir)
	if err != nil {
		logrus.Warnf("could not extract ramdisk from %s (%v), synthesizing a minimal one; the device will drop to a shell instead of booting the stock userspace", refImage, err)
		return Synthesize(outPath)
	}

	b, err := os.ReadFile(comp.RamdiskPath)
	if err != nil {
		return err
	}
	out, err := normalizeGzip(b)
	if err != nil {
		return fmt.Errorf("normalizing ramdisk from %s: %v", refImage, err)
	}
	return os.WriteFile(outPath, out, 0644)
}

// normalizeGzip turns a ramdisk payload of whatever compression the stock
// image used into the canonical gzip form.
func normalizeGzip(b []byte) ([]byte, error) {
	switch f := bootimg.DetectFormat(b); f {
	case bootimg.FormatGzip:
		return b, nil
	case bootimg.FormatXZ, bootimg.FormatCpio:
		r, err := bootimg.NewDecompressor(bytes.NewReader(b), f)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := io.Copy(zw, r); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unrecognized ramdisk format")
	}
}

// Synthesize writes a minimal gzip cpio ramdisk to outPath, containing only
// the init script and the mount points it needs.
func Synthesize(outPath string) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	cw := cpio.NewWriter(zw)

	for _, dir := range []string{"dev", "proc", "sys", "mnt", "mnt/root"} {
		if err := cw.WriteHeader(&cpio.Header{
			Name: dir,
			Mode: cpio.TypeDir | 0755,
		}); err != nil {
			return err
		}
	}

	if err := cw.WriteHeader(&cpio.Header{
		Name: "init",
		Mode: cpio.TypeReg | 0755,
		Size: int64(len(initScript)),
	}); err != nil {
		return err
	}
	if _, err := cw.Write([]byte(initScript)); err != nil {
		return err
	}

	if err := cw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(outPath, buf.Bytes(), 0644)
}
