package boottool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
)

// AssembleInput names the artifacts and header parameters for one boot image
// build. DeviceTree is optional; leave it empty when the kernel already has
// the DTB appended.
type AssembleInput struct {
	Kernel     string
	Ramdisk    string
	DeviceTree string
	Output     string
	Params     bootimg.Params
}

type assembleBackend struct {
	name string
	run  func(ctx context.Context, in AssembleInput) error
}

func assembleBackends(avail Availability) []assembleBackend {
	var backends []assembleBackend
	// mkbootimg first: it takes every parameter as a direct argument.
	if avail.Mkbootimg {
		backends = append(backends, assembleBackend{"mkbootimg", assembleMkbootimg})
	}
	// abootimg second: needs a synthesized config file and cannot take a
	// separate device tree.
	if avail.Abootimg {
		backends = append(backends, assembleBackend{"abootimg", assembleAbootimg})
	}
	backends = append(backends, assembleBackend{"native", assembleNative})
	return backends
}

// Assemble builds a boot image at in.Output using the first backend that
// succeeds. Every tier produces the same layout guarantee: kernel and
// ramdisk sections padded to the page-size boundary.
func Assemble(ctx context.Context, avail Availability, in AssembleInput) error {
	if err := checkAssembleInput(in); err != nil {
		return err
	}
	var attempted []string
	for _, b := range assembleBackends(avail) {
		attempted = append(attempted, b.name)
		err := b.run(ctx, in)
		if err == nil && usableFile(in.Output) {
			logrus.WithFields(logrus.Fields{
				"backend": b.name,
				"output":  in.Output,
			}).Debug("assembled boot image")
			return nil
		}
		if err == nil {
			err = errors.New("exited 0 but wrote no usable output")
		}
		logrus.WithField("backend", b.name).Debugf("assembly failed: %v", err)
		// A half-written output must not satisfy the next tier's
		// usableFile check.
		os.Remove(in.Output)
	}
	return fmt.Errorf("assembling %s: %w (attempted: %s)", in.Output, ErrAssemblyFailed, strings.Join(attempted, ", "))
}

func checkAssembleInput(in AssembleInput) error {
	if !usableFile(in.Kernel) {
		return fmt.Errorf("assembling %s: kernel %s missing or empty: %w", in.Output, in.Kernel, ErrAssemblyFailed)
	}
	if !usableFile(in.Ramdisk) {
		return fmt.Errorf("assembling %s: ramdisk %s missing or empty: %w", in.Output, in.Ramdisk, ErrAssemblyFailed)
	}
	if in.DeviceTree != "" && !usableFile(in.DeviceTree) {
		return fmt.Errorf("assembling %s: device tree %s missing or empty: %w", in.Output, in.DeviceTree, ErrAssemblyFailed)
	}
	return nil
}

func assembleMkbootimg(ctx context.Context, in AssembleInput) error {
	p := in.Params
	args := []string{
		"--kernel", in.Kernel,
		"--ramdisk", in.Ramdisk,
		"--pagesize", fmt.Sprint(p.PageSize),
		"--base", fmt.Sprintf("%#x", p.Base),
		"--kernel_offset", fmt.Sprintf("%#x", p.KernelOffset),
		"--ramdisk_offset", fmt.Sprintf("%#x", p.RamdiskOffset),
		"--second_offset", fmt.Sprintf("%#x", p.SecondOffset),
		"--tags_offset", fmt.Sprintf("%#x", p.TagsOffset),
		"--cmdline", p.Cmdline,
	}
	if in.DeviceTree != "" {
		args = append(args, "--dt", in.DeviceTree)
	}
	if p.Board != "" {
		args = append(args, "--board", p.Board)
	}
	args = append(args, "-o", in.Output)
	_, err := runTool(ctx, "", toolMkbootimg, args...)
	return err
}

func assembleAbootimg(ctx context.Context, in AssembleInput) error {
	kernel := in.Kernel
	kernelSize := fileSize(in.Kernel)

	// abootimg has no device tree argument; append the DTB to the kernel
	// the way the bootloader expects for the concatenated layout.
	if in.DeviceTree != "" {
		merged, err := concatFiles(in.Kernel, in.DeviceTree)
		if err != nil {
			return err
		}
		defer os.Remove(merged)
		kernel = merged
		kernelSize = fileSize(merged)
	}

	// Synthesize the bootimg.cfg that abootimg --create requires, sized to
	// hold header page plus padded sections.
	page := int(in.Params.PageSize)
	bootSize := page +
		bootimg.Align(kernelSize, page) +
		bootimg.Align(fileSize(in.Ramdisk), page)
	cfg, err := os.CreateTemp("", "retropack-bootimg-*.cfg")
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Name())
	if _, err := cfg.WriteString(formatBootCfg(in.Params, bootSize)); err != nil {
		cfg.Close()
		return err
	}
	if err := cfg.Close(); err != nil {
		return err
	}

	// abootimg refuses to overwrite an existing image.
	os.Remove(in.Output)
	_, err = runTool(ctx, "", toolAbootimg,
		"--create", in.Output,
		"-f", cfg.Name(),
		"-k", kernel,
		"-r", in.Ramdisk)
	return err
}

// assembleNative builds the image in-process. It needs no external tool and
// is the tier that guarantees a flashable artifact on any host.
func assembleNative(ctx context.Context, in AssembleInput) error {
	kernel, err := os.ReadFile(in.Kernel)
	if err != nil {
		return err
	}
	ramdisk, err := os.ReadFile(in.Ramdisk)
	if err != nil {
		return err
	}
	var dt []byte
	if in.DeviceTree != "" {
		if dt, err = os.ReadFile(in.DeviceTree); err != nil {
			return err
		}
	}
	img, err := bootimg.New(in.Params, kernel, ramdisk, nil, dt)
	if err != nil {
		return err
	}
	return img.WriteFile(in.Output)
}

func fileSize(path string) int {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return int(st.Size())
}

func concatFiles(paths ...string) (string, error) {
	out, err := os.CreateTemp("", "retropack-kernel-dt-")
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			out.Close()
			os.Remove(out.Name())
			return "", err
		}
		if _, err := out.Write(b); err != nil {
			out.Close()
			os.Remove(out.Name())
			return "", err
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}
