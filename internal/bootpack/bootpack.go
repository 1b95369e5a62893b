// Package bootpack orchestrates a complete boot image build: it obtains the
// shared ramdisk, builds both packaging variants, validates and repairs them
// against the device's mandated page size and publishes the selected variant
// as the canonical boot.img the flashing transport picks up.
package bootpack

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
	"github.com/retropack/tools/internal/config"
	"github.com/retropack/tools/internal/deviceprofile"
	"github.com/retropack/tools/internal/measure"
	"github.com/retropack/tools/internal/ramdisk"
	"github.com/retropack/tools/internal/validate"
	"github.com/retropack/tools/internal/version"
)

// Artifact names within the output directory. Variant images stay around
// after the build so a failed or mis-selected build can be inspected.
const (
	ramdiskArtifact  = "initrd.gz"
	mergedKernel     = "kernel-dt"
	concatArtifact   = "boot-catdt.img"
	separateArtifact = "boot-dtsep.img"
	directArtifact   = "boot-direct.img"
	canonicalName    = "boot.img"
)

type Pack struct {
	Cfg   *config.Struct
	Avail boottool.Availability

	// Output overrides the canonical image path. Empty means boot.img in
	// the output directory.
	Output string
}

// Params resolves the device profile and applies the config's header
// parameter overrides on top.
func (p *Pack) Params() (bootimg.Params, error) {
	device := p.Cfg.Device
	if device == "" {
		device = "generic"
	}
	prof, err := deviceprofile.Lookup(device, p.Cfg.DeviceProfiles)
	if err != nil {
		return bootimg.Params{}, err
	}
	params := prof.Params()
	if p.Cfg.PageSize != 0 {
		params.PageSize = p.Cfg.PageSize
	}
	if p.Cfg.Base != 0 {
		params.Base = p.Cfg.Base
	}
	if p.Cfg.Cmdline != "" {
		params.Cmdline = p.Cfg.Cmdline
	}
	if p.Cfg.Board != "" {
		params.Board = p.Cfg.Board
	}
	return params, nil
}

// Ramdisk returns the path of the shared ramdisk artifact, extracting or
// synthesizing it first if it does not exist yet.
func (p *Pack) Ramdisk(ctx context.Context, outDir string) (string, error) {
	if p.Cfg.Ramdisk != "" {
		return p.Cfg.Ramdisk, nil
	}
	path := filepath.Join(outDir, ramdiskArtifact)
	done := measure.Interactively("obtaining ramdisk")
	if err := ramdisk.Extract(ctx, p.Avail, p.Cfg.StockImage, path); err != nil {
		return "", err
	}
	done(sizeFragment(path))
	return path, nil
}

// Run builds the canonical boot image and returns its path.
func (p *Pack) Run(ctx context.Context) (string, error) {
	cfg := p.Cfg
	if cfg.Kernel == "" && cfg.KernelWithDT == "" {
		return "", fmt.Errorf("no kernel configured (set Kernel or KernelWithDT in config.json)")
	}
	mode := cfg.PackagingModeOrDefault()
	if mode != config.ModeConcatenated && mode != config.ModeSeparateDTB {
		return "", fmt.Errorf("unknown packaging mode %q (want %q or %q)", mode, config.ModeConcatenated, config.ModeSeparateDTB)
	}

	params, err := p.Params()
	if err != nil {
		return "", err
	}

	outDir := cfg.OutputDirOrDefault()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	canonical := p.Output
	if canonical == "" {
		canonical = filepath.Join(outDir, canonicalName)
	}

	fmt.Printf("retropack packer %s\n\n", version.ReadBrief())
	fmt.Printf("Packing boot image for %q (page size %d, %s)\n\n",
		cfg.Device, params.PageSize, p.Avail)
	if p.Avail.None() {
		logrus.Debug("no external boot image tools installed, every backend chain runs the native implementation")
	}

	ramdiskPath, err := p.Ramdisk(ctx, outDir)
	if err != nil {
		return "", err
	}

	// Both variants are built regardless of the selected mode, so that
	// switching modes later (or flashing the other variant by hand when a
	// device turns out to want it) needs no rebuild.
	variants := map[string]string{
		config.ModeConcatenated: filepath.Join(outDir, concatArtifact),
		config.ModeSeparateDTB:  filepath.Join(outDir, separateArtifact),
	}
	errs := map[string]error{
		config.ModeConcatenated: p.buildVariant(ctx, config.ModeConcatenated, outDir, variants[config.ModeConcatenated], ramdiskPath, params),
		config.ModeSeparateDTB:  p.buildVariant(ctx, config.ModeSeparateDTB, outDir, variants[config.ModeSeparateDTB], ramdiskPath, params),
	}
	for m, err := range errs {
		if err != nil {
			logrus.Warnf("%s variant not built: %v", m, err)
		}
	}

	selected := variants[mode]
	if errs[mode] != nil || !usableFile(selected) {
		// Last resort, independent of the selected mode: any flashable
		// image beats none. Uses whatever kernel is available, the
		// combined kernel+DTB preferred, the raw kernel otherwise.
		logrus.Warnf("%s variant unavailable, attempting direct assembly", mode)
		kernel, err := p.concatenatedKernel(outDir)
		if err != nil {
			return "", fmt.Errorf("could not produce a boot image: %v", err)
		}
		selected = filepath.Join(outDir, directArtifact)
		if err := boottool.Assemble(ctx, p.Avail, boottool.AssembleInput{
			Kernel:  kernel,
			Ramdisk: ramdiskPath,
			Output:  selected,
			Params:  params,
		}); err != nil {
			return "", fmt.Errorf("could not produce a boot image: %v", err)
		}
	}

	if err := atomicCopy(selected, canonical); err != nil {
		return "", err
	}

	// Final gate: the canonical image must inspect cleanly and validate at
	// the device's page size, no matter which path produced it.
	info := boottool.Inspect(ctx, p.Avail, canonical)
	if res := validate.Check(ctx, p.Avail, canonical, params.PageSize); !res.OK {
		return "", fmt.Errorf("final validation of %s failed: %s: %w", canonical, res, validate.ErrPageSizeMismatch)
	}

	st, err := os.Stat(canonical)
	if err != nil {
		return "", err
	}
	fmt.Printf("\nPacked %s (%s, page size %s)\n", canonical, humanize.Bytes(uint64(st.Size())), info.PageSizeString())
	return canonical, nil
}

// buildVariant assembles one packaging variant and brings it to the mandated
// page size, repairing if an external backend ignored the request.
func (p *Pack) buildVariant(ctx context.Context, mode, outDir, output, ramdiskPath string, params bootimg.Params) error {
	done := measure.Interactively("assembling " + mode)
	if err := p.assembleMode(ctx, mode, outDir, output, ramdiskPath, params); err != nil {
		done(fmt.Sprintf(" failed: %v", err))
		return err
	}
	if err := validate.EnsurePageSize(ctx, p.Avail, output, params); err != nil {
		done(fmt.Sprintf(" failed: %v", err))
		return err
	}
	done(sizeFragment(output))
	return nil
}

func (p *Pack) assembleMode(ctx context.Context, mode, outDir, output, ramdiskPath string, params bootimg.Params) error {
	in := boottool.AssembleInput{
		Ramdisk: ramdiskPath,
		Output:  output,
		Params:  params,
	}
	switch mode {
	case config.ModeConcatenated:
		kernel, err := p.concatenatedKernel(outDir)
		if err != nil {
			return err
		}
		in.Kernel = kernel
	case config.ModeSeparateDTB:
		if p.Cfg.DeviceTree == "" {
			return fmt.Errorf("%s packaging requires a DeviceTree in config.json", mode)
		}
		if p.Cfg.Kernel == "" {
			return fmt.Errorf("%s packaging requires a bare Kernel in config.json", mode)
		}
		in.Kernel = p.Cfg.Kernel
		in.DeviceTree = p.Cfg.DeviceTree
	}
	return boottool.Assemble(ctx, p.Avail, in)
}

// concatenatedKernel returns the kernel-plus-DTB blob for the concatenated
// variant: the pre-merged file when configured, otherwise kernel and DTB are
// merged into the output directory. Without a DTB the bare kernel is used
// as-is (some devices ship the DTB built into the kernel).
func (p *Pack) concatenatedKernel(outDir string) (string, error) {
	if p.Cfg.KernelWithDT != "" {
		return p.Cfg.KernelWithDT, nil
	}
	if p.Cfg.DeviceTree == "" {
		return p.Cfg.Kernel, nil
	}
	merged := filepath.Join(outDir, mergedKernel)
	if err := mergeFiles(merged, p.Cfg.Kernel, p.Cfg.DeviceTree); err != nil {
		return "", fmt.Errorf("merging kernel and device tree: %v", err)
	}
	return merged, nil
}

func mergeFiles(dst string, srcs ...string) error {
	out, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return err
		}
	}
	return out.CloseAtomicallyReplace()
}

func atomicCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

func usableFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}

func sizeFragment(path string) string {
	st, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", humanize.Bytes(uint64(st.Size())))
}
