// Package deviceprofile holds the per-device boot image header parameters.
// Each supported handheld is identified by a slug; an optional TOML file can
// override individual fields or define entirely new devices without a
// rebuild.
package deviceprofile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/retropack/tools/internal/bootimg"
)

type Profile struct {
	PageSize      uint32 `toml:"page_size"`
	Base          uint32 `toml:"base"`
	KernelOffset  uint32 `toml:"kernel_offset"`
	RamdiskOffset uint32 `toml:"ramdisk_offset"`
	SecondOffset  uint32 `toml:"second_offset"`
	TagsOffset    uint32 `toml:"tags_offset"`
	Board         string `toml:"board"`
	Cmdline       string `toml:"cmdline"`
}

// Params converts the profile into assembly parameters.
func (p Profile) Params() bootimg.Params {
	return bootimg.Params{
		PageSize:      p.PageSize,
		Base:          p.Base,
		KernelOffset:  p.KernelOffset,
		RamdiskOffset: p.RamdiskOffset,
		SecondOffset:  p.SecondOffset,
		TagsOffset:    p.TagsOffset,
		Board:         p.Board,
		Cmdline:       p.Cmdline,
	}
}

// builtin covers the devices we have verified hardware for. All of them boot
// from an SD card on an Ingenic-style SoC and mandate 2048-byte pages.
var builtin = map[string]Profile{
	"rp2": {
		PageSize:      2048,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
		Board:         "rp2",
		Cmdline:       "console=ttyS0,115200 root=/dev/mmcblk0p2 rootwait",
	},
	"rp2-plus": {
		PageSize:      2048,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
		Board:         "rp2plus",
		Cmdline:       "console=ttyS0,115200 root=/dev/mmcblk1p2 rootwait",
	},
	"generic": {
		PageSize:      2048,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
	},
}

// Slugs returns the built-in device slugs, sorted.
func Slugs() []string {
	slugs := make([]string, 0, len(builtin))
	for s := range builtin {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}

// Lookup resolves slug to a profile. When overridesPath is non-empty, a TOML
// table named after the slug overrides individual fields of the built-in
// profile (or defines a device we do not know about). Fields absent from the
// override keep their built-in values.
func Lookup(slug, overridesPath string) (Profile, error) {
	p, ok := builtin[slug]
	if overridesPath != "" {
		var file map[string]toml.Primitive
		md, err := toml.DecodeFile(overridesPath, &file)
		if err != nil {
			return Profile{}, fmt.Errorf("device profile overrides: %v", err)
		}
		if prim, defined := file[slug]; defined {
			if err := md.PrimitiveDecode(prim, &p); err != nil {
				return Profile{}, fmt.Errorf("device profile overrides: [%s]: %v", slug, err)
			}
			ok = true
		}
	}
	if !ok {
		return Profile{}, fmt.Errorf("unknown device %q (built-in devices: %s)", slug, strings.Join(Slugs(), ", "))
	}
	return withDefaults(p), nil
}

// withDefaults fills fields an override file may leave at zero. The page
// size in particular must never end up 0, that is how images get assembled
// with a page size the loader rejects.
func withDefaults(p Profile) Profile {
	if p.PageSize == 0 {
		p.PageSize = bootimg.DefaultPageSize
	}
	if p.Base == 0 {
		p.Base = 0x80000000
	}
	if p.KernelOffset == 0 {
		p.KernelOffset = bootimg.DefaultKernelOffset
	}
	if p.RamdiskOffset == 0 {
		p.RamdiskOffset = 0x01000000
	}
	if p.SecondOffset == 0 {
		p.SecondOffset = 0x00f00000
	}
	if p.TagsOffset == 0 {
		p.TagsOffset = 0x00000100
	}
	return p
}
