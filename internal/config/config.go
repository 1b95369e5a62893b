// Package config reads and writes the per-profile config.json that drives a
// boot image build.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/retropack/tools/internal/profileflag"
)

// Packaging modes: how the device tree blob travels in the image.
const (
	// ModeConcatenated appends the DTB to the kernel and stores the result
	// as the kernel section. The stock loaders of all built-in devices
	// expect this layout.
	ModeConcatenated = "concatenated"
	// ModeSeparateDTB stores the DTB in the image's dedicated device tree
	// section.
	ModeSeparateDTB = "separate-dtb"
)

type Struct struct {
	// Device selects the built-in (or overridden) device profile.
	Device string

	// PackagingMode is ModeConcatenated or ModeSeparateDTB; empty means
	// ModeConcatenated.
	PackagingMode string `json:",omitempty"`

	Kernel       string `json:",omitempty"` // bare kernel image (zImage/uImage)
	KernelWithDT string `json:",omitempty"` // kernel with DTB already appended
	DeviceTree   string `json:",omitempty"` // DTB file
	Ramdisk      string `json:",omitempty"` // pre-built gzip cpio, skips extraction
	StockImage   string `json:",omitempty"` // reference image to extract the ramdisk from

	// OutputDir holds build artifacts; defaults to out/ in the profile
	// directory.
	OutputDir string `json:",omitempty"`

	// DeviceProfiles points at a TOML file overriding built-in device
	// parameters.
	DeviceProfiles string `json:",omitempty"`

	// Header parameter overrides. Zero/empty means: use the device
	// profile's value.
	PageSize uint32 `json:",omitempty"`
	Base     uint32 `json:",omitempty"`
	Cmdline  string `json:",omitempty"`
	Board    string `json:",omitempty"`
}

func (c *Struct) PackagingModeOrDefault() string {
	if c.PackagingMode == "" {
		return ModeConcatenated
	}
	return c.PackagingMode
}

func (c *Struct) OutputDirOrDefault() string {
	if c.OutputDir == "" {
		return filepath.Join(ProfilePath(), "out")
	}
	return c.OutputDir
}

func ProfilePath() string {
	return filepath.Join(profileflag.ProfileDir(), profileflag.Profile())
}

func ReadFromFile() (*Struct, error) {
	configJSON := filepath.Join(ProfilePath(), "config.json")
	log.Printf("reading retropack config from %s", configJSON)
	b, err := os.ReadFile(configJSON)
	if err != nil {
		return nil, err
	}
	var cfg Struct
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteToFile persists the config atomically, creating the profile directory
// if needed.
func (c *Struct) WriteToFile() error {
	if err := os.MkdirAll(ProfilePath(), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(ProfilePath(), "config.json"), append(b, '\n'), 0644)
}
