package profileflag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
)

var (
	profile    string
	profileDir string
)

func RegisterPflags(fs *pflag.FlagSet) {
	def := os.Getenv("RETROPACK_PROFILE")
	if def == "" {
		def = "default"
	}
	fs.StringVarP(&profile,
		"profile",
		"p",
		def,
		`profile, identified by device slug or custom name`)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = fmt.Sprintf("os.UserHomeDir failed: %v", err)
	}
	fs.StringVar(&profileDir,
		"profile_dir",
		filepath.Join(homeDir, "retropack"),
		`directory containing one subdirectory per profile`)
}

func Profile() string {
	return profile
}

func ProfileDir() string {
	return profileDir
}
