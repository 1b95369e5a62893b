package deviceprofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookupBuiltin(t *testing.T) {
	p, err := Lookup("rp2", "")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.PageSize, uint32(2048); got != want {
		t.Errorf("rp2 page size: got %d, want %d", got, want)
	}
	if got, want := p.Board, "rp2"; got != want {
		t.Errorf("rp2 board: got %q, want %q", got, want)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("doesnotexist", ""); err == nil {
		t.Fatal("Lookup(doesnotexist) unexpectedly succeeded")
	}
}

func TestLookupOverridesSingleField(t *testing.T) {
	dir := t.TempDir()
	overrides := filepath.Join(dir, "devices.toml")
	if err := os.WriteFile(overrides, []byte(`
[rp2]
cmdline = "console=ttyS0,115200 root=/dev/mmcblk0p3 rootwait"
`), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Lookup("rp2", overrides)
	if err != nil {
		t.Fatal(err)
	}
	want, err := Lookup("rp2", "")
	if err != nil {
		t.Fatal(err)
	}
	want.Cmdline = "console=ttyS0,115200 root=/dev/mmcblk0p3 rootwait"
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("unexpected profile after override: diff (-want +got):\n%s", diff)
	}
}

func TestLookupOverridesNewDevice(t *testing.T) {
	dir := t.TempDir()
	overrides := filepath.Join(dir, "devices.toml")
	if err := os.WriteFile(overrides, []byte(`
[prototype]
page_size = 4096
board = "proto1"
`), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Lookup("prototype", overrides)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.PageSize, uint32(4096); got != want {
		t.Errorf("page size: got %d, want %d", got, want)
	}
	// Unspecified fields are filled with defaults.
	if got, want := p.KernelOffset, uint32(0x00008000); got != want {
		t.Errorf("kernel offset: got %#x, want %#x", got, want)
	}
	if got, want := p.Base, uint32(0x80000000); got != want {
		t.Errorf("base: got %#x, want %#x", got, want)
	}
}
