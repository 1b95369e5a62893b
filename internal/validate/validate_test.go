package validate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
)

var none = boottool.Availability{}

func params(pageSize uint32) bootimg.Params {
	return bootimg.Params{
		PageSize:      pageSize,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
		Board:         "rp2",
		Cmdline:       "console=ttyS0,115200 rootwait",
	}
}

func writeImage(t *testing.T, dir string, pageSize uint32) string {
	t.Helper()
	img, err := bootimg.New(params(pageSize),
		bytes.Repeat([]byte{0xaa}, 3000),
		bytes.Repeat([]byte{0xbb}, 700),
		nil, nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "boot.img")
	require.NoError(t, img.WriteFile(path))
	return path
}

func TestCheckPass(t *testing.T) {
	path := writeImage(t, t.TempDir(), 2048)
	res := Check(context.Background(), none, path, 2048)
	require.True(t, res.OK)
	require.NotNil(t, res.Detected)
	require.EqualValues(t, 2048, *res.Detected)
}

func TestCheckWrongPageSize(t *testing.T) {
	path := writeImage(t, t.TempDir(), 4096)
	res := Check(context.Background(), none, path, 2048)
	require.False(t, res.OK)
	require.NotNil(t, res.Detected)
	require.EqualValues(t, 4096, *res.Detected)
}

func TestCheckUnknownFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.img")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{7}, 8192), 0644))
	res := Check(context.Background(), none, path, 2048)
	require.False(t, res.OK)
	require.Nil(t, res.Detected)
}

// Repairing an image assembled with the wrong page size must yield an image
// that validates at 2048.
func TestRoundTripRepair(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bad := writeImage(t, dir, 4096)

	fixed := filepath.Join(dir, "boot-fixed.img")
	require.NoError(t, Repair(ctx, none, bad, fixed, params(2048)))

	res := Check(ctx, none, fixed, 2048)
	require.True(t, res.OK)
	require.EqualValues(t, 2048, *res.Detected)

	// Same payloads, new framing.
	orig, err := bootimg.ParseFile(bad)
	require.NoError(t, err)
	repaired, err := bootimg.ParseFile(fixed)
	require.NoError(t, err)
	require.Equal(t, orig.Kernel, repaired.Kernel)
	require.Equal(t, orig.Ramdisk, repaired.Ramdisk)

	// The source is left untouched for inspection.
	stillBad, err := bootimg.ParseFile(bad)
	require.NoError(t, err)
	require.EqualValues(t, 4096, stillBad.PageSize)
}

func TestRepairCarriesHeaderFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bad := writeImage(t, dir, 4096)

	// Caller only pins the page size; cmdline/board/base come from the
	// extracted image.
	fixed := filepath.Join(dir, "boot-fixed.img")
	p := bootimg.Params{PageSize: 2048, KernelOffset: 0x00008000, RamdiskOffset: 0x01000000, TagsOffset: 0x00000100}
	require.NoError(t, Repair(ctx, none, bad, fixed, p))

	repaired, err := bootimg.ParseFile(fixed)
	require.NoError(t, err)
	require.Equal(t, "rp2", repaired.Board)
	require.Equal(t, "console=ttyS0,115200 rootwait", repaired.Cmdline)
	require.EqualValues(t, 0x80008000, repaired.KernelAddr)
}

func TestRepairUnextractableIsFatal(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "garbage.img")
	require.NoError(t, os.WriteFile(bad, bytes.Repeat([]byte{7}, 8192), 0644))
	err := Repair(context.Background(), none, bad, filepath.Join(dir, "out.img"), params(2048))
	require.Error(t, err)
}

// Validation of an already-correct image must be idempotent: no file is
// rewritten.
func TestEnsurePageSizeIdempotent(t *testing.T) {
	ctx := context.Background()
	path := writeImage(t, t.TempDir(), 2048)

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	st1, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, EnsurePageSize(ctx, none, path, params(2048)))
	require.NoError(t, EnsurePageSize(ctx, none, path, params(2048)))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
	st2, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, st1.ModTime(), st2.ModTime())
	_, err = os.Stat(path + ".fixed")
	require.True(t, os.IsNotExist(err))
}

func TestEnsurePageSizeRepairsInPlace(t *testing.T) {
	ctx := context.Background()
	path := writeImage(t, t.TempDir(), 4096)
	require.NoError(t, EnsurePageSize(ctx, none, path, params(2048)))

	res := Check(ctx, none, path, 2048)
	require.True(t, res.OK)
}
