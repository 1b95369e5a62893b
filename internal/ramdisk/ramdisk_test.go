package ramdisk

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/retropack/tools/internal/bootimg"
	"github.com/retropack/tools/internal/boottool"
)

func readGzipCpio(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	cr := cpio.NewReader(zr)

	files := make(map[string][]byte)
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(cr)
		require.NoError(t, err)
		files[hdr.Name] = b
	}
	return files
}

func TestSynthesize(t *testing.T) {
	out := filepath.Join(t.TempDir(), "initrd.gz")
	require.NoError(t, Synthesize(out))

	st, err := os.Stat(out)
	require.NoError(t, err)
	require.Greater(t, st.Size(), int64(0))

	files := readGzipCpio(t, out)
	init, ok := files["init"]
	require.True(t, ok, "synthesized ramdisk has no init")
	require.True(t, strings.HasPrefix(string(init), "#!/bin/sh"))
	require.Contains(t, string(init), "switch_root")
	require.Contains(t, files, "proc")
	require.Contains(t, files, "mnt/root")
}

// With zero boot image tools installed and no reference image, extraction
// must still produce a non-empty gzip cpio archive.
func TestExtractDegradesToSynthesis(t *testing.T) {
	out := filepath.Join(t.TempDir(), "initrd.gz")
	require.NoError(t, Extract(context.Background(), boottool.Availability{}, "", out))
	files := readGzipCpio(t, out)
	require.Contains(t, files, "init")
}

func TestExtractIsMemoized(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "initrd.gz")
	require.NoError(t, os.WriteFile(out, []byte("sentinel"), 0644))

	// The reference image does not even exist; the cached artifact wins.
	require.NoError(t, Extract(context.Background(), boottool.Availability{}, filepath.Join(dir, "missing.img"), out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []byte("sentinel"), b)
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write(b)
	require.NoError(t, err)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func writeRefImage(t *testing.T, dir string, ramdisk []byte) string {
	t.Helper()
	img, err := bootimg.New(bootimg.Params{
		PageSize:      2048,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		TagsOffset:    0x00000100,
	}, []byte("kernel"), ramdisk, nil, nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "stock.img")
	require.NoError(t, img.WriteFile(path))
	return path
}

func TestExtractFromReferenceImage(t *testing.T) {
	payload := []byte("070701 fake cpio payload for testing")

	t.Run("gzip stays as-is", func(t *testing.T) {
		dir := t.TempDir()
		gz := gzipBytes(t, payload)
		ref := writeRefImage(t, dir, gz)
		out := filepath.Join(dir, "initrd.gz")
		require.NoError(t, Extract(context.Background(), boottool.Availability{}, ref, out))
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, gz, got)
	})

	t.Run("xz is recompressed to gzip", func(t *testing.T) {
		dir := t.TempDir()
		ref := writeRefImage(t, dir, xzBytes(t, payload))
		out := filepath.Join(dir, "initrd.gz")
		require.NoError(t, Extract(context.Background(), boottool.Availability{}, ref, out))

		b, err := os.ReadFile(out)
		require.NoError(t, err)
		require.Equal(t, bootimg.FormatGzip, bootimg.DetectFormat(b))
		zr, err := gzip.NewReader(bytes.NewReader(b))
		require.NoError(t, err)
		plain, err := io.ReadAll(zr)
		require.NoError(t, err)
		require.Equal(t, payload, plain)
	})
}
