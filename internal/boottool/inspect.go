package boottool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/retropack/tools/internal/bootimg"
)

// Info is the best-effort structural record of an existing boot image. Nil
// pointer fields mean the value could not be determined; callers must treat
// unknown as "does not match" rather than trusting the image.
type Info struct {
	PageSize *uint32
	Base     *uint32
	Board    string
	Cmdline  string
}

// Unknown reports whether nothing at all could be determined.
func (i Info) Unknown() bool {
	return i.PageSize == nil && i.Base == nil && i.Board == "" && i.Cmdline == ""
}

func (i Info) PageSizeString() string {
	if i.PageSize == nil {
		return "unknown"
	}
	return fmt.Sprint(*i.PageSize)
}

type inspectBackend struct {
	name string
	run  func(ctx context.Context, path string) (Info, error)
}

func inspectBackends(avail Availability) []inspectBackend {
	var backends []inspectBackend
	if avail.Abootimg {
		backends = append(backends, inspectBackend{"abootimg", inspectAbootimg})
	}
	if avail.Unpackbootimg {
		backends = append(backends, inspectBackend{"unpackbootimg", inspectUnpackbootimg})
	}
	backends = append(backends, inspectBackend{"native", inspectNative})
	return backends
}

// Inspect extracts header fields from the boot image at path. It never
// returns an error: if every backend fails, all fields are unknown and the
// caller substitutes defaults.
func Inspect(ctx context.Context, avail Availability, path string) Info {
	for _, b := range inspectBackends(avail) {
		info, err := b.run(ctx, path)
		if err != nil {
			logrus.WithField("backend", b.name).Debugf("inspection failed: %v", err)
			continue
		}
		if info.Unknown() {
			logrus.WithField("backend", b.name).Debug("inspection yielded no fields")
			continue
		}
		return info
	}
	logrus.WithField("image", path).Warn("no backend could inspect the image, treating all header fields as unknown")
	return Info{}
}

// runTool executes an external boot image tool and returns its combined
// output. A missing binary maps to ErrToolUnavailable so chains can fall
// through.
func runTool(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", name, ErrToolUnavailable)
		}
		return string(out), fmt.Errorf("%v: %v", cmd.Args, err)
	}
	return string(out), nil
}

func inspectAbootimg(ctx context.Context, path string) (Info, error) {
	out, err := runTool(ctx, "", toolAbootimg, "-i", path)
	if err != nil {
		return Info{}, err
	}
	return parseAbootimgInfo(out), nil
}

func parseAbootimgInfo(out string) Info {
	info := Info{PageSize: pageSizeFromOutput(out)}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "* cmdline"):
			if _, val, ok := strings.Cut(line, "="); ok {
				info.Cmdline = strings.TrimSpace(val)
			}
		case strings.HasPrefix(lower, "* boot name"):
			if _, val, ok := strings.Cut(line, "="); ok {
				info.Board = strings.Trim(strings.TrimSpace(val), `"`)
			}
		case strings.HasPrefix(lower, "kernel:"):
			if addr, ok := parseAddrToken(strings.TrimSpace(line[len("kernel:"):])); ok {
				base := addr - bootimg.DefaultKernelOffset
				info.Base = &base
			}
		}
	}
	return info
}

func inspectUnpackbootimg(ctx context.Context, path string) (Info, error) {
	// unpackbootimg always writes component files; send them to a scratch
	// directory so inspection has no side effects.
	dir, err := os.MkdirTemp("", "retropack-inspect-")
	if err != nil {
		return Info{}, err
	}
	defer os.RemoveAll(dir)

	out, err := runTool(ctx, "", toolUnpackbootimg, "-i", path, "-o", dir)
	if err != nil {
		return Info{}, err
	}
	return parseUnpackbootimgInfo(out), nil
}

func parseUnpackbootimgInfo(out string) Info {
	info := Info{PageSize: pageSizeFromOutput(out)}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "BOARD_KERNEL_CMDLINE"):
			info.Cmdline = strings.TrimSpace(strings.TrimPrefix(line, "BOARD_KERNEL_CMDLINE"))
		case strings.HasPrefix(line, "BOARD_KERNEL_BASE"):
			// Printed as bare hex, without the 0x prefix.
			if addr, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "BOARD_KERNEL_BASE")), 16, 32); err == nil {
				base := uint32(addr)
				info.Base = &base
			}
		case strings.HasPrefix(line, "BOARD_NAME"):
			info.Board = strings.TrimSpace(strings.TrimPrefix(line, "BOARD_NAME"))
		}
	}
	return info
}

func inspectNative(ctx context.Context, path string) (Info, error) {
	img, err := bootimg.ParseFile(path)
	if err != nil {
		return Info{}, err
	}
	base := img.Base()
	return Info{
		PageSize: &img.PageSize,
		Base:     &base,
		Board:    img.Board,
		Cmdline:  img.Cmdline,
	}, nil
}
