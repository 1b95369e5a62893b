package boottool

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/retropack/tools/internal/bootimg"
)

// abootimg drives image creation through a textual bootimg.cfg. We both
// synthesize these (assembly) and parse them back (extraction/repair).

func formatBootCfg(p bootimg.Params, bootSize int) string {
	var sb strings.Builder
	if bootSize > 0 {
		fmt.Fprintf(&sb, "bootsize = %#x\n", bootSize)
	}
	fmt.Fprintf(&sb, "pagesize = %#x\n", p.PageSize)
	fmt.Fprintf(&sb, "kerneladdr = %#x\n", p.Base+p.KernelOffset)
	fmt.Fprintf(&sb, "ramdiskaddr = %#x\n", p.Base+p.RamdiskOffset)
	fmt.Fprintf(&sb, "secondaddr = %#x\n", p.Base+p.SecondOffset)
	fmt.Fprintf(&sb, "tagsaddr = %#x\n", p.Base+p.TagsOffset)
	fmt.Fprintf(&sb, "name = %s\n", p.Board)
	fmt.Fprintf(&sb, "cmdline = %s\n", p.Cmdline)
	return sb.String()
}

func parseBootCfg(b []byte) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		val = strings.TrimSpace(val)
		switch key {
		case "pagesize":
			if v, ok := parseSizeToken(val); ok {
				info.PageSize = &v
			}
		case "kerneladdr":
			if addr, ok := parseAddrToken(val); ok {
				base := addr - bootimg.DefaultKernelOffset
				info.Base = &base
			}
		case "name":
			info.Board = val
		case "cmdline":
			info.Cmdline = val
		}
	}
	return info
}
