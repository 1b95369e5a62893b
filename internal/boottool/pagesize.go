package boottool

import (
	"bufio"
	"strconv"
	"strings"
)

// parseSizeToken parses a page size token as printed by the various
// inspection tools. Tool versions disagree on the format: some print
// decimal ("2048"), some hex ("0x800"), some with trailing punctuation.
func parseSizeToken(s string) (uint32, bool) {
	s = strings.TrimFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ')' || r == '(' || r == '"'
	})
	if s == "" {
		return 0, false
	}
	// base 0 accepts both decimal and 0x-prefixed hex.
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint32(v), true
}

// pageSizeFromOutput extracts the page size from inspection tool output.
// The primary match looks for a "page size"/"pagesize" label; if that fails,
// a secondary heuristic scans every line mentioning "page" for the first
// bare integer token. Returns nil when neither yields a value.
func pageSizeFromOutput(out string) *uint32 {
	// Primary: a labeled value, e.g. "  page size  = 2048 bytes" (abootimg)
	// or "BOARD_PAGE_SIZE 2048" (unpackbootimg).
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		lower := strings.ToLower(line)
		idx := strings.Index(lower, "page size")
		label := "page size"
		if idx == -1 {
			idx = strings.Index(lower, "pagesize")
			label = "pagesize"
		}
		if idx == -1 {
			idx = strings.Index(lower, "page_size")
			label = "page_size"
		}
		if idx == -1 {
			continue
		}
		rest := line[idx+len(label):]
		for _, tok := range strings.Fields(rest) {
			tok = strings.TrimPrefix(tok, "=")
			tok = strings.TrimPrefix(tok, ":")
			if v, ok := parseSizeToken(tok); ok {
				return &v
			}
		}
	}

	// Secondary heuristic: first integer token on any line mentioning
	// "page".
	sc = bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(strings.ToLower(line), "page") {
			continue
		}
		for _, tok := range strings.Fields(line) {
			if v, ok := parseSizeToken(tok); ok {
				return &v
			}
		}
	}
	return nil
}

// parseAddrToken parses a load address token ("0x80008000" or bare hex as
// printed by unpackbootimg's *-base output).
func parseAddrToken(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint32(v), true
	}
	// unpackbootimg prints bare hex without the 0x prefix.
	if v, err := strconv.ParseUint(s, 16, 32); err == nil {
		return uint32(v), true
	}
	return 0, false
}
