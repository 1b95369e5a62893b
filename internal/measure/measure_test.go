package measure

import (
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()
	f()
	w.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestInteractively(t *testing.T) {
	out := captureStdout(t, func() {
		done := Interactively("assembling")
		done(" (2.0 MB)")
	})
	if !strings.Contains(out, "[assembling: ") {
		t.Errorf("output %q does not repeat the status in the outcome line", out)
	}
	if !strings.Contains(out, "(2.0 MB)") {
		t.Errorf("output %q does not contain the fragment", out)
	}
}

// The outcome line must work for failures too, so it does not claim success.
func TestInteractivelyFailureFragment(t *testing.T) {
	out := captureStdout(t, func() {
		done := Interactively("assembling")
		done(" failed: no device tree")
	})
	if !strings.Contains(out, "failed: no device tree") {
		t.Errorf("output %q does not contain the failure fragment", out)
	}
	if strings.Contains(out, "done") {
		t.Errorf("output %q claims completion on a failure", out)
	}
}
