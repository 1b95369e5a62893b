package measure

import (
	"fmt"
	"strings"
	"time"
)

// Interactively prints a status line for a build step and returns a done
// func that replaces it with the elapsed time, plus an outcome fragment
// (e.g. the resulting artifact size, or a failure message).
func Interactively(status string) (done func(fragment string)) {
	fmt.Print("[" + status + "]")
	start := time.Now()
	return func(fragment string) {
		fmt.Printf("\r[%s: %.2fs]%s%s\n",
			status,
			time.Since(start).Seconds(),
			fragment,
			strings.Repeat(" ", len(status)))
	}
}
