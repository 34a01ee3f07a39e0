// Package buildinfo exposes the values injected with -ldflags at build time.
package buildinfo

import (
	"fmt"
	"io"
	"os"
)

var (
	BuildVersion string
	BuildDate    string
	BuildCommit  string
)

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Version is the build version or "N/A".
func Version() string { return orNA(BuildVersion) }

// PrintBuildInfo writes the build banner to stdout.
func PrintBuildInfo() {
	WriteBuildInfo(os.Stdout)
}

// WriteBuildInfo writes the build banner to w.
func WriteBuildInfo(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(BuildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(BuildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(BuildCommit))
}
