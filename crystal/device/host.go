package device

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Host describes the processor that executes kernels.
type Host struct {
	// Arch is runtime.GOARCH.
	Arch string

	// Features lists the vector extensions detected at startup, for example
	// "avx2" or "neon". Empty when none are detected or detection is not
	// implemented for Arch.
	Features []string

	// CPUs is runtime.NumCPU.
	CPUs int
}

// String returns a one-line description such as "amd64 (avx2, fma), 16 CPUs".
func (h Host) String() string {
	var b strings.Builder
	b.WriteString(h.Arch)
	if len(h.Features) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(h.Features, ", "))
		b.WriteString(")")
	}
	b.WriteString(", ")
	b.WriteString(strconv.Itoa(h.CPUs))
	b.WriteString(" CPUs")
	return b.String()
}

// currentHost is filled in by init() in host_*.go files.
var currentHost = Host{Arch: runtime.GOARCH, CPUs: runtime.NumCPU()}

// CurrentHost returns the processor detected at startup.
func CurrentHost() Host {
	return currentHost
}

// SerialEnv checks if the CRYSTAL_SERIAL environment variable is set. When
// set, New builds a single-worker device regardless of options, which runs
// blocks one at a time in index order. This is useful for debugging kernels.
func SerialEnv() bool {
	val := os.Getenv("CRYSTAL_SERIAL")
	if val == "" {
		return false
	}
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}
