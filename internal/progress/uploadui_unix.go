//go:build !windows

package progress

import "os"

// enableANSIOnWindows is a no-op off Windows; Unix terminals handle ANSI
// escape sequences natively.
func enableANSIOnWindows(f *os.File) {}
