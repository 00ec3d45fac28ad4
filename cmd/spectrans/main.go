// Command spectrans inspects resolutions and runs inverse spectral transforms
// on an in-process process group.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
