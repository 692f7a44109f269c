package version

import "fmt"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Generator returns the generator string embedded in served feeds.
func Generator() string {
	return fmt.Sprintf("decentium-feeds/%s (+https://github.com/decentium/feeds)", Version)
}
