package version

import (
	"runtime/debug"
	"strings"
)

// Default is the default version value used when the version is not set.
const Default = "dev"

// version holds the current version set by ldflag for the encsel CLI.
var version string

// GetEncselVersion returns the current version of encsel either in the go.mod
// of the main module or set by ldflag for the encsel CLI.
func GetEncselVersion() (ret string) {
	if len(version) != 0 {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if ok {
		ret = versionOf(info)
	}
	if versionMissing(ret) {
		return Default // don't return parens
	}

	// Cache for the subsequent calls.
	version = ret
	return ret
}

func versionOf(info *debug.BuildInfo) (ret string) {
	for _, dep := range info.Deps {
		// Note: here's the assumption that encsel is imported as github.com/tetratelabs/encsel.
		if strings.Contains(dep.Path, "github.com/tetratelabs/encsel") {
			ret = dep.Version
		}
	}

	// In the encsel CLI, encsel is the main module, so the version comes from info.Main.
	if versionMissing(ret) {
		ret = info.Main.Version
	}
	return
}

func versionMissing(ret string) bool {
	return ret == "" || ret == "(devel)" // pkg.go.dev uses (devel)
}
