package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedPlatform indicates no maple-proxy release exists for the
// running OS/architecture pair. This is fatal and non-retryable.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ResolveArtifact maps the running OS and CPU architecture to the release
// artifact published for it.
func ResolveArtifact() (Artifact, error) {
	return resolveArtifact(runtime.GOOS, runtime.GOARCH)
}

// resolveArtifact holds the fixed enumeration of supported platforms.
// Release archives use Rust target triples in their names.
func resolveArtifact(goos, goarch string) (Artifact, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return Artifact{Name: "maple-proxy-x86_64-unknown-linux-gnu", Archive: ArchiveTarGz}, nil
	case "linux/arm64":
		return Artifact{Name: "maple-proxy-aarch64-unknown-linux-gnu", Archive: ArchiveTarGz}, nil
	case "darwin/arm64":
		return Artifact{Name: "maple-proxy-aarch64-apple-darwin", Archive: ArchiveTarGz}, nil
	case "windows/amd64":
		return Artifact{Name: "maple-proxy-x86_64-pc-windows-msvc", Archive: ArchiveZip}, nil
	default:
		return Artifact{}, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
}

// BinaryName returns the name of the maple-proxy executable on this platform.
func BinaryName() string {
	return binaryName(runtime.GOOS)
}

func binaryName(goos string) string {
	if goos == "windows" {
		return "maple-proxy.exe"
	}
	return "maple-proxy"
}
