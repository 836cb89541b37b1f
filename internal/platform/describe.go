package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Info contains best-effort host platform details used for startup logging.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // "amd64", "arm64"
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// Describe returns host platform details. It uses runtime.GOOS and
// runtime.GOARCH for OS and architecture, and gopsutil for Linux
// distribution details. Distribution detection failures degrade to OS/arch
// only; the only hard failure is context cancellation.
func Describe(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	plat, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		// Distro details are diagnostics only; OS/arch is enough to proceed.
		return info, nil
	}

	info.Platform = strings.ToLower(strings.TrimSpace(plat))
	info.Version = strings.ToLower(strings.TrimSpace(version))
	return info, nil
}
