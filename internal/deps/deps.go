// Package deps resolves the external executables hlsmerge drives.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	// Source explains how Command was chosen: config, bundled, sidecar, or path.
	Source    string
	Available bool
	Detail    string
}

// Resolution sources reported in Status.Source.
const (
	SourceConfig  = "config"
	SourceBundled = "bundled"
	SourceSidecar = "sidecar"
	SourcePath    = "path"
)

// ResolveFFmpeg reports the ffmpeg binary a batch will execute.
//
// A configured binary always wins: bare names resolve through PATH, anything
// with a separator must exist and be executable. Without configuration the
// lookup prefers a bundled copy at <exeDir>/ffmpeg/bin/ffmpeg, then an ffmpeg
// beside the hlsmerge executable, then PATH. exeDir may be empty. Outside
// Windows the sidecar path <exeDir>/ffmpeg is the bundle directory itself, so
// a sidecar and a bundle cannot coexist there.
func ResolveFFmpeg(configured, exeDir string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Remuxes HLS manifests into single files",
	}

	configured = strings.TrimSpace(configured)
	if configured != "" {
		result.Source = SourceConfig
		result.Command = configured
		if strings.ContainsAny(configured, `/\`) {
			info, err := os.Stat(configured)
			switch {
			case err != nil:
				result.Detail = fmt.Sprintf("binary %q not found", configured)
			case !isExecutable(info):
				result.Detail = fmt.Sprintf("binary %q is not executable", configured)
			default:
				result.Available = true
			}
			return result
		}
		if resolved, err := exec.LookPath(configured); err == nil {
			result.Command = resolved
			result.Available = true
			return result
		}
		result.Detail = fmt.Sprintf("binary %q not found", configured)
		return result
	}

	name := executableName("ffmpeg")
	if exeDir != "" {
		candidates := []struct {
			path   string
			source string
		}{
			{filepath.Join(exeDir, "ffmpeg", "bin", name), SourceBundled},
			{filepath.Join(exeDir, name), SourceSidecar},
		}
		for _, c := range candidates {
			if info, err := os.Stat(c.path); err == nil && isExecutable(info) {
				result.Command = c.path
				result.Source = c.source
				result.Available = true
				return result
			}
		}
	}

	result.Source = SourcePath
	if ffmpegPath, err := exec.LookPath("ffmpeg"); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = "ffmpeg"
	result.Detail = `binary "ffmpeg" not found`
	return result
}

// ExecutableDir returns the directory holding the running executable, with
// symlinks resolved. It returns "" when the location cannot be determined.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
