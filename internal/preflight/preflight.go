package preflight

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"hlsmerge/internal/config"
	"hlsmerge/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the environment checks reported by the deps command.
func RunAll(cfg *config.Config, exeDir string) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckFFmpeg(cfg.FFmpeg.Binary, exeDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
}

// ForBatch checks the output directory of a batch: it must be writable and,
// when convert.min_free_gib is set, have enough free space.
func ForBatch(cfg *config.Config, outputDir string) []Result {
	results := []Result{CheckDirectoryAccess("Output directory", outputDir)}
	if cfg != nil && cfg.Convert.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Output free space", outputDir, uint64(cfg.Convert.MinFreeGiB)<<30))
	}
	return results
}

// FirstFailure returns the first failed result, if any.
func FirstFailure(results []Result) (Result, bool) {
	for _, r := range results {
		if !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}

// CheckFFmpeg reports how the ffmpeg binary resolves.
func CheckFFmpeg(configured, exeDir string) Result {
	status := deps.ResolveFFmpeg(configured, exeDir)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: fmt.Sprintf("%s (%s)", status.Command, status.Source)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := accessReadWrite(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the volume holding path has at least minBytes available.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	free, err := freeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s free, need %s", humanize.IBytes(free), humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}
