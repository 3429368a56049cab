package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var stubScript = []byte("#!/bin/sh\nexit 0\n")

func writeStub(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, stubScript, mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestResolveFFmpegBundled(t *testing.T) {
	exeDir := t.TempDir()
	bundled := filepath.Join(exeDir, "ffmpeg", "bin", executableName("ffmpeg"))
	writeStub(t, bundled, 0o755)

	status := ResolveFFmpeg("", exeDir)
	if !status.Available {
		t.Fatalf("expected bundled ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != bundled || status.Source != SourceBundled {
		t.Fatalf("expected bundled %q, got %q (%s)", bundled, status.Command, status.Source)
	}
}

// On Windows the sidecar is ffmpeg.exe, so it can sit next to the ffmpeg/
// bundle directory.
func TestResolveFFmpegBundledBeatsSidecar(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("sidecar and bundle share the path <exeDir>/ffmpeg outside Windows")
	}
	exeDir := t.TempDir()
	bundled := filepath.Join(exeDir, "ffmpeg", "bin", executableName("ffmpeg"))
	sidecar := filepath.Join(exeDir, executableName("ffmpeg"))
	writeStub(t, bundled, 0o755)
	writeStub(t, sidecar, 0o755)

	status := ResolveFFmpeg("", exeDir)
	if status.Command != bundled || status.Source != SourceBundled {
		t.Fatalf("expected bundled %q, got %q (%s)", bundled, status.Command, status.Source)
	}
}

func TestResolveFFmpegEmptyBundleIsNotSidecar(t *testing.T) {
	exeDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(exeDir, "ffmpeg", "bin"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("PATH", "")

	status := ResolveFFmpeg("", exeDir)
	if status.Available || status.Source != SourcePath {
		t.Fatalf("expected an unresolved PATH lookup, got %q (%s, available=%v)", status.Command, status.Source, status.Available)
	}
}

func TestResolveFFmpegSidecar(t *testing.T) {
	exeDir := t.TempDir()
	sidecar := filepath.Join(exeDir, executableName("ffmpeg"))
	writeStub(t, sidecar, 0o755)

	status := ResolveFFmpeg("", exeDir)
	if status.Command != sidecar || status.Source != SourceSidecar {
		t.Fatalf("expected sidecar %q, got %q (%s)", sidecar, status.Command, status.Source)
	}
}

func TestResolveFFmpegPathFallback(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	writeStub(t, ffmpegPath, 0o755)
	t.Setenv("PATH", binDir)

	status := ResolveFFmpeg("", t.TempDir())
	if !status.Available {
		t.Fatalf("expected PATH ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath || status.Source != SourcePath {
		t.Fatalf("expected ffmpeg command %q, got %q (%s)", ffmpegPath, status.Command, status.Source)
	}
}

func TestResolveFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := ResolveFFmpeg("", "")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func TestResolveFFmpegConfiguredWins(t *testing.T) {
	exeDir := t.TempDir()
	writeStub(t, filepath.Join(exeDir, executableName("ffmpeg")), 0o755)
	custom := filepath.Join(t.TempDir(), "my-ffmpeg")
	writeStub(t, custom, 0o755)

	status := ResolveFFmpeg(custom, exeDir)
	if !status.Available || status.Command != custom || status.Source != SourceConfig {
		t.Fatalf("expected configured binary, got %#v", status)
	}
}

func TestResolveFFmpegConfiguredNotExecutable(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "ffmpeg")
	writeStub(t, custom, 0o644)

	status := ResolveFFmpeg(custom, "")
	if status.Available {
		t.Fatalf("expected non-executable binary to be unavailable, got %#v", status)
	}
}
