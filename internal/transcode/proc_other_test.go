//go:build !windows

package transcode_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"hlsmerge/internal/logging"
	"hlsmerge/internal/transcode"
)

func TestFFmpegRunsInOwnProcessGroup(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "ffmpeg.pid")
	binary := filepath.Join(dir, "ffmpeg")
	script := fmt.Sprintf("#!/bin/sh\necho $$ > %q.tmp && mv %q.tmp %q\nsleep 1\nexit 0\n", pidFile, pidFile, pidFile)
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	unit := newUnit(t, "B")

	done := make(chan transcode.Result, 1)
	go func() {
		done <- transcode.New(transcode.Options{Binary: binary}, logging.NewNop()).Transcode(context.Background(), unit)
	}()

	var pid int
	deadline := time.Now().Add(5 * time.Second)
	for pid == 0 {
		if time.Now().After(deadline) {
			t.Fatal("fake ffmpeg never reported its pid")
		}
		if data, err := os.ReadFile(pidFile); err == nil {
			pid, _ = strconv.Atoi(strings.TrimSpace(string(data)))
		}
		if pid == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}

	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		t.Fatalf("getpgid(%d): %v", pid, err)
	}
	if pgid != pid {
		t.Fatalf("expected ffmpeg to lead its own process group, pgid=%d pid=%d", pgid, pid)
	}
	if pgid == syscall.Getpgrp() {
		t.Fatalf("ffmpeg shares the test's process group %d", pgid)
	}

	if result := <-done; result.Kind != transcode.Success {
		t.Fatalf("expected success, got %v (%s)", result.Kind, result.Detail)
	}
}
