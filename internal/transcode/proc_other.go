//go:build !windows

package transcode

import (
	"os/exec"
	"syscall"
)

// configureProcess starts ffmpeg in its own process group so a terminal
// Ctrl-C reaches hlsmerge only and the in-flight unit can finish.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
