//go:build windows

package transcode

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureProcess hides the ffmpeg console window and detaches ffmpeg from
// the console's Ctrl-C group so the in-flight unit can finish.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
}
