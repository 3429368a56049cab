//go:build windows

package preflight

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

func accessReadWrite(path string) error {
	probe, err := os.CreateTemp(path, ".hlsmerge-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(filepath.Clean(name))
}

func freeBytes(path string) (uint64, error) {
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var available uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &available, nil, nil); err != nil {
		return 0, err
	}
	return available, nil
}
