//go:build windows

package pyenv

import "path/filepath"

func sameDevice(a, b string) (bool, error) {
	return filepath.VolumeName(a) == filepath.VolumeName(b), nil
}
