package pyenv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sharedFSTypes are filesystem types used for host-shared folders in VMs.
var sharedFSTypes = map[string]bool{
	"cifs":   true,
	"vboxsf": true,
}

// Dirs holds where build output and the pyenv live for a source tree.
type Dirs struct {
	OutDir    string
	PyenvRoot string
}

// Resolve picks the build and pyenv root directories for srcRoot.
// When localDir is set or the source root is on a shared folder, both move
// to <localDir or home>/<project>-dirs so the virtualenv stays on a local disk.
func Resolve(srcRoot, localDir, home string, shared bool) Dirs {
	if localDir != "" || shared {
		base := localDir
		if base == "" {
			base = home
		}
		root := filepath.Join(base, filepath.Base(srcRoot)+"-dirs")
		return Dirs{OutDir: filepath.Join(root, "build"), PyenvRoot: root}
	}
	return Dirs{OutDir: filepath.Join(srcRoot, "build"), PyenvRoot: srcRoot}
}

// SharedSrcRoot reports whether srcRoot lives on a shared-folder mount.
func SharedSrcRoot(srcRoot string) (bool, error) {
	mp, err := mountPoint(srcRoot)
	if err != nil {
		return false, err
	}
	f, err := os.Open("/proc/mounts")
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()
	return IsSharedMount(f, mp)
}

// IsSharedMount scans a /proc/mounts style listing for mountPoint and
// reports whether its filesystem type is a shared-folder type.
func IsSharedMount(mounts io.Reader, mountPoint string) (bool, error) {
	s := bufio.NewScanner(mounts)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 3 {
			continue
		}
		if unescapeMount(fields[1]) == mountPoint && sharedFSTypes[fields[2]] {
			return true, nil
		}
	}
	if err := s.Err(); err != nil {
		return false, fmt.Errorf("read mounts: %w", err)
	}
	return false, nil
}

// unescapeMount decodes the \ooo octal escapes the kernel writes for
// whitespace and backslashes in mount paths.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// mountPoint walks up from path until it reaches a directory on a different
// device than its parent, or the filesystem root.
func mountPoint(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		parent := filepath.Dir(p)
		if parent == p {
			return p, nil
		}
		same, err := sameDevice(p, parent)
		if err != nil {
			return "", err
		}
		if !same {
			return p, nil
		}
		p = parent
	}
}
