package lastools

import (
	"os"
	"path/filepath"
	"runtime"
)

// Resolve returns what to execute for a tool. When suiteDir is configured
// and contains the binary, the full path is returned; otherwise the bare
// name is returned and PATH lookup applies.
func Resolve(name, suiteDir string) string {
	if suiteDir == "" {
		return name
	}
	candidate := filepath.Join(suiteDir, name+exeSuffix())
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return name
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// IsPointCloudFile reports whether path looks like a LAS/LAZ file.
func IsPointCloudFile(path string) bool {
	switch filepath.Ext(path) {
	case ".las", ".laz", ".LAS", ".LAZ":
		return true
	}
	return false
}
