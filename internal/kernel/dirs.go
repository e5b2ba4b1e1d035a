package kernel

import (
	"os"
	"path/filepath"
	"runtime"
)

// Directories returns the kernel search path in priority order: entries of
// $JUPYTER_PATH, the user data directory, the system-wide directory and the
// site-local directory.
func Directories() []string {
	home, _ := os.UserHomeDir()
	return directories(runtime.GOOS, home, os.Getenv)
}

func directories(goos, home string, getenv func(string) string) []string {
	var roots []string
	if jp := getenv("JUPYTER_PATH"); jp != "" {
		roots = append(roots, filepath.SplitList(jp)...)
	}

	switch {
	case getenv("JUPYTER_DATA_DIR") != "":
		roots = append(roots, getenv("JUPYTER_DATA_DIR"))
	case goos == "windows":
		if appdata := getenv("APPDATA"); appdata != "" {
			roots = append(roots, filepath.Join(appdata, "jupyter"))
		}
	case goos == "darwin":
		if home != "" {
			roots = append(roots, filepath.Join(home, "Library", "Jupyter"))
		}
	default:
		if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
			roots = append(roots, filepath.Join(xdg, "jupyter"))
		} else if home != "" {
			roots = append(roots, filepath.Join(home, ".local", "share", "jupyter"))
		}
	}

	if goos == "windows" {
		if pd := getenv("PROGRAMDATA"); pd != "" {
			roots = append(roots, filepath.Join(pd, "jupyter"))
		}
	} else {
		roots = append(roots, "/usr/share/jupyter", "/usr/local/share/jupyter")
	}

	dirs := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		d := filepath.Join(r, "kernels")
		if r == "" || seen[d] {
			continue
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	return dirs
}
