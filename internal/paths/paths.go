// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Directory and file names shared with the config generator scripts.
const (
	AppDirName       = "localhost-manager"
	ConfDirName      = "conf"
	HostsFileName    = "hosts.json"
	SettingsFileName = "settings.json"
)

// HomeDir returns the user's home directory, falling back to the platform's
// conventional location when it cannot be determined.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if runtime.GOOS == "windows" {
		drive := os.Getenv("HOMEDRIVE")
		if drive == "" {
			drive = "C:"
		}
		path := os.Getenv("HOMEPATH")
		if path == "" {
			path = `\Users\Default`
		}
		return drive + path
	}
	return os.TempDir()
}

// DataDir returns the per-user directory holding conf/, ssl/ and generated configs.
func DataDir() string {
	return filepath.Join(HomeDir(), AppDirName)
}

// ConfDir returns the directory holding hosts.json and settings.json.
func ConfDir() string {
	return filepath.Join(DataDir(), ConfDirName)
}

// DefaultHostsFile returns the hosts.json path used when none is configured.
func DefaultHostsFile() string {
	return filepath.Join(ConfDir(), HostsFileName)
}

// DefaultSettingsFile returns the settings.json path used when none is configured.
func DefaultSettingsFile() string {
	return filepath.Join(ConfDir(), SettingsFileName)
}

// ConfigDir returns the directory holding the vhosts CLI's own config.yaml.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "vhosts")
	}
	return filepath.Join(HomeDir(), ".config", "vhosts")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

// ResolveHostsFile resolves the hosts.json path from user input.
//
// Input normalization:
//   - "" -> DefaultHostsFile()
//   - "~/x/hosts.json" -> "<home>/x/hosts.json"
//   - "/path/to/conf" (an existing directory) -> "/path/to/conf/hosts.json"
//   - "/path/to/custom.json" -> "/path/to/custom.json"
func ResolveHostsFile(path string) string {
	if path == "" {
		return DefaultHostsFile()
	}
	path = filepath.Clean(ExpandHome(path))
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, HostsFileName)
	}
	return path
}
