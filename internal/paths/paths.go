package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wclone.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wclone")
}

// ProfilesDir returns the directory holding all profiles.
func ProfilesDir() string {
	return filepath.Join(BaseDir(), "profiles")
}

// ProfileDir returns the profile-specific directory.
func ProfileDir(name string) string {
	return filepath.Join(ProfilesDir(), name)
}

// StoreDBPath returns the embedded document store path for a profile.
func StoreDBPath(name string) string {
	return filepath.Join(ProfileDir(name), "store.db")
}

// TokenPath returns the cached identity token path for a profile.
func TokenPath(name string) string {
	return filepath.Join(ProfileDir(name), "token.json")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(ProfileDir(name), "logs")
}

// LogPath returns the client log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "wclone.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureProfileDir creates the profile directory tree with proper permissions.
func EnsureProfileDir(name string) error {
	dirs := []string{
		ProfileDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
