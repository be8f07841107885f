// Package configpaths locates pmasim configuration files.
package configpaths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "PMASIM_CONFIG"

// baseNames are the file names, without extension, searched in each
// directory.
var baseNames = []string{"pmasim", "config"}

// DefaultConfigDir returns the platform configuration directory for pmasim.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "pmasim"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "pmasim"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "pmasim"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// CandidatePaths returns config file candidates per loader, highest
// priority first. A userPath is routed by extension and placed ahead of
// the working directory and config home entries.
func CandidatePaths(userPath string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(dir, base string) {
		p := filepath.Join(dir, base)
		jsonPaths = append(jsonPaths, p+".json")
		yamlPaths = append(yamlPaths, p+".yaml", p+".yml")
		tomlPaths = append(tomlPaths, p+".toml")
	}

	if userPath != "" {
		switch filepath.Ext(userPath) {
		case ".yaml", ".yml":
			yamlPaths = append(yamlPaths, userPath)
		case ".toml":
			tomlPaths = append(tomlPaths, userPath)
		default:
			jsonPaths = append(jsonPaths, userPath)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		for _, base := range baseNames {
			add(wd, base)
		}
	}
	if dir, err := DefaultConfigDir(); err == nil {
		for _, base := range baseNames {
			add(dir, base)
		}
	}
	return
}

// FindUserConfig returns the value of --config in args, or EnvConfig when
// the flag is absent.
func FindUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv(EnvConfig)
}

