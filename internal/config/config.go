// Package config loads orch settings from defaults, config.yaml files, and
// ORCH_* environment variables through a process-wide viper instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RootDirName is the per-project directory holding specs, indexes, and config.
const RootDirName = ".moai"

// ConfigFileName is looked up inside the project root and the user config dir.
const ConfigFileName = "config.yaml"

// maxRootSearchDepth bounds the upward walk from the working directory.
const maxRootSearchDepth = 10

var v *viper.Viper

// Initialize sets up viper using the project root found from the working
// directory. Safe to call repeatedly; each call starts from a fresh instance.
func Initialize() error {
	return InitializeAt("")
}

// InitializeAt sets up viper with the project root at root. An empty root
// triggers discovery from the working directory.
//
// Precedence, highest first: explicit Set, ORCH_* environment, project
// config.yaml, user config.yaml, defaults.
func InitializeAt(root string) error {
	v = viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	registerDefaults()

	if userCfg := userConfigPath(); userCfg != "" {
		if err := mergeFile(userCfg); err != nil {
			return err
		}
	}

	if root == "" {
		root = GetString(KeyRoot)
	}
	if root == "" {
		if found, ok := FindRootDir(""); ok {
			root = found
		}
	}
	if root != "" {
		if err := mergeFile(filepath.Join(root, ConfigFileName)); err != nil {
			return err
		}
	}
	return nil
}

func mergeFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func userConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, "orch", ConfigFileName)
}

// FindRootDir walks up from start (or the working directory when empty)
// looking for a RootDirName directory, at most maxRootSearchDepth levels.
func FindRootDir(start string) (string, bool) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		start = wd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for i := 0; i <= maxRootSearchDepth; i++ {
		candidate := filepath.Join(dir, RootDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// ResolveRootDir returns the explicit root if given, else the discovered one,
// else RootDirName under the working directory.
func ResolveRootDir(explicit string) (string, error) {
	if explicit == "" {
		explicit = GetString(KeyRoot)
	}
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if found, ok := FindRootDir(""); ok {
		return found, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return filepath.Join(wd, RootDirName), nil
}

// ResetForTesting drops the viper instance so tests start clean.
func ResetForTesting() {
	v = nil
}

// ConfigFileUsed returns the last config file merged, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a floating point configuration value
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

