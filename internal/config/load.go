package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

const envConfigPathVar = "RILEY_CMS_CONFIG"

// SearchPaths returns the ordered list of candidate config file
// locations per §6: an explicit --config flag (if non-empty), the
// RILEY_CMS_CONFIG env var, ./riley_cms.toml walking up from the
// current directory, the user config dir, then /etc/riley_cms/config.toml.
func SearchPaths(flagPath string) []string {
	var paths []string
	if flagPath != "" {
		paths = append(paths, flagPath)
	}
	if v := os.Getenv(envConfigPathVar); v != "" {
		paths = append(paths, v)
	}
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for {
			paths = append(paths, filepath.Join(dir, "riley_cms.toml"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if ucd, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(ucd, "riley_cms", "config.toml"))
	}
	paths = append(paths, "/etc/riley_cms/config.toml")
	return paths
}

// Resolve walks SearchPaths and returns the first one that exists.
func Resolve(flagPath string) (string, error) {
	for _, p := range SearchPaths(flagPath) {
		if p == "" {
			continue
		}
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", apperror.New(apperror.KindConfig, "no configuration file found in any search path")
}

// Load reads, schema-validates, decodes, defaults, and validates the
// configuration file at path. It is the sole entry point used by the
// CLI and server; a config failure here is always fatal at startup
// (§7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConfig, "read config file "+path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, apperror.Wrap(apperror.KindConfig, "parse config file "+path, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, apperror.Wrap(apperror.KindConfig, "config file "+path+" failed schema validation", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, apperror.Wrap(apperror.KindConfig, "decode config file "+path, err)
	}
	applyDefaults(&cfg)

	if err := validateRequired(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateRequired(cfg *Config) error {
	if cfg.Content.RepoPath == "" {
		return apperror.New(apperror.KindConfig, "content.repo_path is required")
	}
	if cfg.Storage.Bucket == "" {
		return apperror.New(apperror.KindConfig, "storage.bucket is required")
	}
	if cfg.Storage.PublicURLBase == "" {
		return apperror.New(apperror.KindConfig, "storage.public_url_base is required")
	}
	return nil
}
