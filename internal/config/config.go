// Package config loads and validates the riley-cms TOML configuration
// (§6). Parsing the content tree itself, and talking to S3, remain out
// of scope here — this package only resolves the typed configuration
// document and credential indirection.
package config

// Config is the fully decoded, defaulted riley-cms configuration.
type Config struct {
	Content  ContentConfig  `toml:"content"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Git      GitConfig      `toml:"git"`
	Webhooks WebhooksConfig `toml:"webhooks"`
	Auth     AuthConfig     `toml:"auth"`
}

type ContentConfig struct {
	RepoPath   string `toml:"repo_path"`
	ContentDir string `toml:"content_dir"`
}

type StorageConfig struct {
	Backend       string `toml:"backend"`
	Bucket        string `toml:"bucket"`
	Region        string `toml:"region"`
	Endpoint      string `toml:"endpoint"`
	PublicURLBase string `toml:"public_url_base"`
}

type ServerConfig struct {
	Host                      string   `toml:"host"`
	Port                      int      `toml:"port"`
	CORSOrigins               []string `toml:"cors_origins"`
	CacheMaxAge               int      `toml:"cache_max_age"`
	CacheStaleWhileRevalidate int      `toml:"cache_stale_while_revalidate"`
	BehindProxy               bool     `toml:"behind_proxy"`
}

type GitConfig struct {
	BackendPath     string `toml:"backend_path"`
	MaxBodySize     int64  `toml:"max_body_size"`
	CGITimeoutSecs  int    `toml:"cgi_timeout_secs"`
}

type WebhooksConfig struct {
	OnContentUpdate []string    `toml:"on_content_update"`
	Secret          TokenSource `toml:"secret"`
}

type AuthConfig struct {
	GitToken TokenSource `toml:"git_token"`
	APIToken TokenSource `toml:"api_token"`
}

// applyDefaults fills in the default values for any field left at its
// TOML zero value.
func applyDefaults(c *Config) {
	if c.Content.ContentDir == "" {
		c.Content.ContentDir = "content"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "s3"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "auto"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CacheMaxAge == 0 {
		c.Server.CacheMaxAge = 60
	}
	if c.Server.CacheStaleWhileRevalidate == 0 {
		c.Server.CacheStaleWhileRevalidate = 300
	}
	if c.Git.MaxBodySize == 0 {
		c.Git.MaxBodySize = 100 * 1024 * 1024
	}
	if c.Git.CGITimeoutSecs == 0 {
		c.Git.CGITimeoutSecs = 300
	}
}
