package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Manifest write modes
const (
	ManifestWriteAuto     = "auto"
	ManifestWriteDirect   = "direct"
	ManifestWriteElevated = "elevated"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Privilege PrivilegeConfig
	Host      HostConfig
	Commands  CommandConfig
	Catalog   CatalogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
	// CORSOrigins lists the browser origins allowed to call the API and
	// open the event stream.
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:1420,http://127.0.0.1:1420,http://tauri.localhost,tauri://localhost"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`

	// Mutation limits are shared by every client; each mutation may raise
	// an authentication prompt.
	MutationsPerSecond int `envconfig:"RATE_LIMIT_MUTATION_RPS" default:"1"`
	MutationBurst      int `envconfig:"RATE_LIMIT_MUTATION_BURST" default:"5"`
}

// PrivilegeConfig controls how privileged commands are brokered.
type PrivilegeConfig struct {
	Broker  string        `envconfig:"PRIVILEGE_BROKER" default:"/usr/bin/pkexec"`
	Timeout time.Duration `envconfig:"ELEVATED_TIMEOUT" default:"10m"`
	// ManifestWrite selects how the locale manifest is persisted.
	ManifestWrite string `envconfig:"MANIFEST_WRITE_MODE" default:"auto"`
}

// HostConfig locates the host state sources.
type HostConfig struct {
	ModulesDir     string `envconfig:"MODULES_DIR" default:"/lib/modules"`
	LocaleConf     string `envconfig:"LOCALE_CONF_PATH" default:"/etc/locale.conf"`
	LocaleGen      string `envconfig:"LOCALE_GEN_PATH" default:"/etc/locale.gen"`
	RebootSentinel string `envconfig:"REBOOT_SENTINEL" default:"/var/run/reboot-required"`
	OSRelease      string `envconfig:"OS_RELEASE_PATH" default:"/etc/os-release"`
}

// CommandConfig names the host utilities invoked by the service.
type CommandConfig struct {
	Localectl string `envconfig:"LOCALECTL_BIN" default:"localectl"`
	LocaleGen string `envconfig:"LOCALE_GEN_BIN" default:"locale-gen"`
	Locale    string `envconfig:"LOCALE_BIN" default:"locale"`
	Pacman    string `envconfig:"PACMAN_BIN" default:"pacman"`
}

// CatalogConfig controls the kernel package search.
type CatalogConfig struct {
	SearchPattern   string        `envconfig:"KERNEL_SEARCH_PATTERN" default:"^linux"`
	Repositories    []string      `envconfig:"REPO_SECTIONS" default:"core,extra,community,multilib"`
	BreakerFailures uint32        `envconfig:"SEARCH_BREAKER_FAILURES" default:"3"`
	BreakerTimeout  time.Duration `envconfig:"SEARCH_BREAKER_TIMEOUT" default:"1m"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Privilege.ManifestWrite {
	case ManifestWriteAuto, ManifestWriteDirect, ManifestWriteElevated:
	default:
		return fmt.Errorf("invalid MANIFEST_WRITE_MODE %q", c.Privilege.ManifestWrite)
	}
	if c.Privilege.Broker == "" {
		return fmt.Errorf("PRIVILEGE_BROKER must not be empty")
	}
	if len(c.Catalog.Repositories) == 0 {
		return fmt.Errorf("REPO_SECTIONS must list at least one repository")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.Contains(origin, "://") {
			return fmt.Errorf("invalid CORS_ORIGINS entry %q: want scheme://host[:port] or *", origin)
		}
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			CORSOrigins: []string{
				"http://localhost:1420",
				"http://127.0.0.1:1420",
				"http://tauri.localhost",
				"tauri://localhost",
			},
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:              40,
			Enabled:            true,
			MutationsPerSecond: 1,
			MutationBurst:      5,
		},
		Privilege: PrivilegeConfig{
			Broker:        "/usr/bin/pkexec",
			Timeout:       10 * time.Minute,
			ManifestWrite: ManifestWriteAuto,
		},
		Host: HostConfig{
			ModulesDir:     "/lib/modules",
			LocaleConf:     "/etc/locale.conf",
			LocaleGen:      "/etc/locale.gen",
			RebootSentinel: "/var/run/reboot-required",
			OSRelease:      "/etc/os-release",
		},
		Commands: CommandConfig{
			Localectl: "localectl",
			LocaleGen: "locale-gen",
			Locale:    "locale",
			Pacman:    "pacman",
		},
		Catalog: CatalogConfig{
			SearchPattern:   "^linux",
			Repositories:    []string{"core", "extra", "community", "multilib"},
			BreakerFailures: 3,
			BreakerTimeout:  time.Minute,
		},
	}
}
