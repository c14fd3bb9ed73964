// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the bootloader config daemon.
type Config struct {
	Grub    GrubConfig    `toml:"grub"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

// GrubConfig holds paths and tool names for the managed GRUB installation.
type GrubConfig struct {
	ConfigPath  string `toml:"config_path"` // /etc/default/grub
	MenuPath    string `toml:"menu_path"`   // rendered menu (grub.cfg)
	EnvPath     string `toml:"env_path"`    // grubenv with saved_entry
	MkconfigCmd string `toml:"mkconfig"`    // menu regeneration tool
	SetDefault  string `toml:"set_default"` // default-entry selection tool
}

// StorageConfig holds snapshot storage settings.
type StorageConfig struct {
	Type string `toml:"type"` // "sqlite" or "memory"
	Path string `toml:"path"` // SQLite file path
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	Socket          string   `toml:"socket"`           // unix packet socket path
	Host            string   `toml:"host"`             // WebSocket listen address
	Port            int      `toml:"port"`             // WebSocket listen port (0 disables)
	ShutdownTimeout Duration `toml:"shutdown_timeout"` // graceful shutdown grace period
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Verbosity int `toml:"verbosity"` // 0=lifecycle, 1=operations, 2=events, 3=payloads
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
// This allows both "-v -v -v" and "-vvv" styles to work.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Grub: GrubConfig{
			ConfigPath:  "/etc/default/grub",
			MenuPath:    "/boot/grub2/grub.cfg",
			EnvPath:     "/boot/grub2/grubenv",
			MkconfigCmd: "grub2-mkconfig",
			SetDefault:  "grub2-set-default",
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: "/var/lib/bootconfd/snapshots.db",
		},
		Server: ServerConfig{
			Socket:          "/run/bootconfd.sock",
			Host:            "127.0.0.1",
			Port:            0,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("bootconfd", flag.ContinueOnError)
	configFile := fs.String("config", "", "TOML configuration file")

	grubPath := fs.String("grub-config", "", "Path to the GRUB default file")
	menuPath := fs.String("grub-menu", "", "Path to the rendered boot menu")
	envPath := fs.String("grub-env", "", "Path to the grubenv file")

	storage := fs.String("storage", "", "Storage type: sqlite, memory")
	storagePath := fs.String("storage-path", "", "SQLite database path")

	socket := fs.String("socket", "", "Client API socket path")
	host := fs.String("host", "", "WebSocket listen address")
	port := fs.Int("port", 0, "WebSocket listen port")

	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load TOML config if present
	configPath := "/etc/bootconfd/config.toml"
	if *configFile != "" {
		configPath = *configFile
	}
	if err := cfg.loadTOML(configPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()

	// Apply CLI flags (highest priority)
	if *grubPath != "" {
		cfg.Grub.ConfigPath = *grubPath
	}
	if *menuPath != "" {
		cfg.Grub.MenuPath = *menuPath
	}
	if *envPath != "" {
		cfg.Grub.EnvPath = *envPath
	}
	if *storage != "" {
		cfg.Storage.Type = *storage
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *socket != "" {
		cfg.Server.Socket = *socket
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}

	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOOTCONFD_GRUB_CONFIG"); v != "" {
		c.Grub.ConfigPath = v
	}
	if v := os.Getenv("BOOTCONFD_GRUB_MENU"); v != "" {
		c.Grub.MenuPath = v
	}
	if v := os.Getenv("BOOTCONFD_GRUB_ENV"); v != "" {
		c.Grub.EnvPath = v
	}
	if v := os.Getenv("BOOTCONFD_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("BOOTCONFD_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("BOOTCONFD_SOCKET"); v != "" {
		c.Server.Socket = v
	}
	if v := os.Getenv("BOOTCONFD_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("BOOTCONFD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BOOTCONFD_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}

// Log logs a message when the configured verbosity is at least level.
func (c *Config) Log(level int, format string, args ...interface{}) {
	if c.Logging.Verbosity >= level {
		log.Printf(format, args...)
	}
}
