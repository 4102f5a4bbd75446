// Package config provides configuration loading and defaults for the smbshare-mcp server.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SMBSHARE_MCP_"

// ResourceFilter holds allowlist and denylist globs matched against
// minimal UNCs such as //nas/media.
type ResourceFilter struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// SafetyConfig groups resource filters for file shares and printers.
type SafetyConfig struct {
	Shares   ResourceFilter `yaml:"shares"`
	Printers ResourceFilter `yaml:"printers"`
}

// PathsConfig holds filesystem paths used by the server.
type PathsConfig struct {
	Proc      string `yaml:"proc" validate:"required"`
	MountRoot string `yaml:"mount_root" validate:"required"`
	// QueueDir holds the print queue database. Empty keeps the queue in
	// memory only.
	QueueDir string `yaml:"queue_dir"`
	// IconDir may contain disk.png, printer.png and ipc.png overrides.
	IconDir string `yaml:"icon_dir"`
}

// CommandsConfig names the external Samba tools.
type CommandsConfig struct {
	Smbclient string `yaml:"smbclient" validate:"required"`
	MountCifs string `yaml:"mount_cifs" validate:"required"`
	Umount    string `yaml:"umount" validate:"required"`
}

// MountConfig holds default mount.cifs options.
type MountConfig struct {
	Version  string   `yaml:"version" validate:"omitempty,oneof=1.0 2.0 2.1 3 3.0 3.02 3.1.1 default"`
	UID      string   `yaml:"uid" validate:"omitempty,numeric"`
	GID      string   `yaml:"gid" validate:"omitempty,numeric"`
	FileMode string   `yaml:"file_mode" validate:"omitempty,startswith=0"`
	DirMode  string   `yaml:"dir_mode" validate:"omitempty,startswith=0"`
	ReadOnly bool     `yaml:"read_only"`
	Extra    []string `yaml:"extra"`
}

// PrintConfig controls the print queue.
type PrintConfig struct {
	// Retention is how long finished entries are kept.
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path" validate:"required_if=Enabled true"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true,omitempty,startswith=/"`
}

// ServerConfig holds network and authentication settings.
type ServerConfig struct {
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	AuthToken string `yaml:"auth_token"`
}

// Config is the top-level configuration structure for the smbshare-mcp server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Safety   SafetyConfig   `yaml:"safety"`
	Paths    PathsConfig    `yaml:"paths"`
	Commands CommandsConfig `yaml:"commands"`
	Mount    MountConfig    `yaml:"mount"`
	Print    PrintConfig    `yaml:"print"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoadConfig reads a YAML configuration file from the given path. Fields
// the file omits keep their DefaultConfig values. On error, nil is returned
// for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Paths: PathsConfig{
			Proc:      "/proc",
			MountRoot: "/mnt/smb",
			QueueDir:  "/var/lib/smbshare-mcp/queue",
		},
		Commands: CommandsConfig{
			Smbclient: "smbclient",
			MountCifs: "mount.cifs",
			Umount:    "umount",
		},
		Print: PrintConfig{
			Retention: 7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled: true,
			LogPath: "/var/log/smbshare-mcp/audit.log",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

var validate = validator.New()

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("config: %s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return fmt.Errorf("config: %w", err)
}

// ApplyEnvOverrides updates cfg in place with values from environment
// variables. Empty variables are ignored. Recognized variables:
//   - SMBSHARE_MCP_AUTH_TOKEN overrides cfg.Server.AuthToken
//   - SMBSHARE_MCP_PORT overrides cfg.Server.Port
//   - SMBSHARE_MCP_PROC overrides cfg.Paths.Proc
//   - SMBSHARE_MCP_MOUNT_ROOT overrides cfg.Paths.MountRoot
//   - SMBSHARE_MCP_QUEUE_DIR overrides cfg.Paths.QueueDir
//   - SMBSHARE_MCP_ICON_DIR overrides cfg.Paths.IconDir
//   - SMBSHARE_MCP_SMBCLIENT overrides cfg.Commands.Smbclient
//   - SMBSHARE_MCP_MOUNT_CIFS overrides cfg.Commands.MountCifs
//   - SMBSHARE_MCP_UMOUNT overrides cfg.Commands.Umount
//
// A port that is not a number is an error; cfg is left unchanged for that
// variable.
func ApplyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"AUTH_TOKEN": &cfg.Server.AuthToken,
		"PROC":       &cfg.Paths.Proc,
		"MOUNT_ROOT": &cfg.Paths.MountRoot,
		"QUEUE_DIR":  &cfg.Paths.QueueDir,
		"ICON_DIR":   &cfg.Paths.IconDir,
		"SMBCLIENT":  &cfg.Commands.Smbclient,
		"MOUNT_CIFS": &cfg.Commands.MountCifs,
		"UMOUNT":     &cfg.Commands.Umount,
	}
	for name, dst := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sPORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.Server.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.Server.AuthToken != "" {
		return cfg.Server.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.Server.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
