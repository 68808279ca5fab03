package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const EnvPrefix = "serverkit"

const (
	BanStoreSQLite = "sqlite"
	BanStoreTOML   = "toml"
	BanStoreMemory = "memory"
)

type Config struct {
	ListenAddr   string
	DataDir      string
	DatabasePath string
	DefaultUser  string
	DefaultPass  string

	Backend    string
	Container  string
	GamePort   uint16
	ServerName string
	Version    string
	Protocol   string
	Language   language.Tag
	MaxPlayers int

	BanStore string
	BanFile  string

	IPLookupURL     string
	IPLookupTimeout time.Duration
	CommandRate     int

	LogLevel  string
	LogFormat string
}

// New returns a viper instance carrying the defaults and reading SERVERKIT_* variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("db", "")
	v.SetDefault("default_user", "admin")
	v.SetDefault("default_pass", "admin")
	v.SetDefault("backend", "minecraft")
	v.SetDefault("container", "")
	v.SetDefault("game_port", 0)
	v.SetDefault("server_name", "")
	v.SetDefault("version", "")
	v.SetDefault("protocol", "")
	v.SetDefault("language", "en")
	v.SetDefault("max_players", 0)
	v.SetDefault("ban_store", BanStoreSQLite)
	v.SetDefault("ban_file", "")
	v.SetDefault("ip_lookup_url", "https://api.ipify.org")
	v.SetDefault("ip_lookup_timeout", 5*time.Second)
	v.SetDefault("command_rate", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	return v
}

// Load reads and validates the configuration held by v. The data directory is made absolute and
// created.
func Load(v *viper.Viper) (*Config, error) {
	dataDir := v.GetString("data_dir")
	// Docker bind mounts require absolute paths
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:      v.GetString("listen"),
		DataDir:         dataDir,
		DatabasePath:    v.GetString("db"),
		DefaultUser:     v.GetString("default_user"),
		DefaultPass:     v.GetString("default_pass"),
		Backend:         strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		Container:       v.GetString("container"),
		ServerName:      v.GetString("server_name"),
		Version:         v.GetString("version"),
		Protocol:        v.GetString("protocol"),
		MaxPlayers:      v.GetInt("max_players"),
		BanStore:        strings.ToLower(v.GetString("ban_store")),
		BanFile:         v.GetString("ban_file"),
		IPLookupURL:     v.GetString("ip_lookup_url"),
		IPLookupTimeout: v.GetDuration("ip_lookup_timeout"),
		CommandRate:     v.GetInt("command_rate"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(dataDir, "serverkit.db")
	}
	if cfg.BanFile == "" {
		cfg.BanFile = filepath.Join(dataDir, "bans.toml")
	}

	port := v.GetInt("game_port")
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("game_port %d out of range", port)
	}
	cfg.GamePort = uint16(port)

	cfg.Language, err = language.Parse(v.GetString("language"))
	if err != nil {
		return nil, fmt.Errorf("language: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Backend == "" {
		errs = append(errs, errors.New("backend is required"))
	}
	switch c.BanStore {
	case BanStoreSQLite, BanStoreTOML, BanStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown ban_store %q", c.BanStore))
	}
	if c.MaxPlayers < 0 {
		errs = append(errs, fmt.Errorf("max_players %d is negative", c.MaxPlayers))
	}
	if c.IPLookupTimeout <= 0 {
		errs = append(errs, errors.New("ip_lookup_timeout must be positive"))
	}
	if c.CommandRate <= 0 {
		errs = append(errs, errors.New("command_rate must be positive"))
	}
	return errors.Join(errs...)
}
