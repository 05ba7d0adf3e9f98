package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, loaded entirely from
// environment variables — there is no config file.
type Config struct {
	TS3Host            string
	TS3Port            int
	TS3Nickname        string
	TS3ServerPassword  string
	TS3ChannelPassword string
	TS3ChannelPath     string
	TS3ChannelID       int
	TS3Identity        string
	TS3IdentityFile    string
	AvatarDir          string
	PersistedStateFile string
	LogLevel           string
	LogFile            string
	ListenAddr         string
}

const (
	defaultTS3Host       = "127.0.0.1"
	defaultTS3Port       = 9987
	defaultTS3Nickname   = "tsbot"
	defaultIdentityFile  = "./logs/identity.txt"
	defaultPersistedFile = "./logs/voice_state.json"
	defaultLogLevel      = "info"
	defaultListenAddr    = "127.0.0.1:50051"
)

// LoadConfig reads configuration from environment variables via viper,
// applying the defaults documented in spec.md §6, and resolves any relative
// path against the nearest ancestor directory containing .git (else the
// current working directory).
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TSBOT")
	v.AutomaticEnv()

	bind := func(key string) {
		_ = v.BindEnv(key)
	}
	for _, key := range []string{
		"ts3_host", "ts3_port", "ts3_nickname", "ts3_server_password",
		"ts3_channel_password", "ts3_channel_path", "ts3_channel_id",
		"ts3_identity", "ts3_identity_file", "avatar_dir",
		"persisted_state_file", "log_level", "log_file", "listen_addr",
	} {
		bind(key)
	}

	v.SetDefault("ts3_host", defaultTS3Host)
	v.SetDefault("ts3_port", defaultTS3Port)
	v.SetDefault("ts3_nickname", defaultTS3Nickname)
	v.SetDefault("ts3_identity_file", defaultIdentityFile)
	v.SetDefault("persisted_state_file", defaultPersistedFile)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("listen_addr", defaultListenAddr)

	cfg := Config{
		TS3Host:            v.GetString("ts3_host"),
		TS3Port:            v.GetInt("ts3_port"),
		TS3Nickname:        v.GetString("ts3_nickname"),
		TS3ServerPassword:  v.GetString("ts3_server_password"),
		TS3ChannelPassword: v.GetString("ts3_channel_password"),
		TS3ChannelPath:     v.GetString("ts3_channel_path"),
		TS3ChannelID:       v.GetInt("ts3_channel_id"),
		TS3Identity:        v.GetString("ts3_identity"),
		TS3IdentityFile:    v.GetString("ts3_identity_file"),
		AvatarDir:          v.GetString("avatar_dir"),
		PersistedStateFile: v.GetString("persisted_state_file"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		LogFile:            v.GetString("log_file"),
		ListenAddr:         v.GetString("listen_addr"),
	}

	if cfg.TS3Port <= 0 || cfg.TS3Port > 65535 {
		return Config{}, fmt.Errorf("TSBOT_TS3_PORT out of range: %d", cfg.TS3Port)
	}

	root, err := findPathRoot()
	if err != nil {
		return Config{}, fmt.Errorf("resolve path root: %w", err)
	}
	cfg.TS3IdentityFile = resolvePath(root, cfg.TS3IdentityFile)
	cfg.PersistedStateFile = resolvePath(root, cfg.PersistedStateFile)
	if cfg.AvatarDir != "" {
		cfg.AvatarDir = resolvePath(root, cfg.AvatarDir)
	}
	if cfg.LogFile != "" {
		cfg.LogFile = resolvePath(root, cfg.LogFile)
	}

	return cfg, nil
}

// resolvePath resolves a relative path against root; absolute paths pass
// through unchanged.
func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// findPathRoot walks upward from the working directory looking for a .git
// directory; falls back to the working directory itself when none is found.
func findPathRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := wd
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd, nil
		}
		dir = parent
	}
}
