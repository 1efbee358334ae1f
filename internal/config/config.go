package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// current holds the application configuration, making it accessible globally.
// It is swapped atomically when the file changes.
var current atomic.Pointer[Config]

// Get returns the active configuration.
func Get() *Config {
	return current.Load()
}

// Set replaces the active configuration.
func Set(c *Config) {
	current.Store(c)
}

// Config struct is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ExperimentConfig points at the experiment document and image folders.
type ExperimentConfig struct {
	ConfigFile     string `mapstructure:"config_file"`
	ImageRoot      string `mapstructure:"image_root"`
	AssetsDir      string `mapstructure:"assets_dir"`
	Placeholder    string `mapstructure:"placeholder"`
	PreloadWorkers int    `mapstructure:"preload_workers"`
}

// SessionsConfig controls how long idle participant sessions are kept in memory.
type SessionsConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me-in-production")
	v.SetDefault("server.secure_cookies", false)

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	// Experiment defaults
	v.SetDefault("experiment.config_file", "config/experiment.json")
	v.SetDefault("experiment.image_root", "images")
	v.SetDefault("experiment.assets_dir", "assets")
	v.SetDefault("experiment.placeholder", "/assets/placeholder.svg")
	v.SetDefault("experiment.preload_workers", 8)

	// Session defaults
	v.SetDefault("sessions.idle_timeout", 2*time.Hour)
	v.SetDefault("sessions.sweep_interval", time.Minute)
}

// Load reads config/config.yaml under projectRoot, overlaid by FOODVAL_*
// environment variables. A missing file is fine.
func Load(projectRoot string) (*viper.Viper, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("FOODVAL") // e.g., FOODVAL_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	conf, err := decode(v, projectRoot)
	if err != nil {
		return nil, err
	}
	Set(conf)
	return v, nil
}

// Watch reloads the configuration whenever the file changes on disk. New
// values apply to participants who start after the reload.
func Watch(v *viper.Viper, projectRoot string, log *zap.Logger) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		conf, err := decode(v, projectRoot)
		if err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		Set(conf)
	})
}

func decode(v *viper.Viper, projectRoot string) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	conf.Experiment.ConfigFile = resolve(projectRoot, conf.Experiment.ConfigFile)
	conf.Experiment.ImageRoot = resolve(projectRoot, conf.Experiment.ImageRoot)
	conf.Experiment.AssetsDir = resolve(projectRoot, conf.Experiment.AssetsDir)
	conf.Logging.Directory = resolve(projectRoot, conf.Logging.Directory)
	return &conf, nil
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
