// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/experience"
	"github.com/S3OPS/ACOTAR-sub002/internal/game/mana"
)

// EnvPrefix is the prefix for environment variable overrides, e.g. ACOTAR_CONSOLE_PORT.
const EnvPrefix = "ACOTAR"

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Mode is the server operation mode. Only "standalone" is supported.
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// When Enabled is false progression is kept in memory only.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// AutosaveInterval saves every active character this often; 0 disables autosave.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ConsoleConfig holds the Telnet admin console settings.
type ConsoleConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadTimeout disconnects a client idle for this long; 0 disables it.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (c ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig holds the ability and progression tuning.
type EngineConfig struct {
	TickInterval       time.Duration     `mapstructure:"tick_interval"`
	ManaPerMagicPower  int64             `mapstructure:"mana_per_magic_power"`
	RegenPerTick       int64             `mapstructure:"regen_per_tick"`
	BaseXP             uint32            `mapstructure:"base_xp"`
	XPMultiplier       float64           `mapstructure:"xp_multiplier"`
	EarlyGameThreshold uint32            `mapstructure:"early_game_threshold"`
	EarlyGameScale     float64           `mapstructure:"early_game_scale"`
	Growth             experience.Growth `mapstructure:"growth"`
	// ScriptInstructionLimit caps Lua opcodes per hook call; 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
	HookQueueSize          int `mapstructure:"hook_queue_size"`
}

// Curve returns the experience curve described by the engine settings.
func (e EngineConfig) Curve() experience.Curve {
	return experience.Curve{
		BaseXP:             e.BaseXP,
		Multiplier:         e.XPMultiplier,
		EarlyGameThreshold: e.EarlyGameThreshold,
		EarlyGameScale:     e.EarlyGameScale,
	}
}

// ContentConfig names the content directories. An empty directory falls back
// to the built-in tables; Scripts empty disables Lua hooks.
type ContentConfig struct {
	Abilities string `mapstructure:"abilities"`
	Classes   string `mapstructure:"classes"`
	Equipment string `mapstructure:"equipment"`
	Scripts   string `mapstructure:"scripts"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Content  ContentConfig  `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateConsole(c.Console),
		validateLogging(c.Logging),
		validateEngine(c.Engine),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Mode != "standalone" {
		return fmt.Errorf("server.mode must be standalone, got %q", s.Mode)
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.AutosaveInterval < 0 {
		errs = append(errs, "database.autosave_interval must not be negative")
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, fmt.Sprintf("database.min_conns must be 0-%d, got %d", d.MaxConns, d.MinConns))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateConsole(c ConsoleConfig) error {
	var errs []string
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("console.port must be 0-65535, got %d", c.Port))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, "console.read_timeout must not be negative")
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, "console.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("engine.tick_interval must be > 0, got %s", e.TickInterval))
	}
	if e.ManaPerMagicPower < 0 {
		errs = append(errs, "engine.mana_per_magic_power must be >= 0")
	}
	if e.RegenPerTick < 0 {
		errs = append(errs, "engine.regen_per_tick must be >= 0")
	}
	if err := e.Curve().Validate(); err != nil {
		errs = append(errs, "engine curve: "+strings.ReplaceAll(err.Error(), "\n", ", "))
	}
	g := e.Growth
	if g.MaxHealth < 0 || g.MagicPower < 0 || g.Strength < 0 || g.Agility < 0 {
		errs = append(errs, "engine.growth values must be >= 0")
	}
	if e.ScriptInstructionLimit < 0 || e.ScriptInstructionLimit > math.MaxInt32 {
		errs = append(errs, fmt.Sprintf("engine.script_instruction_limit out of range: %d", e.ScriptInstructionLimit))
	}
	if e.HookQueueSize < 0 {
		errs = append(errs, "engine.hook_queue_size must be >= 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies ACOTAR_* environment
// variable overrides, and validates the result. An empty path loads defaults and
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the built-in defaults.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "standalone")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "acotar")
	v.SetDefault("database.password", "acotar")
	v.SetDefault("database.name", "acotar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.autosave_interval", "5m")

	v.SetDefault("console.host", "127.0.0.1")
	v.SetDefault("console.port", 4100)
	v.SetDefault("console.read_timeout", "10m")
	v.SetDefault("console.write_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.tick_interval", "1s")
	v.SetDefault("engine.mana_per_magic_power", mana.DefaultPerMagicPower)
	v.SetDefault("engine.regen_per_tick", mana.DefaultRegenPerTick)
	v.SetDefault("engine.base_xp", experience.DefaultBaseXP)
	v.SetDefault("engine.xp_multiplier", experience.DefaultMultiplier)
	v.SetDefault("engine.early_game_threshold", experience.DefaultEarlyGameThreshold)
	v.SetDefault("engine.early_game_scale", experience.DefaultEarlyGameScale)
	g := experience.DefaultGrowth()
	v.SetDefault("engine.growth.max_health", g.MaxHealth)
	v.SetDefault("engine.growth.magic_power", g.MagicPower)
	v.SetDefault("engine.growth.strength", g.Strength)
	v.SetDefault("engine.growth.agility", g.Agility)
	v.SetDefault("engine.script_instruction_limit", 0)
	v.SetDefault("engine.hook_queue_size", 256)

	v.SetDefault("content.abilities", "")
	v.SetDefault("content.classes", "")
	v.SetDefault("content.equipment", "")
	v.SetDefault("content.scripts", "")
}
