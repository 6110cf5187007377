package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string       `yaml:"discord_token"`
	OwnerID       string       `yaml:"owner_id"`
	DataDir       string       `yaml:"data_dir"`
	DatabasePath  string       `yaml:"database_path"`
	LogLevel      string       `yaml:"log_level"`
	RetentionDays int          `yaml:"retention_days"`
	Health        HealthConfig `yaml:"health"`
	Actions       ActionConfig `yaml:"actions"`
	LinkFilter    FilterConfig `yaml:"link_filter"`
	Scan          ScanConfig   `yaml:"scan"`
	Notifications NotifyConfig `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type ActionConfig struct {
	// KeepFailedSanctions leaves expired sanctions in the ledger when the
	// reversal's external action fails, for a manual retry.
	KeepFailedSanctions bool `yaml:"keep_failed_sanctions"`
	MaxMuteMinutes      int  `yaml:"max_mute_minutes"`
	MaxBanDays          int  `yaml:"max_ban_days"`
}

type FilterConfig struct {
	MuteMinutes int `yaml:"mute_minutes"`
}

type ScanConfig struct {
	VirusTotalKey string `yaml:"virustotal_key"`
	ImgurClientID string `yaml:"imgur_client_id"`
}

type NotifyConfig struct {
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Action  int `yaml:"action"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:       "/data",
		DatabasePath:  "/data/modguard.db",
		LogLevel:      "info",
		RetentionDays: 30,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Actions: ActionConfig{
			KeepFailedSanctions: false,
			MaxMuteMinutes:      28 * 24 * 60,
			MaxBanDays:          365,
		},
		LinkFilter: FilterConfig{MuteMinutes: 15},
		Notifications: NotifyConfig{
			EmbedColors: EmbedColors{
				Action:  0xF59E0B,
				Warning: 0xEF4444,
				Error:   0xF97316,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Actions.KeepFailedSanctions = envBool("KEEP_FAILED_SANCTIONS", cfg.Actions.KeepFailedSanctions)
	cfg.Actions.MaxMuteMinutes = envInt("MAX_MUTE_MINUTES", cfg.Actions.MaxMuteMinutes)
	cfg.Actions.MaxBanDays = envInt("MAX_BAN_DAYS", cfg.Actions.MaxBanDays)
	cfg.LinkFilter.MuteMinutes = envInt("LINK_FILTER_MUTE_MINUTES", cfg.LinkFilter.MuteMinutes)
	cfg.Scan.VirusTotalKey = envString("VIRUSTOTAL_KEY", cfg.Scan.VirusTotalKey)
	cfg.Scan.ImgurClientID = envString("IMGUR_CLIENT_ID", cfg.Scan.ImgurClientID)
	cfg.Notifications.EmbedColors.Action = envInt("EMBED_COLOR_ACTION", cfg.Notifications.EmbedColors.Action)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
}

// GuildConfigPath and friends name the JSON documents under the data dir.
func (c Config) GuildConfigPath() string { return filepath.Join(c.DataDir, "config.json") }
func (c Config) MutesPath() string       { return filepath.Join(c.DataDir, "mutes.json") }
func (c Config) BansPath() string        { return filepath.Join(c.DataDir, "bans.json") }

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
