package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telcine/telcine/internal/notify"
	"github.com/telcine/telcine/pkg/ops"
	"github.com/telcine/telcine/pkg/server"
)

const (
	// ConfigFileName is the base name of the configuration file.
	ConfigFileName = "telcine"

	configType = "yaml"

	// EnvPrefix is the environment namespace: listen becomes
	// TELCINE_LISTEN, ops.address becomes TELCINE_OPS_ADDRESS.
	EnvPrefix = "TELCINE"
)

// Config is everything the telcine binary can be told.
type Config struct {
	// Listen is the telnet listen address.
	Listen string

	// Movie is the movie location, a local path or an s3:// URI.
	Movie string

	// Compress folds runs of identical frames when loading the movie.
	Compress bool

	// MaxSessions caps concurrent viewers. Zero means unlimited.
	MaxSessions int

	NegotiateTimeout time.Duration
	WriteTimeout     time.Duration
	DrainTimeout     time.Duration
	ShutdownTimeout  time.Duration

	// Ops contains the HTTP ops endpoint configuration.
	Ops OpsConfig

	// Log contains root logger configuration.
	Log LogConfig

	// Notify contains the optional viewer-notification backends.
	Notify NotifyConfig

	// configPath stores the path of the file the config came from, if any.
	configPath string
}

// OpsConfig controls the HTTP ops server.
type OpsConfig struct {
	Enabled bool
	Address string
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// NotifyConfig holds notification backend settings. A backend is
// enabled when its required fields are set.
type NotifyConfig struct {
	SMTP notify.SMTPConfig
	MQTT notify.MQTTConfig
}

// Load reads configuration. With an explicit path the file must exist
// and parse; with an empty path, telcine.yaml is searched for in the
// working directory, ~/.telcine, and /etc/telcine, and finding none is
// fine — defaults and environment variables carry the day.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(configType)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+ConfigFileName))
		}
		v.AddConfigPath("/etc/" + ConfigFileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := fromViper(v)
	cfg.configPath = v.ConfigFileUsed()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", server.DefaultAddress)
	v.SetDefault("movie", "")
	v.SetDefault("compress", true)
	v.SetDefault("max_sessions", 0)

	v.SetDefault("negotiate_timeout", server.DefaultNegotiateTimeout)
	v.SetDefault("write_timeout", server.DefaultWriteTimeout)
	v.SetDefault("drain_timeout", server.DefaultDrainTimeout)
	v.SetDefault("shutdown_timeout", server.DefaultShutdownTimeout)

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.address", ops.DefaultAddress)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("notify.smtp.port", 587)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Listen:      v.GetString("listen"),
		Movie:       v.GetString("movie"),
		Compress:    v.GetBool("compress"),
		MaxSessions: v.GetInt("max_sessions"),

		NegotiateTimeout: v.GetDuration("negotiate_timeout"),
		WriteTimeout:     v.GetDuration("write_timeout"),
		DrainTimeout:     v.GetDuration("drain_timeout"),
		ShutdownTimeout:  v.GetDuration("shutdown_timeout"),
	}

	cfg.Ops.Enabled = v.GetBool("ops.enabled")
	cfg.Ops.Address = v.GetString("ops.address")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.Notify.SMTP = notify.SMTPConfig{
		Host:     v.GetString("notify.smtp.host"),
		Port:     v.GetInt("notify.smtp.port"),
		Username: v.GetString("notify.smtp.username"),
		Password: v.GetString("notify.smtp.password"),
		From:     v.GetString("notify.smtp.from"),
		To:       v.GetString("notify.smtp.to"),
		AppName:  v.GetString("notify.smtp.app_name"),
	}
	cfg.Notify.MQTT = notify.MQTTConfig{
		BrokerURL: v.GetString("notify.mqtt.broker_url"),
		ClientID:  v.GetString("notify.mqtt.client_id"),
		Username:  v.GetString("notify.mqtt.username"),
		Password:  v.GetString("notify.mqtt.password"),
		Topic:     v.GetString("notify.mqtt.topic"),
	}
	return cfg
}

// Path returns the path of the config file that was loaded, or "" if
// the configuration came entirely from defaults and environment.
func (c *Config) Path() string {
	return c.configPath
}

// ServerConfig converts to the server package's shape.
func (c *Config) ServerConfig() *server.ServerConfig {
	return &server.ServerConfig{
		Address:         c.Listen,
		MaxSessions:     c.MaxSessions,
		ShutdownTimeout: c.ShutdownTimeout,
		Session: &server.SessionConfig{
			NegotiateTimeout: c.NegotiateTimeout,
			WriteTimeout:     c.WriteTimeout,
			DrainTimeout:     c.DrainTimeout,
		},
	}
}

// OpsServerConfig converts to the ops package's shape.
func (c *Config) OpsServerConfig() ops.Config {
	return ops.Config{Address: c.Ops.Address}
}

// NewLogger builds the root logger for the configured level and format.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
