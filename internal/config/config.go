package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full prota configuration.
type Config struct {
	Port          int    `mapstructure:"port"`
	DBPath        string `mapstructure:"db_path"`
	APIToken      string `mapstructure:"api_token"`
	PointsPerTask int    `mapstructure:"points_per_task"`
	AutoGenerate  bool   `mapstructure:"auto_generate"`

	Log       LogConfig       `mapstructure:"log"`
	AI        AIConfig        `mapstructure:"ai"`
	Mail      MailConfig      `mapstructure:"mail"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Backup    BackupConfig    `mapstructure:"backup"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AIConfig points at an OpenAI-compatible chat completion endpoint.
type AIConfig struct {
	Token       string        `mapstructure:"token"`
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
}

type MailConfig struct {
	Transport     string `mapstructure:"transport"`
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	From          string `mapstructure:"from"`
	To            string `mapstructure:"to"`
	PostmarkToken string `mapstructure:"postmark_token"`
}

type RemindersConfig struct {
	Timezone string        `mapstructure:"timezone"`
	Interval time.Duration `mapstructure:"interval"`
	File     string        `mapstructure:"file"`
}

// BackupConfig configures encrypted snapshot uploads to S3-compatible storage.
type BackupConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Bucket     string        `mapstructure:"bucket"`
	Region     string        `mapstructure:"region"`
	AccessKey  string        `mapstructure:"access_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Passphrase string        `mapstructure:"passphrase"`
	Interval   time.Duration `mapstructure:"interval"`
}

const (
	TransportSMTP     = "smtp"
	TransportPostmark = "postmark"
)

var defaults = map[string]any{
	"port":            3000,
	"db_path":         "prota.db",
	"api_token":       "",
	"points_per_task": 10,
	"auto_generate":   false,

	"log.level":  "info",
	"log.format": "text",

	"ai.token":       "",
	"ai.url":         "https://router.huggingface.co/v1/chat/completions",
	"ai.model":       "deepseek-ai/DeepSeek-V3.2:novita",
	"ai.timeout":     "30s",
	"ai.temperature": 0.7,

	"mail.transport":      TransportSMTP,
	"mail.smtp_host":      "smtp.gmail.com",
	"mail.smtp_port":      587,
	"mail.username":       "",
	"mail.password":       "",
	"mail.from":           "",
	"mail.to":             "",
	"mail.postmark_token": "",

	"reminders.timezone": "UTC",
	"reminders.interval": "30s",
	"reminders.file":     "",

	"backup.endpoint":   "",
	"backup.bucket":     "",
	"backup.region":     "us-east-1",
	"backup.access_key": "",
	"backup.secret_key": "",
	"backup.passphrase": "",
	"backup.interval":   "0s",
}

// Environment names used by earlier deployments, checked after the
// PROTA_ prefixed name.
var legacyEnv = map[string]string{
	"port":               "PORT",
	"ai.token":           "HF_TOKEN",
	"mail.username":      "GMAIL_USER",
	"mail.password":      "GMAIL_PASSWORD",
	"reminders.timezone": "FUSO_HORARIO",
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("PROTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, "PROTA_"+envName(key), legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}
	if cfg.Mail.To == "" {
		cfg.Mail.To = cfg.Mail.Username
	}
	return &cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.PointsPerTask < 0 {
		errs = append(errs, errors.New("points_per_task must not be negative"))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("ai.timeout must be positive"))
	}
	if c.Mail.Transport != TransportSMTP && c.Mail.Transport != TransportPostmark {
		errs = append(errs, fmt.Errorf("unknown mail transport %q", c.Mail.Transport))
	}
	if _, err := time.LoadLocation(c.Reminders.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("unknown timezone %q: %w", c.Reminders.Timezone, err))
	}
	if c.Reminders.Interval <= 0 {
		errs = append(errs, errors.New("reminders.interval must be positive"))
	}
	if c.Backup.Interval < 0 {
		errs = append(errs, errors.New("backup.interval must not be negative"))
	}
	return errors.Join(errs...)
}

// Location returns the reminder timezone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AIConfigured reports whether a chat completion token is set. Without
// one every generation uses the fallback tables.
func (c *Config) AIConfigured() bool {
	return c.AI.Token != ""
}

// BackupConfigured reports whether snapshots can be uploaded.
func (c *Config) BackupConfigured() bool {
	b := c.Backup
	return b.Bucket != "" && b.AccessKey != "" && b.SecretKey != "" && b.Passphrase != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// FileExists reports whether an optional config file is present.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
