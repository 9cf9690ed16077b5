package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	CheckIn  CheckInConfig  `mapstructure:"checkin"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	App      AppConfig      `mapstructure:"app"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// CheckInConfig - EarnOS check-in API
type CheckInConfig struct {
	Endpoint         string  `mapstructure:"endpoint"`
	Origin           string  `mapstructure:"origin"`
	Referer          string  `mapstructure:"referer"`
	UserAgent        string  `mapstructure:"user_agent"`
	AcceptLanguage   string  `mapstructure:"accept_language"`
	RequestTimeout   int     `mapstructure:"request_timeout"`   // seconds
	DelayMs          int     `mapstructure:"delay_ms"`          // pause between accounts
	MaxRPS           float64 `mapstructure:"max_rps"`           // 0 = no limiter, only delay_ms spaces requests
	MaxRetries       int     `mapstructure:"max_retries"`       // 0 = one attempt per account per run
	BreakerThreshold uint32  `mapstructure:"breaker_threshold"` // 0 = breaker disabled
	MaxResponseSize  int64   `mapstructure:"max_response_size"`
}

type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	Timezone   string `mapstructure:"timezone"` // IANA name, empty = local
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type AppConfig struct {
	TokensFile   string `mapstructure:"tokens_file"`
	DataDir      string `mapstructure:"data_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
	HistoryLimit int    `mapstructure:"history_limit"` // 0 disables the run journal
}

// TelegramConfig - optional run summary notifications
type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	ChatID      string `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

func (c CheckInConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

func (c CheckInConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Location resolves the schedule time zone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// LoadConfig layers, lowest priority first:
// 1. defaults
// 2. config.yaml in the working directory (or the file given with --config)
// 3. .env file (loaded into the process environment)
// 4. environment variables
// 5. command-line flags
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	configFile := ""
	if flags != nil {
		configFile, _ = flags.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.yaml: %w", err)
			}
		}
	}

	setupEnvAliases(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("checkin.endpoint", "CHECKIN_ENDPOINT")
	v.BindEnv("checkin.origin", "CHECKIN_ORIGIN")
	v.BindEnv("checkin.referer", "CHECKIN_REFERER")
	v.BindEnv("checkin.user_agent", "CHECKIN_USER_AGENT")
	v.BindEnv("checkin.accept_language", "CHECKIN_ACCEPT_LANGUAGE")
	v.BindEnv("checkin.request_timeout", "CHECKIN_REQUEST_TIMEOUT")
	v.BindEnv("checkin.delay_ms", "CHECKIN_DELAY_MS")
	v.BindEnv("checkin.max_rps", "CHECKIN_MAX_RPS")
	v.BindEnv("checkin.max_retries", "CHECKIN_MAX_RETRIES")
	v.BindEnv("checkin.breaker_threshold", "CHECKIN_BREAKER_THRESHOLD")
	v.BindEnv("checkin.max_response_size", "CHECKIN_MAX_RESPONSE_SIZE")

	v.BindEnv("schedule.cron", "SCHEDULE_CRON")
	v.BindEnv("schedule.timezone", "SCHEDULE_TIMEZONE")
	v.BindEnv("schedule.run_on_start", "SCHEDULE_RUN_ON_START")

	v.BindEnv("app.tokens_file", "TOKENS_FILE")
	v.BindEnv("app.data_dir", "APP_DATA_DIR")
	v.BindEnv("app.logs_dir", "APP_LOGS_DIR")
	v.BindEnv("app.history_limit", "APP_HISTORY_LIMIT")

	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
	v.BindEnv("telegram.api_endpoint", "TELEGRAM_API_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// Check-in
	v.SetDefault("checkin.endpoint", "https://api.earnos.com/trpc/streak.checkIn?batch=1")
	v.SetDefault("checkin.origin", "https://app.earnos.com")
	v.SetDefault("checkin.referer", "https://app.earnos.com/")
	v.SetDefault("checkin.user_agent", "")
	v.SetDefault("checkin.accept_language", "en-US,en;q=0.7")
	v.SetDefault("checkin.request_timeout", 30)
	v.SetDefault("checkin.delay_ms", 2000)
	v.SetDefault("checkin.max_rps", 0.0) // limiter off; delay_ms paces the batch
	v.SetDefault("checkin.max_retries", 0)
	v.SetDefault("checkin.breaker_threshold", 0)
	v.SetDefault("checkin.max_response_size", 1024*1024) // 1MB

	// Schedule
	v.SetDefault("schedule.cron", "1 0 * * *") // 00:01 every day
	v.SetDefault("schedule.timezone", "")
	v.SetDefault("schedule.run_on_start", true)

	// App
	v.SetDefault("app.tokens_file", "tokens.txt")
	v.SetDefault("app.data_dir", "data_out")
	v.SetDefault("app.logs_dir", "logs")
	v.SetDefault("app.history_limit", 30)

	// Telegram
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_endpoint", "")
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"tokens":       "app.tokens_file",
	"data-dir":     "app.data_dir",
	"logs-dir":     "app.logs_dir",
	"endpoint":     "checkin.endpoint",
	"delay-ms":     "checkin.delay_ms",
	"timeout":      "checkin.request_timeout",
	"cron":         "schedule.cron",
	"timezone":     "schedule.timezone",
	"run-on-start": "schedule.run_on_start",
}

// RegisterFlags declares the flags LoadConfig understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file (default ./config.yaml)")
	fs.String("tokens", "tokens.txt", "Tokens file, one bearer token per line (env: TOKENS_FILE)")
	fs.String("data-dir", "data_out", "Directory for the run history journal (env: APP_DATA_DIR)")
	fs.String("logs-dir", "logs", "Directory for app.log (env: APP_LOGS_DIR)")
	fs.String("endpoint", "https://api.earnos.com/trpc/streak.checkIn?batch=1", "Check-in endpoint (env: CHECKIN_ENDPOINT)")
	fs.Int("delay-ms", 2000, "Pause between accounts in milliseconds (env: CHECKIN_DELAY_MS)")
	fs.Int("timeout", 30, "Request timeout in seconds (env: CHECKIN_REQUEST_TIMEOUT)")
	fs.String("cron", "1 0 * * *", "Five-field cron expression for scheduled runs (env: SCHEDULE_CRON)")
	fs.String("timezone", "", "IANA time zone for the schedule, empty = local (env: SCHEDULE_TIMEZONE)")
	fs.Bool("run-on-start", true, "Run once immediately at startup (env: SCHEDULE_RUN_ON_START)")
}

// bindFlags binds only flags that exist on fs, so subcommands may register a subset.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.App.TokensFile) == "" {
		return fmt.Errorf("app.tokens_file is required")
	}
	if cfg.CheckIn.DelayMs < 0 {
		return fmt.Errorf("checkin.delay_ms must be >= 0, got %d", cfg.CheckIn.DelayMs)
	}
	if cfg.CheckIn.RequestTimeout <= 0 {
		return fmt.Errorf("checkin.request_timeout must be > 0, got %d", cfg.CheckIn.RequestTimeout)
	}
	if cfg.CheckIn.MaxRPS < 0 {
		return fmt.Errorf("checkin.max_rps must be >= 0, got %g", cfg.CheckIn.MaxRPS)
	}
	if cfg.CheckIn.MaxRetries < 0 {
		return fmt.Errorf("checkin.max_retries must be >= 0, got %d", cfg.CheckIn.MaxRetries)
	}
	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("invalid schedule.cron %q: %w", cfg.Schedule.Cron, err)
	}
	if _, err := cfg.Schedule.Location(); err != nil {
		return err
	}
	if (cfg.Telegram.BotToken == "") != (cfg.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
