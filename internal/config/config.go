package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Proxy    ProxyConfig    `mapstructure:"proxy" validate:"required"`
	Scraper  ScraperConfig  `mapstructure:"scraper" validate:"required"`
	Sites    SitesConfig    `mapstructure:"sites" validate:"required"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Bot      BotConfig      `mapstructure:"bot" validate:"required"`
}

type ProxyConfig struct {
	PoolFile         string        `mapstructure:"pool_file" validate:"required,min=1"`
	BlacklistFile    string        `mapstructure:"blacklist_file" validate:"required,min=1"`
	CacheFile        string        `mapstructure:"cache_file" validate:"required,min=1"`
	TestURL          string        `mapstructure:"test_url" validate:"required,url"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout" validate:"required,min=1s,max=1m"`
	LatencyThreshold time.Duration `mapstructure:"latency_threshold" validate:"required,min=100ms,max=30s"`
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"required,min=10s,max=1h"`
	UpdateInterval   time.Duration `mapstructure:"update_interval" validate:"required,min=10s,max=1h"`
	MaxFailures      int           `mapstructure:"max_failures" validate:"required,min=1,max=100"`
	BatchSize        int           `mapstructure:"batch_size" validate:"required,min=1,max=200"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" validate:"required,min=30s,max=1h"`
	StopJoinTimeout  time.Duration `mapstructure:"stop_join_timeout" validate:"required,min=1s,max=1m"`
}

type ScraperConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"required,min=5s,max=2m"`
	UserAgent string        `mapstructure:"user_agent" validate:"required,min=10"`
	Sources   []string      `mapstructure:"sources" validate:"required,min=1,dive,oneof=proxyscrape freeproxylist sslproxies"`
}

type SitesConfig struct {
	Enabled        []string      `mapstructure:"enabled" validate:"required,min=1,dive,oneof=usvisa vfsglobal canadavisa"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,min=1s,max=1m"`
	UserAgent      string        `mapstructure:"user_agent" validate:"required,min=10"`
}

type NotifierConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BotToken      string        `mapstructure:"bot_token"`
	ChatIDs       []string      `mapstructure:"chat_ids"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"min=1,max=10"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=2m"`
}

type DatabaseConfig struct {
	Path            string        `mapstructure:"path" validate:"required,min=1"`
	MaxAge          time.Duration `mapstructure:"max_age" validate:"required,min=1h,max=168h"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"required,min=30m,max=24h"`
}

type BotConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" validate:"required,min=30s,max=1h"`
	EmptyPoolBackoff time.Duration `mapstructure:"empty_pool_backoff" validate:"required,min=5s,max=10m"`
	StatsEveryCycles int           `mapstructure:"stats_every_cycles" validate:"required,min=1,max=100"`
}

// setDefaults configures default values for viper
func setDefaults() {
	// Proxy pool defaults
	viper.SetDefault("proxy.pool_file", "./proxies/proxy_pool.txt")
	viper.SetDefault("proxy.blacklist_file", "./proxies/blacklist.txt")
	viper.SetDefault("proxy.cache_file", "./proxies/proxy_pool.json")
	viper.SetDefault("proxy.test_url", "http://httpbin.org/ip")
	viper.SetDefault("proxy.probe_timeout", "3s")
	viper.SetDefault("proxy.latency_threshold", "2s")
	viper.SetDefault("proxy.cooldown", "5m")
	viper.SetDefault("proxy.update_interval", "1m")
	viper.SetDefault("proxy.max_failures", 1)
	viper.SetDefault("proxy.batch_size", 10)
	viper.SetDefault("proxy.cache_ttl", "5m")
	viper.SetDefault("proxy.stop_join_timeout", "5s")

	// Scraper defaults
	viper.SetDefault("scraper.timeout", "30s")
	viper.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("scraper.sources", []string{"proxyscrape", "freeproxylist", "sslproxies"})

	// Site checker defaults
	viper.SetDefault("sites.enabled", []string{"usvisa", "vfsglobal", "canadavisa"})
	viper.SetDefault("sites.request_timeout", "3s")
	viper.SetDefault("sites.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Notifier defaults
	viper.SetDefault("notifier.enabled", false)
	viper.SetDefault("notifier.bot_token", "")
	viper.SetDefault("notifier.chat_ids", []string{})
	viper.SetDefault("notifier.retry_attempts", 3)
	viper.SetDefault("notifier.timeout", "30s")

	// Database defaults
	viper.SetDefault("database.path", "./data/myvisabot.db")
	viper.SetDefault("database.max_age", "24h")
	viper.SetDefault("database.cleanup_interval", "1h")

	// Bot loop defaults
	viper.SetDefault("bot.poll_interval", "5m")
	viper.SetDefault("bot.empty_pool_backoff", "30s")
	viper.SetDefault("bot.stats_every_cycles", 10)
}

// LoadConfig loads configuration from multiple sources with validation
func LoadConfig(configPath string) (*Config, error) {
	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/myvisabot")

	// Set environment variable prefix and enable reading from env
	viper.SetEnvPrefix("MYVISABOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Try to read config file if provided or found
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
		log.Println("No config file found, using defaults and environment variables")
	}

	// The bot token is a secret, prefer the env var over the file
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		viper.Set("notifier.bot_token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		ids := viper.GetStringSlice("notifier.chat_ids")
		viper.Set("notifier.chat_ids", append(ids, chatID))
	}

	// Unmarshal configuration
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	validate := validator.New()

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if config.Notifier.Enabled && config.Notifier.BotToken == "" {
		return nil, fmt.Errorf("notifier enabled but no bot token configured")
	}

	return &config, nil
}

// SaveConfigTemplate generates a sample configuration file
func SaveConfigTemplate(path string) error {
	setDefaults()
	viper.SetConfigType("yaml")

	if err := viper.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}

	return nil
}

// PrintConfig displays the current configuration (for debugging)
func PrintConfig(config *Config) {
	log.Printf("Configuration loaded:")
	log.Printf("  Pool: %s (blacklist: %s, cache: %s)", config.Proxy.PoolFile, config.Proxy.BlacklistFile, config.Proxy.CacheFile)
	log.Printf("  Prober: %v timeout, %v cooldown, batch %d, max failures %d", config.Proxy.ProbeTimeout, config.Proxy.Cooldown, config.Proxy.BatchSize, config.Proxy.MaxFailures)
	log.Printf("  Background update: every %v, cache TTL %v", config.Proxy.UpdateInterval, config.Proxy.CacheTTL)
	log.Printf("  Database: %s (max age: %v)", config.Database.Path, config.Database.MaxAge)
	if config.Notifier.BotToken != "" {
		log.Printf("  Telegram: [SET] (%d chats)", len(config.Notifier.ChatIDs))
	} else {
		log.Printf("  Telegram: [NOT SET]")
	}
	log.Printf("  Scraper sources: %v", config.Scraper.Sources)
	log.Printf("  Sites: %v (poll every %v)", config.Sites.Enabled, config.Bot.PollInterval)
}
