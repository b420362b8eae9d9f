package config

import (
	"fmt"
	"strings"
	"sync"

	"inviteflow/core/constants"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SharedLocks switches per-inbox locking to redis leases, required when
	// more than one engine instance shares the same inbox pool.
	SharedLocks bool
}

type WorkerConfig struct {
	Concurrency int
	// ResetCron fires the daily counter reset, evaluated in Timezone.
	ResetCron string
	Timezone  string
}

// SchedulingConfig holds the global defaults. Campaigns may override any of
// these per campaign; Resolve in the schedule module merges the two.
type SchedulingConfig struct {
	MinLeadDays          int
	MaxLeadDays          int
	StartHour            int
	EndHour              int
	CooldownMinutes      int
	MaxConsecutiveErrors int
	HealthThreshold      int
	DailyQuota           int
	ExcludeWeekends      bool
	AllowDoubleBooking   bool
	FallbackPolicy       string
}

type CryptoConfig struct {
	// CredentialKey is the hex-encoded 32-byte key sealing inbox credentials.
	CredentialKey string
}

type LoggerConfig struct {
	Level  string
	Pretty bool
}

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Worker     WorkerConfig
	Scheduling SchedulingConfig
	Crypto     CryptoConfig
	Logger     LoggerConfig
}

var (
	instance *Config
	mu       sync.RWMutex
)

func setDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", constants.ServerDefaultPort)
	viper.SetDefault("server.base_url", "")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "inviteflow")
	viper.SetDefault("database.ssl_mode", constants.DatabaseSSLMode)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.shared_locks", false)

	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.reset_cron", "0 0 * * *")
	viper.SetDefault("worker.timezone", "UTC")

	viper.SetDefault("scheduling.min_lead_days", constants.DefaultMinLeadTimeDays)
	viper.SetDefault("scheduling.max_lead_days", constants.DefaultMaxLeadTimeDays)
	viper.SetDefault("scheduling.start_hour", constants.DefaultPreferredStartHour)
	viper.SetDefault("scheduling.end_hour", constants.DefaultPreferredEndHour)
	viper.SetDefault("scheduling.cooldown_minutes", constants.DefaultCooldownMinutes)
	viper.SetDefault("scheduling.max_consecutive_errors", constants.DefaultMaxErrorsBeforePause)
	viper.SetDefault("scheduling.health_threshold", constants.DefaultHealthThreshold)
	viper.SetDefault("scheduling.daily_quota", constants.DefaultDailyQuota)
	viper.SetDefault("scheduling.exclude_weekends", constants.DefaultExcludeWeekends)
	viper.SetDefault("scheduling.allow_double_booking", false)
	viper.SetDefault("scheduling.fallback_policy", constants.FallbackSkip)

	viper.SetDefault("crypto.credential_key", "")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.pretty", false)
}

// Load reads .env (if present) and the environment, builds the config and
// installs it as the process-wide instance. Scheduling defaults that cannot
// produce a valid slot are rejected here so the engine never starts with
// them.
func Load() (*Config, error) {
	_ = godotenv.Load()

	setDefaults()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:    viper.GetString("server.host"),
			Port:    viper.GetInt("server.port"),
			BaseURL: viper.GetString("server.base_url"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("database.host"),
			Port:     viper.GetInt("database.port"),
			User:     viper.GetString("database.user"),
			Password: viper.GetString("database.password"),
			Name:     viper.GetString("database.name"),
			SSLMode:  viper.GetString("database.ssl_mode"),
		},
		Redis: RedisConfig{
			Addr:        viper.GetString("redis.addr"),
			Password:    viper.GetString("redis.password"),
			DB:          viper.GetInt("redis.db"),
			SharedLocks: viper.GetBool("redis.shared_locks"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
			ResetCron:   viper.GetString("worker.reset_cron"),
			Timezone:    viper.GetString("worker.timezone"),
		},
		Scheduling: SchedulingConfig{
			MinLeadDays:          viper.GetInt("scheduling.min_lead_days"),
			MaxLeadDays:          viper.GetInt("scheduling.max_lead_days"),
			StartHour:            viper.GetInt("scheduling.start_hour"),
			EndHour:              viper.GetInt("scheduling.end_hour"),
			CooldownMinutes:      viper.GetInt("scheduling.cooldown_minutes"),
			MaxConsecutiveErrors: viper.GetInt("scheduling.max_consecutive_errors"),
			HealthThreshold:      viper.GetInt("scheduling.health_threshold"),
			DailyQuota:           viper.GetInt("scheduling.daily_quota"),
			ExcludeWeekends:      viper.GetBool("scheduling.exclude_weekends"),
			AllowDoubleBooking:   viper.GetBool("scheduling.allow_double_booking"),
			FallbackPolicy:       viper.GetString("scheduling.fallback_policy"),
		},
		Crypto: CryptoConfig{
			CredentialKey: viper.GetString("crypto.credential_key"),
		},
		Logger: LoggerConfig{
			Level:  viper.GetString("logger.level"),
			Pretty: viper.GetBool("logger.pretty"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	s := c.Scheduling
	if s.MinLeadDays < 0 || s.MaxLeadDays < s.MinLeadDays {
		return fmt.Errorf("invalid lead time window: min %d max %d", s.MinLeadDays, s.MaxLeadDays)
	}
	if s.StartHour < 0 || s.EndHour > 24 || s.StartHour >= s.EndHour {
		return fmt.Errorf("invalid sending hour window: %d-%d", s.StartHour, s.EndHour)
	}
	if s.DailyQuota < 1 {
		return fmt.Errorf("daily quota must be positive, got %d", s.DailyQuota)
	}
	switch s.FallbackPolicy {
	case constants.FallbackSkip, constants.FallbackForce, constants.FallbackNeedsAttention:
	default:
		return fmt.Errorf("unknown fallback policy %q", s.FallbackPolicy)
	}
	return nil
}

// Get returns the loaded config. It panics when Load has not run; use
// GetSafe from code paths that may run before startup completes.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		panic("config: not loaded")
	}
	return instance
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// Set replaces the process config. Test helper.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}
