package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	State       StateConfig       `mapstructure:"state"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Log         LogConfig         `mapstructure:"log"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Recruitment RecruitmentConfig `mapstructure:"recruitment"`
	Activity    ActivityConfig    `mapstructure:"activity"`
	Rank        RankConfig        `mapstructure:"rank"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Discord     DiscordConfig     `mapstructure:"discord"`
	Riot        RiotConfig        `mapstructure:"riot"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Crypto      CryptoConfig      `mapstructure:"crypto"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Backend  string         `mapstructure:"backend"` // "postgres" | "memory"
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns host:port for clients that take a single address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StateConfig struct {
	Backend string        `mapstructure:"backend"` // "redis" | "memory"
	LinkTTL time.Duration `mapstructure:"link_ttl"`
}

type JWTConfig struct {
	SigningKey     string        `mapstructure:"signing_key"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type AdminConfig struct {
	MemberIDs []string `mapstructure:"member_ids"`
}

type RecruitmentConfig struct {
	Timezone string `mapstructure:"timezone"`
	// RejectAfterDeadline turns the advisory deadline into a hard cutoff for joins.
	RejectAfterDeadline bool `mapstructure:"reject_after_deadline"`
}

// Location resolves the reference timezone used for deadlines.
func (c RecruitmentConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type ActivityConfig struct {
	Window           time.Duration `mapstructure:"window"`
	TopN             int           `mapstructure:"top_n"`
	GhostThreshold   float64       `mapstructure:"ghost_threshold"`
	RegularRoleName  string        `mapstructure:"regular_role_name"`
	RegularRoleColor int           `mapstructure:"regular_role_color"`
	GhostRoleName    string        `mapstructure:"ghost_role_name"`
	GhostRoleColor   int           `mapstructure:"ghost_role_color"`
	Workers          int           `mapstructure:"workers"`
}

type RankConfig struct {
	RolePrefix    string        `mapstructure:"role_prefix"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	Workers       int           `mapstructure:"workers"`
}

type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron"`
	GuildIDs   []string      `mapstructure:"guild_ids"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type DiscordConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type RiotConfig struct {
	APIKey       string `mapstructure:"api_key"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	AuthBaseURL  string `mapstructure:"auth_base_url"`
	APIBaseURL   string `mapstructure:"api_base_url"`
}

type NotifyConfig struct {
	Backend     string `mapstructure:"backend"` // "direct" | "queue"
	Concurrency int    `mapstructure:"concurrency"`
}

type CryptoConfig struct {
	TokenKey string `mapstructure:"token_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.graceful_shutdown_timeout", "15s")
	v.SetDefault("database.backend", "postgres")
	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.link_ttl", "10m")
	v.SetDefault("jwt.issuer", "partyboard")
	v.SetDefault("jwt.access_token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("recruitment.timezone", "Asia/Tokyo")
	v.SetDefault("activity.window", "720h")
	v.SetDefault("activity.top_n", 5)
	v.SetDefault("activity.ghost_threshold", 0.9)
	v.SetDefault("activity.regular_role_name", "Regular Member")
	v.SetDefault("activity.regular_role_color", 0xF1C40F)
	v.SetDefault("activity.ghost_role_name", "Ghost Member")
	v.SetDefault("activity.ghost_role_color", 0x607D8B)
	v.SetDefault("activity.workers", 8)
	v.SetDefault("rank.role_prefix", "Valorant - ")
	v.SetDefault("rank.lookup_timeout", "10s")
	v.SetDefault("rank.workers", 4)
	v.SetDefault("scheduler.cron", "0 4 * * *")
	v.SetDefault("scheduler.job_timeout", "10m")
	v.SetDefault("riot.auth_base_url", "https://auth.riotgames.com")
	v.SetDefault("riot.api_base_url", "https://asia.api.riotgames.com")
	v.SetDefault("notify.backend", "direct")
	v.SetDefault("notify.concurrency", 5)
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: DATABASE_POSTGRES_HOST -> database.postgres.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Backend {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database backend %q", c.Database.Backend))
	}
	switch c.State.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}
	switch c.Notify.Backend {
	case "direct", "queue":
	default:
		errs = append(errs, fmt.Errorf("unknown notify backend %q", c.Notify.Backend))
	}
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("jwt.signing_key is required"))
	}
	if c.Activity.Window <= 0 {
		errs = append(errs, errors.New("activity.window must be positive"))
	}
	if c.Activity.TopN <= 0 {
		errs = append(errs, errors.New("activity.top_n must be positive"))
	}
	// An empty prefix would put every guild role in the rank family.
	if strings.TrimSpace(c.Rank.RolePrefix) == "" {
		errs = append(errs, errors.New("rank.role_prefix is required"))
	}
	if c.State.LinkTTL <= 0 {
		errs = append(errs, errors.New("state.link_ttl must be positive"))
	}
	if _, err := c.Recruitment.Location(); err != nil {
		errs = append(errs, fmt.Errorf("recruitment.timezone: %w", err))
	}
	return errors.Join(errs...)
}
