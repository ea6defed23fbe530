package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/postwave/postwave/pkg/logger"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logger      logger.Config     `yaml:"logger"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Platforms   PlatformsConfig   `yaml:"platforms"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Assets      AssetsConfig      `yaml:"assets"`
	Limits      LimitsConfig      `yaml:"limits"`
	Hashtags    HashtagConfig     `yaml:"hashtags"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type SchedulerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	SweepInterval     string `yaml:"sweep_interval"`
	StuckTimeout      string `yaml:"stuck_timeout"`
	PublishTimeout    string `yaml:"publish_timeout"`
	MaxAttempts       int    `yaml:"max_attempts"`
	BatchLimit        int    `yaml:"batch_limit"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
}

type PlatformsConfig struct {
	Facebook  FacebookConfig  `yaml:"facebook"`
	Instagram InstagramConfig `yaml:"instagram"`
	LinkedIn  LinkedInConfig  `yaml:"linkedin"`
	Twitter   TwitterConfig   `yaml:"twitter"`
}

type FacebookConfig struct {
	Enabled      bool   `yaml:"enabled"`
	GraphBaseURL string `yaml:"graph_base_url"`
}

type InstagramConfig struct {
	Enabled      bool   `yaml:"enabled"`
	GraphBaseURL string `yaml:"graph_base_url"`
}

type LinkedInConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIBaseURL string `yaml:"api_base_url"`
}

type TwitterConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	APIBaseURL     string `yaml:"api_base_url"`
	UploadBaseURL  string `yaml:"upload_base_url"`
}

type CredentialsConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type AssetsConfig struct {
	BaseURL    string `yaml:"base_url"`
	PublicBase string `yaml:"public_base"`
}

// LimitsConfig holds the per-platform character limits enforced at create
// and edit time.
type LimitsConfig struct {
	Facebook  int `yaml:"facebook"`
	Instagram int `yaml:"instagram"`
	LinkedIn  int `yaml:"linkedin"`
	Twitter   int `yaml:"twitter"`
}

// Limit returns the character limit for one platform tag, 0 when unknown.
func (l *LimitsConfig) Limit(tag string) int {
	switch tag {
	case "facebook":
		return l.Facebook
	case "instagram":
		return l.Instagram
	case "linkedin":
		return l.LinkedIn
	case "twitter":
		return l.Twitter
	}
	return 0
}

// All returns the limits keyed by platform tag.
func (l *LimitsConfig) All() map[string]int {
	return map[string]int{
		"facebook":  l.Facebook,
		"instagram": l.Instagram,
		"linkedin":  l.LinkedIn,
		"twitter":   l.Twitter,
	}
}

type HashtagConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5620
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Scheduler.SweepInterval == "" {
		cfg.Scheduler.SweepInterval = "15s"
	}
	if cfg.Scheduler.StuckTimeout == "" {
		cfg.Scheduler.StuckTimeout = "5m"
	}
	if cfg.Scheduler.PublishTimeout == "" {
		cfg.Scheduler.PublishTimeout = "60s"
	}
	if cfg.Scheduler.MaxAttempts == 0 {
		cfg.Scheduler.MaxAttempts = 3
	}
	if cfg.Scheduler.BatchLimit == 0 {
		cfg.Scheduler.BatchLimit = 50
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 10
	}
	if cfg.Hashtags.BaseURL == "" {
		cfg.Hashtags.BaseURL = "https://api.ritekit.com"
	}
	if cfg.Limits.Facebook == 0 {
		cfg.Limits.Facebook = 63206
	}
	if cfg.Limits.Instagram == 0 {
		cfg.Limits.Instagram = 2200
	}
	if cfg.Limits.LinkedIn == 0 {
		cfg.Limits.LinkedIn = 3000
	}
	if cfg.Limits.Twitter == 0 {
		cfg.Limits.Twitter = 280
	}

	return cfg, nil
}
