package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
	ListenAddr string `yaml:"listen_addr"`

	MediaRoot              string   `yaml:"media_root"`
	AllowedImageMimeTypes  []string `yaml:"allowed_image_mime_types"`
	MaxTotalAttachmentSize int64    `yaml:"max_total_attachment_size"` // bytes
	MaxPostPhotos          int      `yaml:"max_post_photos"`

	// Pipeline timing. Values are plain integers; the unit is applied at
	// the call site (see queue and watcher setup).
	WatcherRecheckDelaySec int `yaml:"watcher_recheck_delay_sec"` // delay before re-polling rendition readiness
	QueuePollIntervalMs    int `yaml:"queue_poll_interval_ms"`
	QueueWorkers           int `yaml:"queue_workers"`
	TaskLeaseSec           int `yaml:"task_lease_sec"` // re-delivery window for crashed workers

	JwtTTLHours   int  `yaml:"jwt_ttl_hours"`
	SecureCookies bool `yaml:"secure_cookies"`
}

type Private struct {
	Pg     Pg     `yaml:"pg"`
	JwtKey string `yaml:"jwt_key"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	return time.Duration(c.Public.JwtTTLHours) * time.Hour
}

func (c *Config) WatcherRecheckDelay() time.Duration {
	return time.Duration(c.Public.WatcherRecheckDelaySec) * time.Second
}

func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Public.QueuePollIntervalMs) * time.Millisecond
}

func (c *Config) TaskLease() time.Duration {
	return time.Duration(c.Public.TaskLeaseSec) * time.Second
}

// Default returns public config with sane pipeline defaults; yaml values override.
func Default() Public {
	return Public{
		LogLevel:               "info",
		ListenAddr:             ":8080",
		MediaRoot:              "media",
		AllowedImageMimeTypes:  []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
		MaxTotalAttachmentSize: 50 << 20,
		MaxPostPhotos:          10,
		WatcherRecheckDelaySec: 2,
		QueuePollIntervalMs:    500,
		QueueWorkers:           4,
		TaskLeaseSec:           60,
		JwtTTLHours:            24 * 7,
	}
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	public := Default()
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	return &Config{public, private}
}
