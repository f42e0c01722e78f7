package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Mailbox  MailboxConfig  `yaml:"mailbox"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Engine   EngineConfig   `yaml:"engine"`
}

type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"` // "v1" | "v2.2"

	MinRequestIntervalMS int `yaml:"min_request_interval_ms"`
}

type MailboxConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Folder   string `yaml:"folder"`
	Security string `yaml:"security"` // "implicit_tls" | "starttls" | "plaintext"

	// Dedicated — ящик целиком под трекинг: сканируются все письма,
	// совпавшие помечаются прочитанными.
	Dedicated      bool `yaml:"dedicated"`
	LookbackHours  int  `yaml:"lookback_hours"`
	FetchLimit     int  `yaml:"fetch_limit"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "file" | "redis" | "postgres"

	FilePath string `yaml:"file_path"`

	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Key  string `yaml:"key"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (c PostgresConfig) ConnString() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, ssl)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	PackageUpdatedTopicName string `yaml:"package_updated_topic_name"`
}

func (c KafkaConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type EngineConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	UpdateIntervalMinutes int `yaml:"update_interval_minutes"`
	EmailIntervalMinutes  int `yaml:"email_interval_minutes"`
	ArchiveAfterDays      int `yaml:"archive_after_days"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
