package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Monitor  MonitorConfig
	Feeds    FeedConfig
	API      APIConfig
	Telegram TelegramConfig
	SMTP     SMTPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Enabled  bool
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type KafkaConfig struct {
	Brokers       []string
	TopicReadings string
	TopicAlerts   string
	NumPartitions int
	Enabled       bool
}

type MonitorConfig struct {
	PollInterval     time.Duration
	HistoryMax       int
	WarmLimit        int
	RainfallDistrict string
	AqhiStation      string
	TrafficRegion    string
	UseMockData      bool
	MockDataDir      string
	MigrationsDir    string
}

// FeedConfig holds the upstream data.gov.hk endpoints. The defaults point at
// the published HK Observatory, EPD and Transport Department feeds.
type FeedConfig struct {
	WarningsURL string
	RainfallURL string
	AqhiURL     string
	TrafficURL  string
}

type APIConfig struct {
	Port    int
	Enabled bool
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "hkmonitor_user"),
			Password: getEnv("DB_PASSWORD", "hkmonitor_pass"),
			DBName:   getEnv("DB_NAME", "hkmonitor_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Enabled:  getEnvAsBool("DB_ENABLED", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "hkmonitor.readings"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "hkmonitor.alerts"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 4),
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
		},
		Monitor: MonitorConfig{
			PollInterval:     getEnvAsDuration("MONITOR_POLL_INTERVAL", 5*time.Minute),
			HistoryMax:       getEnvAsInt("MONITOR_HISTORY_MAX", 288),
			WarmLimit:        getEnvAsInt("MONITOR_WARM_LIMIT", 2),
			RainfallDistrict: getEnv("MONITOR_RAIN_DISTRICT", "Central & Western"),
			AqhiStation:      getEnv("MONITOR_AQHI_STATION", "Central/Western"),
			TrafficRegion:    getEnv("MONITOR_TRAFFIC_REGION", "Hong Kong Island"),
			UseMockData:      getEnvAsBool("MONITOR_USE_MOCK_DATA", false),
			MockDataDir:      getEnv("MONITOR_MOCK_DATA_DIR", "mockdata"),
			MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Feeds: FeedConfig{
			WarningsURL: getEnv("FEED_WARNINGS_URL", "https://data.weather.gov.hk/weatherAPI/opendata/weather.php?dataType=warnsum&lang=en"),
			RainfallURL: getEnv("FEED_RAINFALL_URL", "https://data.weather.gov.hk/weatherAPI/opendata/weather.php?dataType=rhrread&lang=en"),
			AqhiURL:     getEnv("FEED_AQHI_URL", "https://dashboard.data.gov.hk/api/aqhi-individual?format=json"),
			TrafficURL:  getEnv("FEED_TRAFFIC_URL", "https://www.td.gov.hk/en/special_news/trafficnews.xml"),
		},
		API: APIConfig{
			Port:    getEnvAsInt("API_PORT", 8090),
			Enabled: getEnvAsBool("API_ENABLED", true),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			Enabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "hk-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
	}

	if config.Monitor.PollInterval <= 0 {
		return nil, fmt.Errorf("MONITOR_POLL_INTERVAL must be positive, got %s", config.Monitor.PollInterval)
	}
	if config.Monitor.WarmLimit < 2 && config.Monitor.WarmLimit != 0 {
		// Fewer than two persisted readings cannot seed a transition
		config.Monitor.WarmLimit = 2
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
