package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone はリマインダー評価で使用するデフォルトのタイムゾーン。
const DefaultTimezone = "Asia/Tokyo"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（未設定の場合はプロセス内ロックを使用）
	RedisURL   string
	OrgLockTTL time.Duration

	// Kafka（未設定の場合はイベントを発行しない）
	KafkaBrokers           []string
	KafkaNotificationTopic string

	// Reminder
	ReminderInterval      time.Duration
	ReminderMaxConcurrent int
	ReminderTimezone      string
	ReminderDayOfHour     int
	ChangeNoticeDays      int

	// Rate Limit
	RateLimitGeneral int
	RateLimitRun     int

	// Cleanup
	NotificationRetentionDays int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.OrgLockTTL = getEnvDuration("ORG_LOCK_TTL", 5*time.Minute)
	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS")
	cfg.KafkaNotificationTopic = getEnvString("KAFKA_NOTIFICATION_TOPIC", "notification.created")
	cfg.ReminderInterval = getEnvDuration("REMINDER_INTERVAL", time.Hour)
	cfg.ReminderMaxConcurrent = getEnvInt("REMINDER_MAX_CONCURRENT", 4)
	cfg.ReminderTimezone = getEnvString("REMINDER_TIMEZONE", DefaultTimezone)
	cfg.ReminderDayOfHour = getEnvInt("REMINDER_DAY_OF_HOUR", 10)
	cfg.ChangeNoticeDays = getEnvInt("CHANGE_NOTICE_DAYS", 14)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRun = getEnvInt("RATE_LIMIT_RUN", 10)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 180)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.ReminderDayOfHour < 0 || cfg.ReminderDayOfHour > 23 {
		return nil, fmt.Errorf("REMINDER_DAY_OF_HOUR must be between 0 and 23: %d", cfg.ReminderDayOfHour)
	}

	return cfg, nil
}

// Location はリマインダー評価に使用するタイムゾーンを返す。
// tzdataが利用できない環境でAsia/Tokyoが指定された場合は固定オフセットのJSTを返す。
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err == nil {
		return loc, nil
	}
	if c.ReminderTimezone == DefaultTimezone {
		return time.FixedZone("JST", 9*60*60), nil
	}
	return nil, fmt.Errorf("REMINDER_TIMEZONEの読み込みに失敗しました: %w", err)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いて返す。
func getEnvList(key string) []string {
	var list []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list
}
