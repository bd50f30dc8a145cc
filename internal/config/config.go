package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ClockInPolicy は出勤打刻の重複許可ポリシーを表す。
type ClockInPolicy string

const (
	// ClockInPolicyMultiple は同一従業員の複数オープンレコードを許可する。
	// 1日複数シフト勤務を想定した既定ポリシー。
	ClockInPolicyMultiple ClockInPolicy = "multiple"
	// ClockInPolicySingle はオープンレコードが存在する間の再打刻を拒否する。
	ClockInPolicySingle ClockInPolicy = "single"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Trigger（外部スケジューラからのジョブ起動認証）
	TriggerToken string

	// Mail Gateway
	MailGatewayURL string
	MailFrom       string
	MailTimeout    time.Duration

	// Attendance
	ClockInPolicy   ClockInPolicy
	DefaultEntryMin int // シフトプロファイル未設定時の既定出勤時刻（分）
	ToleranceMin    int // 許容遅延（分）

	// Evaluator / Dispatcher
	StoreTimeout    time.Duration // ストア呼び出し1回のタイムアウト
	RunBudget       time.Duration // ジョブ1回の実行時間上限
	FlushBatchSize  int
	MaxSendAttempts int

	// Worker
	RemindInterval time.Duration
	FlushInterval  time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	BaseURL    string

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

	cfg.TriggerToken = os.Getenv("TRIGGER_TOKEN")
	if cfg.TriggerToken == "" {
		missing = append(missing, "TRIGGER_TOKEN")
	}

	cfg.MailGatewayURL = os.Getenv("MAIL_GATEWAY_URL")
	if cfg.MailGatewayURL == "" {
		missing = append(missing, "MAIL_GATEWAY_URL")
	}

	cfg.MailFrom = os.Getenv("MAIL_FROM")
	if cfg.MailFrom == "" {
		missing = append(missing, "MAIL_FROM")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MailTimeout = getEnvDuration("MAIL_TIMEOUT", 10*time.Second)
	cfg.ClockInPolicy = parseClockInPolicy(os.Getenv("CLOCK_IN_POLICY"))
	cfg.DefaultEntryMin = getEnvInt("DEFAULT_ENTRY_MIN", 9*60)
	cfg.ToleranceMin = getEnvInt("TOLERANCE_MIN", 15)
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 8*time.Second)
	cfg.RunBudget = getEnvDuration("RUN_BUDGET", 60*time.Second)
	cfg.FlushBatchSize = getEnvInt("FLUSH_BATCH_SIZE", 50)
	cfg.MaxSendAttempts = getEnvInt("MAX_SEND_ATTEMPTS", 3)
	cfg.RemindInterval = getEnvDuration("REMIND_INTERVAL", 5*time.Minute)
	cfg.FlushInterval = getEnvDuration("FLUSH_INTERVAL", 10*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// parseClockInPolicy は環境変数値をClockInPolicyに変換する。
// 未設定またはサポート外の値の場合はmultipleを返す。
func parseClockInPolicy(v string) ClockInPolicy {
	switch v {
	case string(ClockInPolicySingle):
		return ClockInPolicySingle
	default:
		return ClockInPolicyMultiple
	}
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
