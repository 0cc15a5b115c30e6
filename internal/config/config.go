package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// 決済ゲートウェイの動作モード
type GatewayMode string

const (
	//本物の決済プロセッサへ接続する
	GatewayModeLive GatewayMode = "live"

	//資格情報なしの合成モード（開発/検証のみ）
	GatewayModeSynthetic GatewayMode = "synthetic"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）

	JWTSecret string // JWT署名シークレット

	RedisAddr     string // ゲストカート保存先
	RedisPassword string
	RedisDB       int

	GatewayMode      GatewayMode // live / synthetic
	GatewayKeyID     string      // 決済プロセッサの公開キー
	GatewayKeySecret string      // 署名検証用シークレット
	GatewayBaseURL   string      // プロセッサAPIのURL

	GuestCartTTL       time.Duration // ゲストカートの保持期間
	PendingOrderTTL    time.Duration // PENDING注文の有効期間
	OrderSweepInterval time.Duration // 期限切れ掃除の間隔

	GoEnv string // dev/prod
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       0,

		GatewayMode:      GatewayMode(getenv("GATEWAY_MODE", string(GatewayModeLive))),
		GatewayKeyID:     os.Getenv("GATEWAY_KEY_ID"),
		GatewayKeySecret: os.Getenv("GATEWAY_KEY_SECRET"),
		GatewayBaseURL:   getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"),

		GuestCartTTL:       getenvDuration("GUEST_CART_TTL", 7*24*time.Hour),
		PendingOrderTTL:    getenvDuration("PENDING_ORDER_TTL", 30*time.Minute),
		OrderSweepInterval: getenvDuration("ORDER_SWEEP_INTERVAL", 5*time.Minute),

		GoEnv: os.Getenv("GO_ENV"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	//ゲートウェイモードの検証
	//資格情報の欠落で黙って合成モードへ落ちることは許さない
	switch cfg.GatewayMode {
	case GatewayModeLive:
		if cfg.GatewayKeyID == "" || cfg.GatewayKeySecret == "" {
			return Config{}, fmt.Errorf("GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required in live mode (set GATEWAY_MODE=synthetic explicitly for credential-less runs)")
		}
	case GatewayModeSynthetic:
		if cfg.IsProduction() {
			return Config{}, fmt.Errorf("GATEWAY_MODE=synthetic is not allowed when GO_ENV=production")
		}
	default:
		return Config{}, fmt.Errorf("GATEWAY_MODE must be live or synthetic")
	}

	if cfg.PendingOrderTTL <= 0 {
		return Config{}, fmt.Errorf("PENDING_ORDER_TTL must be positive")
	}
	if cfg.OrderSweepInterval <= 0 {
		return Config{}, fmt.Errorf("ORDER_SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production" || c.GoEnv == "prod"
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
