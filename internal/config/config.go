package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config carries every tunable of the service. All values come from the
// environment; Load fails fast on anything missing or malformed.
type Config struct {
	Port        string `validate:"required"`
	DatabaseURL string `validate:"required"`

	// Payment gateway (imsafu-style deposit-pay API).
	GatewayURL      string `validate:"required,url"` // payment page host, also hosts /payment_qrcode
	GatewayAPIURL   string `validate:"required,url"`
	GatewaySecret   string `validate:"required"`
	GatewayReceiver string `validate:"required"`
	NotifyURL       string `validate:"required,url"` // public address of our /notify endpoint

	MerchantBrand string `validate:"required"`
	RedirectURL   string `validate:"required,url"`

	// Generation backend.
	AIBaseURL string `validate:"required,url"`
	AIKey     string `validate:"required"`
	AIModel   string `validate:"required"`

	// Chat platform.
	TelegramToken   string `validate:"required"`
	TelegramAPIURL  string `validate:"required,url"`
	PhotoAssetsDir  string
	CustomizeMode   string        `validate:"required,oneof=ingredients attributes"`
	SessionTTL      time.Duration `validate:"required,min=1m"`
	HistoryLimit    int           `validate:"required,min=2"`
	OutboundTimeout time.Duration `validate:"required,min=1s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		GatewayURL:      os.Getenv("GATEWAY_URL"),
		GatewayAPIURL:   os.Getenv("GATEWAY_API_URL"),
		GatewaySecret:   os.Getenv("GATEWAY_API_SECRET"),
		GatewayReceiver: os.Getenv("GATEWAY_RECEIVER"),
		NotifyURL:       os.Getenv("NOTIFY_URL"),
		MerchantBrand:   os.Getenv("MERCHANT_BRAND"),
		RedirectURL:     os.Getenv("MERCHANT_REDIRECT_URL"),
		AIBaseURL:       getenv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIKey:           os.Getenv("AI_API_KEY"),
		AIModel:         getenv("AI_MODEL", "gpt-3.5-turbo"),
		TelegramToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:  getenv("TELEGRAM_API_URL", "https://api.telegram.org"),
		PhotoAssetsDir:  os.Getenv("PHOTO_ASSETS_DIR"),
		CustomizeMode:   getenv("CUSTOMIZE_MODE", "ingredients"),
	}

	var err error
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OutboundTimeout, err = getenvDuration("OUTBOUND_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getenvInt("AI_HISTORY_LIMIT", 32); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
