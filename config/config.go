package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Gateway GatewayConfig
	Flow    FlowConfig
	Log     LogConfig
	Sandbox SandboxConfig
}

type AppConfig struct {
	ServiceName string
}

type GatewayConfig struct {
	BaseURL     string
	AuthToken   string
	HTTPTimeout time.Duration
}

type FlowConfig struct {
	PollInterval        time.Duration
	PaymentBudget       time.Duration
	CountdownTick       time.Duration
	SuccessDisplayDelay time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type SandboxConfig struct {
	Host          string
	Port          string
	PushConfirmIn time.Duration
	USSDEnabled   bool
	ManualEnabled bool
	PayoutPhone   string
	PayoutName    string
	Instructions  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "storefront-pay"),
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("GATEWAY_BASE_URL", "http://localhost:8980"),
			AuthToken:   getEnv("GATEWAY_AUTH_TOKEN", ""),
			HTTPTimeout: getSecondsEnv("GATEWAY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Flow: FlowConfig{
			PollInterval:        getMillisEnv("FLOW_POLL_INTERVAL_MS", 3000*time.Millisecond),
			PaymentBudget:       getMillisEnv("FLOW_PAYMENT_BUDGET_MS", 90000*time.Millisecond),
			CountdownTick:       getMillisEnv("FLOW_COUNTDOWN_TICK_MS", 1000*time.Millisecond),
			SuccessDisplayDelay: getMillisEnv("FLOW_SUCCESS_DISPLAY_DELAY_MS", 1500*time.Millisecond),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Sandbox: SandboxConfig{
			Host:          getEnv("SANDBOX_HOST", "0.0.0.0"),
			Port:          getEnv("SANDBOX_PORT", "8980"),
			PushConfirmIn: getSecondsEnv("SANDBOX_PUSH_CONFIRM_SECONDS", 15*time.Second),
			USSDEnabled:   getBoolEnv("SANDBOX_USSD_ENABLED", true),
			ManualEnabled: getBoolEnv("SANDBOX_MANUAL_ENABLED", true),
			PayoutPhone:   getEnv("SANDBOX_PAYOUT_PHONE", "0755000111"),
			PayoutName:    getEnv("SANDBOX_PAYOUT_NAME", "Huduma Store Ltd"),
			Instructions:  getEnv("SANDBOX_PAYOUT_INSTRUCTIONS", "Send the exact amount to the number above, then paste the confirmation message."),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if millis, err := strconv.Atoi(value); err == nil {
			return time.Duration(millis) * time.Millisecond
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
