package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type WorkerConfig struct {
	DatabaseURL     string
	DBMaxConns      int32
	AccrualEvery    time.Duration
	AccrualWorkers  int
	SettleEvery     time.Duration
	BSCNodeURL      string
	PayoutAPIURL    string
	ContractAddress string
	PaymentTimeout  time.Duration
	RunOnce         bool
}

type OpsConfig struct {
	Addr           string
	DatabaseURL    string
	DBMaxConns     int32
	AccrualWorkers int
}

type CtlConfig struct {
	OpsBaseURL     string
	DepositAddress string
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	_ = godotenv.Load()

	cfg := WorkerConfig{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:      int32(envIntDefault("VAULT_DB_MAX_CONNS", 20)),
		AccrualEvery:    envDurationDefault("VAULT_ACCRUAL_EVERY", 24*time.Hour),
		AccrualWorkers:  envIntDefault("VAULT_ACCRUAL_WORKERS", 8),
		SettleEvery:     envDurationDefault("VAULT_SETTLE_EVERY", 5*time.Minute),
		BSCNodeURL:      envDefault("VAULT_BSC_NODE_URL", "https://bsc-dataseed.binance.org"),
		PayoutAPIURL:    strings.TrimSpace(os.Getenv("VAULT_PAYOUT_API_URL")),
		ContractAddress: strings.TrimSpace(os.Getenv("VAULT_CONTRACT_ADDRESS")),
		PaymentTimeout:  envDurationDefault("VAULT_PAYMENT_TIMEOUT", 20*time.Second),
		RunOnce:         envBoolDefault("VAULT_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ContractAddress == "" {
		return cfg, fmt.Errorf("VAULT_CONTRACT_ADDRESS is required")
	}
	if cfg.PayoutAPIURL == "" {
		return cfg, fmt.Errorf("VAULT_PAYOUT_API_URL is required")
	}
	return cfg, nil
}

func LoadOpsFromEnv() (OpsConfig, error) {
	_ = godotenv.Load()

	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("VAULT_OPS_ADDR", ":8090")
	}

	cfg := OpsConfig{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:     int32(envIntDefault("VAULT_DB_MAX_CONNS", 20)),
		AccrualWorkers: envIntDefault("VAULT_ACCRUAL_WORKERS", 8),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCtlFromEnv() CtlConfig {
	_ = godotenv.Load()
	return CtlConfig{
		OpsBaseURL:     strings.TrimRight(envDefault("UVCTL_OPS_BASE_URL", "http://localhost:8090"), "/"),
		DepositAddress: strings.TrimSpace(os.Getenv("UVCTL_DEPOSIT_ADDRESS")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
