// Package config loads the gateway's configuration from the
// environment once at startup. Loading is an explicit fallible step:
// the process refuses to start on an incomplete payment configuration
// instead of failing individual requests later.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/x402lab/paygate/utils"
)

const (
	defaultListenAddr    = ":3001"
	defaultUpstreamURL   = "https://openrouter.ai/api/v1"
	defaultChainRPC      = "https://sepolia.base.org"
	defaultNetwork       = "base-sepolia"
	defaultTokenSymbol   = "PYUSD"
	defaultTokenDecimals = 6
	defaultAmount        = "0.05"
	defaultRedemptionTTL = 15 * time.Minute
)

var validate = validator.New()

// Config is the immutable process configuration. It is constructed once
// by Load and passed by reference into the payment policy, the
// transaction validator and the upstream forwarder.
type Config struct {
	ListenAddr string `validate:"required"`
	LogLevel   string

	// Upstream chat-completion API.
	UpstreamURL string `validate:"required,url"`
	UpstreamKey string `validate:"required"`

	// Payment enforcement. RequirePayment gates the whole 402 flow;
	// ValidateTransactions can be switched off separately in trusted
	// environments, in which case any presented proof is accepted.
	RequirePayment       bool
	ValidateTransactions bool

	// Chain and payment constraints. Addresses are mandatory whenever
	// payment enforcement is active.
	ChainRPCURL      string `validate:"required,url"`
	PaymentRecipient string `validate:"omitempty,eth_addr"`
	TokenAddress     string `validate:"omitempty,eth_addr"`
	TokenSymbol      string `validate:"required"`
	TokenDecimals    int    `validate:"gte=0,lte=36"`
	Network          string `validate:"required"`

	// MinAmount is the minimum accepted payment in atomic token units,
	// derived from the human-readable PAYMENT_AMOUNT.
	MinAmount *big.Int

	// Replay protection for payment hashes. Off by default: the
	// observed deployment accepts a valid transaction any number of
	// times, so single-use is an explicit opt-in.
	EnforceSingleUse bool
	RedemptionTTL    time.Duration

	EnableMetrics bool
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:           envOr("PAYGATE_LISTEN_ADDR", defaultListenAddr),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		UpstreamURL:          envOr("OPENROUTER_API_URL", defaultUpstreamURL),
		UpstreamKey:          os.Getenv("OPENROUTER_API_KEY"),
		RequirePayment:       envBool("REQUIRE_PAYMENT", true),
		ValidateTransactions: envBool("VALIDATE_TRANSACTIONS", true),
		ChainRPCURL:          envOr("CHAIN_RPC_URL", defaultChainRPC),
		PaymentRecipient:     os.Getenv("PAYMENT_RECIPIENT"),
		TokenAddress:         os.Getenv("PAYMENT_TOKEN_ADDRESS"),
		TokenSymbol:          envOr("PAYMENT_TOKEN_SYMBOL", defaultTokenSymbol),
		Network:              envOr("PAYMENT_NETWORK", defaultNetwork),
		EnforceSingleUse:     envBool("PAYGATE_ENFORCE_SINGLE_USE", false),
		EnableMetrics:        envBool("PAYGATE_METRICS", false),
	}

	decimals, err := envInt("PAYMENT_TOKEN_DECIMALS", defaultTokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_TOKEN_DECIMALS: %w", err)
	}
	cfg.TokenDecimals = decimals

	amount := envOr("PAYMENT_AMOUNT", defaultAmount)
	cfg.MinAmount, err = utils.ParseAmountWithDecimals(amount, cfg.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_AMOUNT: %w", err)
	}

	ttlSeconds, err := envInt("PAYGATE_REDEMPTION_TTL_SECONDS", int(defaultRedemptionTTL.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("PAYGATE_REDEMPTION_TTL_SECONDS: %w", err)
	}
	cfg.RedemptionTTL = time.Duration(ttlSeconds) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural constraints plus the conditional ones
// that depend on payment enforcement being active.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.RequirePayment {
		if c.PaymentRecipient == "" {
			return fmt.Errorf("PAYMENT_RECIPIENT is required when payment enforcement is active")
		}
		if c.TokenAddress == "" {
			return fmt.Errorf("PAYMENT_TOKEN_ADDRESS is required when payment enforcement is active")
		}
		if c.MinAmount == nil || c.MinAmount.Sign() <= 0 {
			return fmt.Errorf("PAYMENT_AMOUNT must be positive when payment enforcement is active")
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
