package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level tillfold.yaml configuration.
type Config struct {
	Policy  PolicyConfig  `yaml:"policy"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// Amount is a decimal that round-trips through YAML and env strings.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d for use in config structs.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalYAML decodes an amount from a YAML scalar like "50000" or "49.99".
func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	d, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", value.Value, err)
	}
	a.Decimal = d
	return nil
}

// MarshalYAML encodes the amount as a plain scalar.
func (a Amount) MarshalYAML() (any, error) {
	return a.String(), nil
}

// PolicyConfig holds the engine's tunable policy constants.
type PolicyConfig struct {
	DepositLimit  Amount `yaml:"deposit_limit" env:"TILLFOLD_DEPOSIT_LIMIT"`
	WithdrawLimit Amount `yaml:"withdraw_limit" env:"TILLFOLD_WITHDRAW_LIMIT"`
	// SplitToleranceCents is the allowed reconstruction drift per member when
	// validating an equal split.
	SplitToleranceCents int `yaml:"split_tolerance_cents" env:"TILLFOLD_SPLIT_TOLERANCE_CENTS"`
	BcryptCost          int `yaml:"bcrypt_cost" env:"TILLFOLD_BCRYPT_COST"`
}

// StorageConfig locates the durable store.
type StorageConfig struct {
	Path string `yaml:"path" env:"TILLFOLD_DB_PATH"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `yaml:"level" env:"TILLFOLD_LOG_LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" env:"TILLFOLD_LOG_FORMAT"` // json or text
}

// Load reads a tillfold.yaml file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with the stock policy ceilings.
func Default() *Config {
	return &Config{
		Policy: PolicyConfig{
			DepositLimit:        NewAmount(decimal.NewFromInt(100000)),
			WithdrawLimit:       NewAmount(decimal.NewFromInt(50000)),
			SplitToleranceCents: 1,
			BcryptCost:          10,
		},
		Storage: StorageConfig{
			Path: "tillfold.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
