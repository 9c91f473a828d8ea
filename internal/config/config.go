// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/up-only/internal/cranker"
	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/fees"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type PassConfig struct {
	Price uint64 `mapstructure:"price"`
}

type FoundersConfig struct {
	Capacity uint8 `mapstructure:"capacity"`
}

type LockConfig struct {
	AllowedDays []uint64 `mapstructure:"allowed_days"`
}

type SeedConfig struct {
	Deposit uint64 `mapstructure:"deposit"`
	Supply  uint64 `mapstructure:"supply"`
}

type LogConfig struct {
	Debug      bool   `mapstructure:"debug"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

type Config struct {
	ProgramID   string         `mapstructure:"program_id"`
	SaleMint    string         `mapstructure:"sale_mint"`
	PaymentMint string         `mapstructure:"payment_mint"`
	Wallets     string         `mapstructure:"wallets"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Fees        fees.Schedule  `mapstructure:"fees"`
	Pass        PassConfig     `mapstructure:"pass"`
	Founders    FoundersConfig `mapstructure:"founders"`
	Lock        LockConfig     `mapstructure:"lock"`
	Seed        SeedConfig     `mapstructure:"seed"`
	Cranker     cranker.Config `mapstructure:"cranker"`
	Log         LogConfig      `mapstructure:"log"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvPrefix = "UPONLY"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"wallets":                       "wallets.csv",
		"storage.driver":                DriverSQLite,
		"storage.dsn":                   "uponly.db",
		"fees.total_bps":                fees.DefaultTotalBps,
		"fees.referral_bps":             fees.DefaultReferralBps,
		"fees.founders_bps":             0,
		"fees.liquidity_bps":            0,
		"fees.early_unlock_penalty_bps": fees.DefaultEarlyUnlockPenaltyBps,
		"pass.price":                    engine.DefaultPassPrice,
		"founders.capacity":             engine.DefaultFounderCapacity,
		"lock.allowed_days":             engine.DefaultLockDays,
		"seed.deposit":                  engine.DefaultSeedDeposit,
		"seed.supply":                   engine.DefaultSeedSupply,
		"cranker.interval":              30 * time.Second,
		"cranker.workers":               4,
		"cranker.max_tries":             3,
		"cranker.initial_backoff":       100 * time.Millisecond,
		"log.debug":                     false,
		"log.file":                      "",
		"log.max_size":                  100,
		"log.max_age":                   30,
		"log.max_backups":               5,
		"metrics.listen":                ":9108",
	}
}

// LoadConfig reads path (optional) and overlays UPONLY_* environment
// variables, e.g. UPONLY_STORAGE_DSN or UPONLY_FEES_FOUNDERS_BPS.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// из окружения список приходит строкой "3,7,30"
	if raw, ok := v.Get("lock.allowed_days").(string); ok {
		days, err := parseDays(raw)
		if err != nil {
			return nil, err
		}
		v.Set("lock.allowed_days", days)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

func parseDays(raw string) ([]uint64, error) {
	var days []uint64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var d uint64
		if _, err := fmt.Sscan(part, &d); err != nil {
			return nil, fmt.Errorf("invalid lock.allowed_days entry %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// Validate rejects configurations the engine could never settle with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for " + c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if err := c.Fees.Validate(); err != nil {
		return fmt.Errorf("fees: %w", err)
	}
	if c.Pass.Price == 0 {
		return errors.New("invalid pass.price")
	}
	if c.Founders.Capacity == 0 {
		return errors.New("invalid founders.capacity")
	}
	if len(c.Lock.AllowedDays) == 0 {
		return errors.New("lock.allowed_days is empty")
	}
	for _, d := range c.Lock.AllowedDays {
		if d == 0 {
			return errors.New("lock.allowed_days contains zero")
		}
	}
	if c.Seed.Deposit == 0 || c.Seed.Supply == 0 {
		return errors.New("invalid seed deposit or supply")
	}
	if c.Cranker.Workers < 0 {
		return errors.New("invalid cranker.workers")
	}

	for name, key := range map[string]string{
		"program_id":   c.ProgramID,
		"sale_mint":    c.SaleMint,
		"payment_mint": c.PaymentMint,
	} {
		if key == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Engine builds the engine deployment. The program and both mints must be
// set by then.
func (c *Config) Engine() (engine.Config, error) {
	program, err := requireKey("program_id", c.ProgramID)
	if err != nil {
		return engine.Config{}, err
	}
	sale, err := requireKey("sale_mint", c.SaleMint)
	if err != nil {
		return engine.Config{}, err
	}
	payment, err := requireKey("payment_mint", c.PaymentMint)
	if err != nil {
		return engine.Config{}, err
	}

	ec := engine.DefaultConfig(program, sale, payment)
	ec.Fees = c.Fees
	ec.PassPrice = c.Pass.Price
	ec.FounderCapacity = c.Founders.Capacity
	ec.LockDays = append([]uint64(nil), c.Lock.AllowedDays...)
	ec.SeedDeposit = c.Seed.Deposit
	ec.SeedSupply = c.Seed.Supply
	return ec, ec.Validate()
}

func requireKey(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is not configured", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}
