package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/up-only/internal/engine"
	"github.com/rovshanmuradov/up-only/internal/fees"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, fees.DefaultSchedule(), cfg.Fees)
	assert.Equal(t, uint64(engine.DefaultPassPrice), cfg.Pass.Price)
	assert.Equal(t, uint8(60), cfg.Founders.Capacity)
	assert.Equal(t, engine.DefaultLockDays, cfg.Lock.AllowedDays)
	assert.Equal(t, 30*time.Second, cfg.Cranker.Interval)
	assert.Equal(t, ":9108", cfg.Metrics.Listen)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	sale := solana.NewWallet().PublicKey()
	payment := solana.NewWallet().PublicKey()

	path := writeConfig(t, `
program_id: `+program.String()+`
sale_mint: `+sale.String()+`
payment_mint: `+payment.String()+`
storage:
  driver: memory
fees:
  founders_bps: 100
lock:
  allowed_days: [7, 30]
cranker:
  interval: 5s
  workers: 8
`)
	t.Setenv("UPONLY_PASS_PRICE", "5000000")
	t.Setenv("UPONLY_FEES_EARLY_UNLOCK_PENALTY_BPS", "200")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, uint64(100), cfg.Fees.FoundersBps)
	assert.Equal(t, uint64(200), cfg.Fees.EarlyUnlockPenaltyBps)
	assert.Equal(t, uint64(5_000_000), cfg.Pass.Price)
	assert.Equal(t, []uint64{7, 30}, cfg.Lock.AllowedDays)
	assert.Equal(t, 5*time.Second, cfg.Cranker.Interval)
	assert.Equal(t, 8, cfg.Cranker.Workers)

	ec, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, program, ec.Program)
	assert.Equal(t, sale, ec.SaleMint)
	assert.Equal(t, payment, ec.PaymentMint)
	assert.Equal(t, uint64(5_000_000), ec.PassPrice)
	assert.Equal(t, "UP", ec.Symbol)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Storage = StorageConfig{Driver: DriverPostgres} }},
		{"referral over total", func(c *Config) { c.Fees.ReferralBps = c.Fees.TotalBps + 1 }},
		{"legs over denominator", func(c *Config) { c.Fees.LiquidityBps = 9_500 }},
		{"zero pass price", func(c *Config) { c.Pass.Price = 0 }},
		{"zero capacity", func(c *Config) { c.Founders.Capacity = 0 }},
		{"empty lock list", func(c *Config) { c.Lock.AllowedDays = nil }},
		{"zero lock day", func(c *Config) { c.Lock.AllowedDays = []uint64{0, 7} }},
		{"zero seed", func(c *Config) { c.Seed.Supply = 0 }},
		{"bad program id", func(c *Config) { c.ProgramID = "not-a-key" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEngineRequiresKeys(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	_, err = cfg.Engine()
	assert.ErrorContains(t, err, "program_id")
}

func TestLoadConfigListFromEnv(t *testing.T) {
	t.Setenv("UPONLY_LOCK_ALLOWED_DAYS", "3, 90")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 90}, cfg.Lock.AllowedDays)
}

func TestLoadConfigLockTiers(t *testing.T) {
	path := writeConfig(t, `
fees:
  lock_tiers:
    - max_days: 7
      total_bps: 100
      founders_bps: 25
      liquidity_bps: 225
    - max_days: 180
      total_bps: 250
      founders_bps: 25
      liquidity_bps: 725
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Fees.LockTiers, 2)
	assert.Equal(t, fees.LockTier{MaxDays: 7, TotalBps: 100, FoundersBps: 25, LiquidityBps: 225}, cfg.Fees.LockTiers[0])
	assert.Equal(t, uint64(725), cfg.Fees.ForLock(90).LiquidityBps)

	bad := writeConfig(t, `
fees:
  lock_tiers:
    - max_days: 30
      total_bps: 100
    - max_days: 7
      total_bps: 100
`)
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, fees.ErrInvalidSchedule)
}
