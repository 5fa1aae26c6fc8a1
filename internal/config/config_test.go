package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"CycleLedger/internal/model"
)

const sample = `
server:
  addr: ":9090"
ledger:
  governance: gov
  protocol_fee: 100
  initial_weight: "1000000000000000000000000"
  ballots:
    - name: three-days
      timelock: 72h
oracle:
  source: static
  rates:
    USD: "2000.5"
storage:
  driver: file
  path: /tmp/ledger.json
telegram:
  bot_token: token
  chat_id: "42"
schedule:
  auto_print: [1, 2]
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9090", cfg.Server.Addr)
	require.Equal(t, uint16(100), cfg.Ledger.ProtocolFee)
	require.Equal(t, uint16(500), cfg.Ledger.MaxFee)
	require.Len(t, cfg.Ledger.Ballots, 1)
	require.Equal(t, 72*time.Hour, cfg.Ledger.Ballots[0].Timelock)
	require.Equal(t, []uint64{1, 2}, cfg.Schedule.AutoPrint)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "ledger-events", cfg.Kafka.Topic)

	rates, err := cfg.StaticRates()
	require.NoError(t, err)
	want, ok := sdkmath.NewIntFromString("2000500000000000000000")
	require.True(t, ok)
	require.Equal(t, want.String(), rates[model.CurrencyUSD].String())

	w, err := cfg.InitialWeight()
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000000000", w.String())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "leveldb", cfg.Storage.Driver)
	require.Equal(t, "static", cfg.Oracle.Source)
	require.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_GOVERNANCE", "other-gov")
	t.Setenv("PROTOCOL_FEE", "250")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.Equal(t, "other-gov", cfg.Ledger.Governance)
	require.Equal(t, uint16(250), cfg.Ledger.ProtocolFee)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "warn", cfg.Log.Level)

	t.Setenv("PROTOCOL_FEE", "lots")
	_, err = Load(writeConfig(t, sample))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"fee above max", func(c *Config) { c.Ledger.ProtocolFee = 600 }},
		{"bad weight", func(c *Config) { c.Ledger.InitialWeight = "-1" }},
		{"duplicate ballot", func(c *Config) {
			c.Ledger.Ballots = append(c.Ledger.Ballots, BallotConfig{Name: "three-days"})
		}},
		{"unknown source", func(c *Config) { c.Oracle.Source = "carrier-pigeon" }},
		{"quote without url", func(c *Config) { c.Oracle.Source = "quote" }},
		{"bad rate", func(c *Config) { c.Oracle.Rates = map[string]string{"USD": "zero"} }},
		{"unknown currency", func(c *Config) { c.Oracle.Symbols = map[string]string{"DOGE": "DOGE-USD"} }},
		{"bad driver", func(c *Config) { c.Storage.Driver = "tape" }},
		{"half telegram", func(c *Config) { c.Telegram.ChatID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sample))
			require.NoError(t, err)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
