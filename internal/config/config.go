package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	"gopkg.in/yaml.v3"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/logging"
	"CycleLedger/internal/model"
)

// BallotConfig registers a named timelock ballot.
type BallotConfig struct {
	Name      string        `yaml:"name"`
	Timelock  time.Duration `yaml:"timelock"`
	CacheSize int           `yaml:"cache_size"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	Ledger struct {
		Governance    string         `yaml:"governance"`
		InitialWeight string         `yaml:"initial_weight"`
		ProtocolFee   uint16         `yaml:"protocol_fee"`
		MaxFee        uint16         `yaml:"max_fee"`
		MaxCycleLimit uint8          `yaml:"max_cycle_limit"`
		RequireTarget bool           `yaml:"require_target"`
		Ballots       []BallotConfig `yaml:"ballots"`
	} `yaml:"ledger"`
	Oracle struct {
		// Source is "static", "quote" or "yahoo".
		Source  string            `yaml:"source"`
		BaseURL string            `yaml:"base_url"`
		APIKey  string            `yaml:"api_key"`
		Symbols map[string]string `yaml:"symbols"`
		Rates   map[string]string `yaml:"rates"`
		MaxAge  time.Duration     `yaml:"max_age"`
	} `yaml:"oracle"`
	Storage struct {
		// Driver is "leveldb" or "file".
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"database"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		PrintCron   string   `yaml:"print_cron"`
		RefreshCron string   `yaml:"refresh_cron"`
		SummaryCron string   `yaml:"summary_cron"`
		AutoPrint   []uint64 `yaml:"auto_print"`
	} `yaml:"schedule"`
	Log   logging.Config `yaml:"log"`
	Proxy string         `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LEDGER_GOVERNANCE"); v != "" {
		cfg.Ledger.Governance = v
	}
	if v := os.Getenv("PROTOCOL_FEE"); v != "" {
		fee, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("PROTOCOL_FEE: %w", err)
		}
		cfg.Ledger.ProtocolFee = uint16(fee)
	}
	if v := os.Getenv("ORACLE_SOURCE"); v != "" {
		cfg.Oracle.Source = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("QUOTE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Ledger.MaxFee == 0 {
		cfg.Ledger.MaxFee = 500
	}
	if cfg.Ledger.MaxCycleLimit == 0 {
		cfg.Ledger.MaxCycleLimit = 32
	}
	if cfg.Oracle.Source == "" {
		cfg.Oracle.Source = "static"
	}
	if cfg.Oracle.MaxAge == 0 {
		cfg.Oracle.MaxAge = time.Hour
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "leveldb"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/ledger"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cycleledger.db"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "ledger-events"
	}
	if cfg.Schedule.PrintCron == "" {
		cfg.Schedule.PrintCron = "0 0 * * * *"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 */5 * * * *"
	}
	if cfg.Schedule.SummaryCron == "" {
		cfg.Schedule.SummaryCron = "0 0 9 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Ledger.Governance == "" {
		return fmt.Errorf("ledger.governance is required")
	}
	if c.Ledger.MaxFee > calculator.MaxPercent {
		return fmt.Errorf("ledger.max_fee must be at most %d", calculator.MaxPercent)
	}
	if c.Ledger.ProtocolFee > c.Ledger.MaxFee {
		return fmt.Errorf("ledger.protocol_fee %d exceeds max_fee %d", c.Ledger.ProtocolFee, c.Ledger.MaxFee)
	}
	if c.Ledger.InitialWeight != "" {
		if _, err := c.InitialWeight(); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(c.Ledger.Ballots))
	for _, b := range c.Ledger.Ballots {
		if b.Name == "" {
			return fmt.Errorf("ledger.ballots: name is required")
		}
		if seen[b.Name] {
			return fmt.Errorf("ledger.ballots: duplicate ballot %q", b.Name)
		}
		seen[b.Name] = true
		if b.Timelock < 0 {
			return fmt.Errorf("ledger.ballots: %q timelock must be non-negative", b.Name)
		}
	}

	switch c.Oracle.Source {
	case "static":
		if _, err := c.StaticRates(); err != nil {
			return err
		}
	case "quote":
		if c.Oracle.BaseURL == "" {
			return fmt.Errorf("oracle.base_url is required for the quote source")
		}
	case "yahoo":
	default:
		return fmt.Errorf("oracle.source must be static, quote or yahoo, got %q", c.Oracle.Source)
	}
	if _, err := c.OracleSymbols(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case "leveldb", "file":
	default:
		return fmt.Errorf("storage.driver must be leveldb or file, got %q", c.Storage.Driver)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required with brokers")
	}
	return nil
}

// InitialWeight parses ledger.initial_weight. Empty means the default.
func (c *Config) InitialWeight() (sdkmath.Int, error) {
	if c.Ledger.InitialWeight == "" {
		return calculator.InitialWeight, nil
	}
	w, ok := sdkmath.NewIntFromString(c.Ledger.InitialWeight)
	if !ok || !w.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("ledger.initial_weight %q must be a positive integer", c.Ledger.InitialWeight)
	}
	return w, nil
}

// StaticRates parses oracle.rates, keyed by currency name, as 18-decimal
// fixed-point values.
func (c *Config) StaticRates() (map[model.Currency]sdkmath.Int, error) {
	out := make(map[model.Currency]sdkmath.Int, len(c.Oracle.Rates))
	for name, v := range c.Oracle.Rates {
		cur, err := model.ParseCurrency(name)
		if err != nil {
			return nil, fmt.Errorf("oracle.rates: %w", err)
		}
		d, err := sdkmath.LegacyNewDecFromStr(v)
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("oracle.rates.%s: %q is not a positive decimal", name, v)
		}
		out[cur] = sdkmath.NewIntFromBigInt(d.BigInt())
	}
	return out, nil
}

// OracleSymbols parses oracle.symbols, keyed by currency name.
func (c *Config) OracleSymbols() (map[model.Currency]string, error) {
	if len(c.Oracle.Symbols) == 0 {
		return nil, nil
	}
	out := make(map[model.Currency]string, len(c.Oracle.Symbols))
	for name, symbol := range c.Oracle.Symbols {
		cur, err := model.ParseCurrency(name)
		if err != nil {
			return nil, fmt.Errorf("oracle.symbols: %w", err)
		}
		out[cur] = symbol
	}
	return out, nil
}
