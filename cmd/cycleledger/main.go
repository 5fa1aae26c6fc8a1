package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"CycleLedger/internal/ballot"
	"CycleLedger/internal/collector"
	"CycleLedger/internal/config"
	"CycleLedger/internal/cycle"
	"CycleLedger/internal/fund"
	"CycleLedger/internal/logging"
	"CycleLedger/internal/model"
	"CycleLedger/internal/recorder"
	"CycleLedger/internal/storage"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "cycleledger",
		Short:        "Funding cycle ledger: payments, reserved tickets, taps and redemptions",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")

	load := func() (*config.Config, error) {
		path := cfgPath
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "configs/config.yaml"
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(serveCmd(load), printCmd(load), validateCmd(load))
	return root
}

func validateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := load(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
}

func printCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "print <project-id>",
		Short: "Print a project's outstanding reserved tickets once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("project id %q: %w", args[0], err)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.fund.PrintReservedTickets(model.Address(cfg.Ledger.Governance), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "printed %s reserved tickets to %d beneficiaries\n", d.Total, len(d.Allocations))
			return nil
		},
	}
}

// app holds the wired ledger and everything that must be closed with it.
type app struct {
	log    *logrus.Logger
	fund   *fund.Manager
	oracle *collector.Oracle

	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{log: logger, closers: []io.Closer{logCloser}}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}
	log := logging.Component(logger, "ledger")

	var store interface {
		fund.KV
		io.Closer
	}
	switch cfg.Storage.Driver {
	case "file":
		store, err = storage.OpenFileStore(cfg.Storage.Path)
	default:
		store, err = storage.OpenLevelStore(cfg.Storage.Path)
	}
	if err != nil {
		return fail(fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err))
	}
	a.closers = append(a.closers, store)
	log.WithFields(logrus.Fields{"driver": cfg.Storage.Driver, "path": cfg.Storage.Path}).Info("storage opened")

	rec, err := recorders(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, rec)

	if a.oracle, err = oracle(cfg, log); err != nil {
		return fail(err)
	}
	if err := a.oracle.Refresh(ctx); err != nil {
		log.WithError(err).Warn("initial rate refresh incomplete")
	}

	ballots := ballot.NewRegistry()
	for _, bc := range cfg.Ledger.Ballots {
		var b ballot.Ballot = ballot.Timelock{Delay: bc.Timelock}
		if bc.CacheSize > 0 {
			if b, err = ballot.NewCached(b, bc.CacheSize); err != nil {
				return fail(fmt.Errorf("ballot %s: %w", bc.Name, err))
			}
		}
		if err := ballots.Register(bc.Name, b); err != nil {
			return fail(err)
		}
	}

	weight, err := cfg.InitialWeight()
	if err != nil {
		return fail(err)
	}
	gov := model.Address(cfg.Ledger.Governance)
	a.fund, err = fund.NewManager(fund.Options{
		Policy: cycle.Policy{
			MaxCycleLimit: cfg.Ledger.MaxCycleLimit,
			RequireTarget: cfg.Ledger.RequireTarget,
			InitialWeight: weight,
		},
		Ballots:    ballots,
		Governance: gov,
		MaxFee:     cfg.Ledger.MaxFee,
		Converter:  a.oracle,
		Recorder:   rec,
		Store:      store,
		Log:        log,
	})
	if err != nil {
		return fail(fmt.Errorf("init ledger: %w", err))
	}
	if fee := cfg.Ledger.ProtocolFee; fee != a.fund.Fee() {
		if err := a.fund.SetFee(gov, fee); err != nil {
			log.WithError(err).WithField("fee", fee).Warn("configured protocol fee not applied")
		}
	}
	return a, nil
}

// recorders combines every configured event sink. SQLite is always on when
// a path is set so that /events can be served.
func recorders(ctx context.Context, cfg *config.Config, log *logrus.Entry) (recorder.Recorder, error) {
	var out recorder.Multi
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("init sqlite recorder: %w", err)
		}
		out = append(out, sr)
	}
	if cfg.Database.PostgresURL != "" {
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresURL, log)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("init postgres recorder: %w", err)
		}
		out = append(out, pr)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		out = append(out, recorder.NewKafkaRecorder(cfg.Kafka.Brokers, cfg.Kafka.Topic, log))
	}
	switch len(out) {
	case 0:
		log.Warn("no event recorder configured, events are dropped")
		return recorder.NewNoopRecorder(), nil
	case 1:
		return out[0], nil
	}
	return out, nil
}

func oracle(cfg *config.Config, log *logrus.Entry) (*collector.Oracle, error) {
	var (
		fetcher    collector.Fetcher
		currencies []model.Currency
	)
	if cfg.Oracle.Source == "static" {
		rates, err := cfg.StaticRates()
		if err != nil {
			return nil, err
		}
		for c := range rates {
			currencies = append(currencies, c)
		}
		fetcher = &collector.StaticFetcher{Rates: rates}
	} else {
		symbols, err := cfg.OracleSymbols()
		if err != nil {
			return nil, err
		}
		for c := range symbols {
			currencies = append(currencies, c)
		}
		if cfg.Oracle.Source == "quote" {
			fetcher = collector.NewQuoteFetcher(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, cfg.Proxy, symbols)
		} else {
			fetcher = collector.NewYahooFetcher(cfg.Proxy, symbols)
		}
	}
	sort.Slice(currencies, func(i, j int) bool { return currencies[i] < currencies[j] })
	log.WithFields(logrus.Fields{"source": fetcher.Name(), "currencies": len(currencies)}).Info("rate oracle ready")
	return collector.NewOracle(fetcher, currencies, cfg.Oracle.MaxAge, log), nil
}
