package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"permitledger/cmd/internal/passphrase"
	"permitledger/config"
	"permitledger/core"
	ledgererrors "permitledger/core/errors"
	"permitledger/crypto"
	"permitledger/native/permit"
	"permitledger/observability"
	"permitledger/observability/logging"
	telemetry "permitledger/observability/otel"
	"permitledger/storage"
)

// Overridable in tests.
var (
	clock         = func() uint64 { return uint64(time.Now().Unix()) }
	passphraseFor = func() func() (string, error) { return passphrase.NewSource(passphrase.EnvVar).Get }
)

const (
	logMaxSizeMB    = 50
	logMaxBackups   = 5
	shutdownTimeout = 5 * time.Second
)

// cliEnv opens the config and ledger lazily so key-only commands never touch
// the data directory.
type cliEnv struct {
	configPath string
	stderr     io.Writer

	cfg      *config.Config
	logger   *slog.Logger
	logSink  io.WriteCloser
	db       storage.Database
	contract *core.Contract
	shutdown func(context.Context) error
}

func (e *cliEnv) Config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	e.cfg = cfg
	return cfg, nil
}

func (e *cliEnv) Contract() (*core.Contract, error) {
	if e.contract != nil {
		return e.contract, nil
	}
	cfg, err := e.Config()
	if err != nil {
		return nil, err
	}

	out := e.stderr
	if cfg.LogFile != "" {
		e.logSink = logging.RotatingFile(config.ResolvePath(e.configPath, cfg.LogFile), logMaxSizeMB, logMaxBackups)
		out = e.logSink
	}
	e.logger = logging.SetupWithWriter("permitctl", cfg.NetworkName, out)

	db, err := storage.Open(cfg.Backend, config.ResolvePath(e.configPath, cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.Backend, err)
	}
	if cfg.Backend == storage.BackendMemory {
		e.logger.Warn("memory backend selected; ledger state is dropped on exit")
	}
	e.db = db
	if cfg.Telemetry.Enabled() {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "permitctl",
			Environment: cfg.NetworkName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, err
		}
		e.shutdown = shutdown
	}
	e.contract = core.NewContract(db,
		permit.Domain{NetworkID: cfg.NetworkName, ContractID: cfg.ContractID},
		core.WithLogger(e.logger),
		core.WithClock(clock),
		core.WithMetrics(observability.Ledger()),
	)
	return e.contract, nil
}

func (e *cliEnv) Close() {
	if e.contract != nil && e.cfg.MetricsFile != "" {
		path := config.ResolvePath(e.configPath, e.cfg.MetricsFile)
		if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
			e.logger.Error("write metrics textfile", slog.String("path", path), slog.Any("error", err))
		}
	}
	if e.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := e.shutdown(ctx); err != nil {
			e.logger.Warn("flush traces", slog.Any("error", err))
		}
		cancel()
	}
	if e.db != nil {
		e.db.Close()
	}
	if e.logSink != nil {
		_ = e.logSink.Close()
	}
}

// parseAccount accepts a bech32 account or a tagged public key.
func parseAccount(s string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return crypto.ZeroAddress, errors.New("account must not be empty")
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err == nil {
		return addr, nil
	}
	pub, pubErr := crypto.ParsePublicKey(trimmed)
	if pubErr != nil {
		return crypto.ZeroAddress, fmt.Errorf("invalid account %q: %w", s, err)
	}
	return pub.Address(), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, errors.New("amount must not be empty")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func loadKey(path string) (crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("--key is required")
	}
	return crypto.LoadKeyFile(path, passphraseFor())
}

// signingKey loads path, falling back to the configured KeystorePath.
func (e *cliEnv) signingKey(path string) (crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		cfg, err := e.Config()
		if err != nil {
			return nil, err
		}
		if cfg.KeystorePath == "" {
			return nil, errors.New("--key is required (or set KeystorePath)")
		}
		path = config.ResolvePath(e.configPath, cfg.KeystorePath)
	}
	return loadKey(path)
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// fail prints err and returns the exit code: 2 for ledger rejections, 1 for
// everything else.
func fail(stderr io.Writer, err error) int {
	if code, ok := ledgererrors.CodeOf(err); ok {
		fmt.Fprintf(stderr, "Error [%s/%d]: %v\n", code, uint16(code), err)
		if ledgererrors.Retryable(err) {
			fmt.Fprintln(stderr, "The authorization stays valid; retry once the account is funded.")
		}
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func failf(stderr io.Writer, format string, args ...any) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return 1
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFlags parses args and rejects stray positional arguments.
func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}
