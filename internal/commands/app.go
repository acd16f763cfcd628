package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tillfold-dev/tillfold/internal/auditlog"
	"github.com/tillfold-dev/tillfold/internal/config"
	"github.com/tillfold-dev/tillfold/internal/engine"
	"github.com/tillfold-dev/tillfold/internal/expense"
	"github.com/tillfold-dev/tillfold/internal/id"
	"github.com/tillfold-dev/tillfold/internal/model"
	"github.com/tillfold-dev/tillfold/internal/pin"
	"github.com/tillfold-dev/tillfold/internal/request"
	"github.com/tillfold-dev/tillfold/internal/store/sqlite"
)

const configFile = "tillfold.yaml"

// app wires the configured store, engine, and workflow services together for
// one command invocation.
type app struct {
	dir      string
	cfg      *config.Config
	store    *sqlite.Store
	gate     *pin.Gate
	engine   *engine.Engine
	requests *request.Service
	expenses *expense.Service
	log      *slog.Logger
}

// openApp loads the config under dir and connects everything. The caller
// must Close.
func openApp(dir string) (*app, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(absDir, configFile))
	if err != nil {
		return nil, fmt.Errorf("loading %s (run init first?): %w", configFile, err)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(absDir, dbPath)
	}
	st, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gate := pin.NewGate(st, cfg.Policy.BcryptCost)
	eng := engine.New(st, gate, engine.Policy{
		DepositLimit:  cfg.Policy.DepositLimit.Decimal,
		WithdrawLimit: cfg.Policy.WithdrawLimit.Decimal,
	}, log)
	expenses := expense.New(st, eng, log)
	expenses.SetSplitTolerance(cfg.Policy.SplitToleranceCents)
	requests := request.New(st, eng, log)
	requests.SetSettler(expenses)

	return &app{
		dir:      absDir,
		cfg:      cfg,
		store:    st,
		gate:     gate,
		engine:   eng,
		requests: requests,
		expenses: expenses,
		log:      log,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

// resolve maps an account number to the full account record.
func (a *app) resolve(ctx context.Context, number string) (model.Account, error) {
	if !id.ValidAccountNumber(number) {
		return model.Account{}, fmt.Errorf("%q is not an account number (expected ACC followed by six digits)", number)
	}
	return a.store.GetAccountByNumber(ctx, number)
}

// audit appends one operation record. Best effort; an unwritable audit log
// must not fail the operation it describes.
func (a *app) audit(accountID, operation, details, movementID, outcome string) {
	err := auditlog.Append(a.dir, []auditlog.Entry{{
		Timestamp:  time.Now().UTC(),
		AccountID:  accountID,
		Operation:  operation,
		Details:    details,
		MovementID: movementID,
		Outcome:    outcome,
	}})
	if err != nil {
		a.log.Warn("could not write audit log", "error", err)
	}
}
