package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CTAG07/kgram/pkg/markov"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const defaultConfigPath = "./kgram.json"

// App bundles everything a command needs: configuration, logging, storage and
// the streams it reads from and writes to.
type App struct {
	config *ConfigManager
	logger *slog.Logger
	db     *sql.DB
	store  *markov.Store
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewApp loads the configuration at configPath and opens the model store.
func NewApp(configPath string, in io.Reader, out, errOut io.Writer) (*App, error) {
	cm, err := NewConfigManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg := cm.Get()

	// Logs go to errOut so generated text on out stays clean.
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Server.Level()}))
	cm.SetLogger(logger)

	db, err := initDB(cfg.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model store: %w", err)
	}
	store.SetLogger(logger)

	return &App{
		config: cm,
		logger: logger,
		db:     db,
		store:  store,
		in:     in,
		out:    out,
		errOut: errOut,
	}, nil
}

// Close releases the store and the database connection.
func (a *App) Close() {
	a.store.Close()
	a.logger.Debug("Closing database connection.")
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "kgram: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses the global flags, opens the app and dispatches to a command.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	global := flag.NewFlagSet("kgram", flag.ContinueOnError)
	global.SetOutput(errOut)
	configPath := global.String("config", defaultConfigPath, "path to the JSON configuration file")
	global.Usage = func() { printUsage(errOut) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(errOut)
		return errors.New("no command given")
	}
	name := rest[0]
	if name == "version" {
		_, err := fmt.Fprintf(out, "kgram %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return err
	}
	cmd, ok := commands[name]
	if !ok {
		printUsage(errOut)
		return fmt.Errorf("unknown command %q", name)
	}

	app, err := NewApp(*configPath, in, out, errOut)
	if err != nil {
		return err
	}
	defer app.Close()

	return cmd.run(ctx, app, rest[1:])
}
