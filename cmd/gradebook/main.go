package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/pkg/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks a malformed command line.
var errUsage = errors.New("usage")

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, opens the gradebook and dispatches one command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gradebook", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dataFile = fs.String("data", "", "JSON document path (overrides data_file)")
		backend  = fs.String("backend", "", "storage backend: file, postgres or memory (overrides storage_backend)")
		verbose  = fs.Bool("v", false, "log every operation to stderr")
	)
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		printUsage(stderr, fs)
		return exitUsage
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	if name == "help" {
		printUsage(stdout, fs)
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr, fs)
		return exitUsage
	}

	// Load configuration (defaults -> optional file -> env -> flags)
	cfg, err := config.Load(ctx)
	if err != nil {
		writeErr(stderr, "failed to load config", err)
		return exitError
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if *backend != "" {
		cfg.StorageBackend = *backend
	}
	if err := cfg.Validate(); err != nil {
		writeErr(stderr, "invalid config", err)
		return exitError
	}

	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		writeErr(stderr, "invalid log_format", err)
		return exitError
	}
	if err := logger.Init(logger.WithOutput(stderr), logger.WithFormat(format)); err != nil {
		writeErr(stderr, "failed to initialize logging", err)
		return exitError
	}
	level := cfg.LogLevel
	if !cmd.server && !*verbose {
		level = "warn"
	}
	if err := logger.SetLevelString(level); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	repo, err := app.NewRepository(ctx, cfg)
	if err != nil {
		writeErr(stderr, "failed to open storage", err)
		return exitError
	}
	svc := app.New(
		app.WithLogger(logger.Named("gradebook")),
		app.WithRepository(repo),
		app.WithCorruptPolicy(cfg.OnCorrupt),
		app.WithIdempotencyKeyLimit(cfg.IdempotencyKeys),
		app.WithImport(cfg.ImportWorkers, cfg.ImportQueueCapacity),
	)
	if err := svc.Open(ctx); err != nil {
		_ = repo.Close()
		writeErr(stderr, "failed to open gradebook", err)
		return exitError
	}
	defer func() { _ = svc.Close() }()

	env := &cliEnv{cfg: cfg, svc: svc, out: stdout}
	if err := cmd.run(ctx, env, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: gradebook %s %s\n", name, cmd.usage)
			return exitUsage
		}
		writeErr(stderr, "error", err)
		return exitError
	}
	return exitOK
}

func writeErr(w io.Writer, msg string, err error) {
	_, _ = io.WriteString(w, msg+": "+err.Error()+"\n")
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: gradebook [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(w, "  %-15s\n", "help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	out := fs.Output()
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(out)
}
