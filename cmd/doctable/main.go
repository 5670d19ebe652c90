// Package main is the doctable command.
//
// doctable reads and writes the JSON document tables of a store held in
// memory, in a directory or in DynamoDB. Configuration is read from a YAML
// file (doctable.yaml by default), overridden by flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/jacentio/doctable/store"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "doctable: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func mainImpl() error {
	configPath := flag.String("config", "doctable.yaml", "YAML configuration file")
	backend := flag.String("backend", "", "Backend: memory, dir or dynamodb (overrides config)")
	dataDir := flag.String("data-dir", "", "Directory of the dir backend (overrides config)")
	table := flag.String("table", "", "DynamoDB table of the dynamodb backend (overrides config)")
	prefix := flag.String("prefix", "", "Key prefix of every table (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		fmt.Fprintln(flag.CommandLine.Output(), "\nflags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		return err
	}
	override(&cfg.Backend, *backend)
	override(&cfg.Dir, *dataDir)
	override(&cfg.DynamoDB.Table, *table)
	override(&cfg.KeyPrefix, *prefix)
	override(&cfg.LogLevel, *logLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := parseLevel(cfg.LogLevel)
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	s, err := cfg.openStore(ctx, logger)
	if err != nil {
		return err
	}
	c := &cli{
		store: s,
		in:    os.Stdin,
		out:   os.Stdout,
		open: func(ctx context.Context, prefix string) (*store.Store, error) {
			scratch := cfg
			scratch.KeyPrefix = prefix
			return scratch.openStore(ctx, logger)
		},
	}
	return c.run(ctx, flag.Args())
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// newLogger returns a colored logger on terminals and a plain one otherwise.
func newLogger(w *os.File, level slog.Level) *slog.Logger {
	var out io.Writer = w
	if isatty.IsTerminal(w.Fd()) {
		out = colorable.NewColorable(w)
	}
	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(w.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Drop empty values.
			switch t := a.Value.Any().(type) {
			case string:
				if t == "" {
					return slog.Attr{}
				}
			case time.Duration:
				if t == 0 {
					return slog.Attr{}
				}
			case nil:
				return slog.Attr{}
			}
			return a
		},
	}))
}
