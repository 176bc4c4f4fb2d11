package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/server"
)

// app holds state shared by every subcommand. The stack is opened lazily
// so --help never touches the database.
type app struct {
	inmem   bool
	verbose bool
	cfg     *common.Config
	logger  *slog.Logger
	stack   *server.Stack
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cvqueue",
		Short:         "Queue, run and inspect CV extraction jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			a.cfg = common.LoadConfig()
			if a.inmem {
				a.cfg.Database.DSN = ""
				a.cfg.Database.SQLitePath = ":memory:"
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.stack != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				a.stack.Close(ctx)
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.inmem, "inmem", false, "use a private in-memory SQLite store")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		enqueueCmd(a),
		statusCmd(a),
		listCmd(a),
		cancelCmd(a),
		statsCmd(a),
		workerCmd(a),
		extractCmd(a),
		reconcileCmd(a),
		exportCmd(a),
		ingestCmd(a),
	)
	return root
}

// open wires the stack on first use. needLLM rejects configs without
// provider credentials up front instead of failing every job.
func (a *app) open(ctx context.Context, needLLM bool) (*server.Stack, error) {
	if needLLM {
		if err := a.cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if a.stack != nil {
		return a.stack, nil
	}
	s, err := server.NewStack(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.stack = s
	return s, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var errUserRequired = errors.New("--user is required")
