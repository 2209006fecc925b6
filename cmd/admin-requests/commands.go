// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conda-forge/admin-requests/cmd/admin-requests/cli"
	"github.com/conda-forge/admin-requests/lib/batch"
	"github.com/conda-forge/admin-requests/lib/queue"
	"github.com/conda-forge/admin-requests/lib/version"
)

// app carries the process-level inputs of every command so tests can
// replace them.
type app struct {
	ctx    context.Context
	stdout io.Writer
	lookup func(string) (string, bool)

	// styled renders the text report with colors.
	styled bool

	// newLogger builds the command logger at the configured level.
	newLogger func(slog.Level) *slog.Logger

	// httpClient is shared by every API client and the member list fetch.
	// Nil uses http.DefaultClient.
	httpClient *http.Client
}

func newApp(ctx context.Context) *app {
	return &app{
		ctx:       ctx,
		stdout:    os.Stdout,
		lookup:    os.LookupEnv,
		styled:    cli.IsTerminal(os.Stdout),
		newLogger: cli.NewCommandLogger,
	}
}

// options are the flags shared by check, run, and actions.
type options struct {
	configPath string
	queueDir   string
	noCommit   bool
	logLevel   string
	json       bool
}

func (o *options) flags(name string, withCommit bool) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		flagSet.StringVarP(&o.configPath, "config", "c", "", "configuration file (default $ADMIN_REQUESTS_CONFIG, else built-in defaults)")
		flagSet.StringVar(&o.queueDir, "queue-dir", "", "request queue directory (overrides queue.dir)")
		flagSet.StringVar(&o.logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
		flagSet.BoolVar(&o.json, "json", false, "write the report as JSON")
		if withCommit {
			flagSet.BoolVar(&o.noCommit, "no-commit", false, "change request files without committing them")
		}
		return flagSet
	}
}

func (a *app) root() *cli.Command {
	checkOptions := &options{}
	runOptions := &options{}
	actionsOptions := &options{}

	return &cli.Command{
		Name:    "admin-requests",
		Summary: "Process the conda-forge admin request queue",
		Description: `Process the conda-forge admin request queue.

Every file in the queue directory is one request. "check" validates
them all; "run" validates and then enacts them, removing files that
succeeded and rewriting partially successful ones with what is left.`,
		Default: "run",
		Subcommands: []*cli.Command{
			{
				Name:    "check",
				Summary: "Validate every request without changing anything",
				Flags:   checkOptions.flags("check", false),
				Examples: []cli.Example{
					{Description: "Validate the queue in a pull request", Command: "admin-requests check --queue-dir requests"},
				},
				Run: func(args []string) error {
					if err := noArgs("check", args); err != nil {
						return err
					}
					return a.check(checkOptions)
				},
			},
			{
				Name:    "run",
				Summary: "Validate and enact every request",
				Flags:   runOptions.flags("run", true),
				Examples: []cli.Example{
					{Description: "Run the queue and commit each outcome", Command: "admin-requests run"},
					{Description: "Run without committing", Command: "admin-requests run --no-commit --json"},
				},
				Run: func(args []string) error {
					if err := noArgs("run", args); err != nil {
						return err
					}
					return a.run(runOptions)
				},
			},
			{
				Name:    "actions",
				Summary: "List the registered action names",
				Flags:   actionsOptions.flags("actions", false),
				Run: func(args []string) error {
					if err := noArgs("actions", args); err != nil {
						return err
					}
					return a.actions(actionsOptions)
				},
			},
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					_, err := fmt.Fprintln(a.stdout, version.Full())
					return err
				},
			},
		},
	}
}

func noArgs(command string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments, got %q", command, args)
	}
	return nil
}

func (a *app) check(opts *options) error {
	env, err := a.setup(opts)
	if err != nil {
		return err
	}
	defer env.close()

	loaded, err := env.load()
	if err != nil {
		return err
	}
	runner, err := batch.NewRunner(batch.Config{
		Registry: env.registry,
		RunID:    env.runID,
		Logger:   env.logger,
	})
	if err != nil {
		return err
	}

	report := runner.Check(a.ctx, loaded)
	return a.finish(opts, report)
}

func (a *app) run(opts *options) error {
	env, err := a.setup(opts)
	if err != nil {
		return err
	}
	defer env.close()

	loaded, err := env.load()
	if err != nil {
		return err
	}
	store, err := env.store(a.ctx)
	if err != nil {
		return err
	}
	runner, err := batch.NewRunner(batch.Config{
		Registry: env.registry,
		Store:    store,
		RunID:    env.runID,
		Logger:   env.logger,
	})
	if err != nil {
		return err
	}

	env.logger.Info("running request queue", "dir", loaded.Dir, "files", loaded.Len())
	report := runner.Run(a.ctx, loaded)
	return a.finish(opts, report)
}

// finish writes the report and converts a failed batch into exit code
// 1. The report already names every failure.
func (a *app) finish(opts *options, report *batch.Report) error {
	var err error
	if opts.json {
		err = cli.WriteJSON(a.stdout, newReportJSON(report))
	} else {
		err = renderReport(a.stdout, report, a.styled)
	}
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if report.Err() != nil {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func (a *app) actions(opts *options) error {
	env, err := a.setup(opts)
	if err != nil {
		return err
	}
	defer env.close()

	names := env.registry.Names()
	if opts.json {
		return cli.WriteJSON(a.stdout, names)
	}
	for _, name := range names {
		if _, err := fmt.Fprintln(a.stdout, name); err != nil {
			return err
		}
	}
	return nil
}

// store returns the queue store, committing through git unless
// commits are disabled.
func (env *environment) store(ctx context.Context) (*queue.Store, error) {
	var committer queue.Committer = queue.NoopCommitter{}
	if env.config.Queue.Commit {
		gitCommitter, err := queue.NewGitCommitter(ctx, env.config.Queue.Dir, env.logger, env.config.Git.Env()...)
		if err != nil {
			return nil, fmt.Errorf("%w (use --no-commit to run outside a repository)", err)
		}
		committer = gitCommitter
	}
	return queue.NewStore(env.config.Queue.Dir, committer, env.logger), nil
}
