// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// admin-requests validates and enacts the conda-forge admin request
// queue.
//
// Each file in the queue directory is one request naming an action
// (archive, broken, token_reset, ...). "check" validates every file;
// "run" validates and then runs them one at a time, removing files
// that fully succeeded and rewriting partially successful ones with
// what is left to do. Each change is committed to the queue's git
// repository unless --no-commit is given.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conda-forge/admin-requests/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newApp(ctx).root().Execute(os.Args[1:])
}
