// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for admin-requests.
//
// The central type is [Command]: a named command with optional nested
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// [Command.Execute] parses flags, routes to subcommands (falling back
// to [Command.Default] when no subcommand is named), and prints help
// with examples.
//
// Unknown subcommands and flags get a "did you mean" suggestion when a
// known name is within Levenshtein distance 3.
//
// [NewCommandLogger] builds the slog logger every command uses, and
// [WriteJSON] is the machine-readable output path behind --json.
package cli
