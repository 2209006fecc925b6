// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the admin-requests configuration file.
//
// The file is named by the --config flag (via [LoadFile]) or by the
// ADMIN_REQUESTS_CONFIG environment variable (via [Load]). Without
// either, [Default] applies: every field has a value suitable for the
// conda-forge admin-requests repository, so a checkout can be run
// with no configuration at all.
//
// Unknown keys are rejected. ${VAR} and ${VAR:-default} are expanded
// in path fields after loading. The only environment variable that
// overrides a value is GH_ORG, which replaces owner (see
// [Config.ApplyEnvironment]); tokens are never part of the file and
// are read by lib/secret.
package config
