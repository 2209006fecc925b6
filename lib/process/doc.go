// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers used by main before the
// structured logger exists or after it can no longer be trusted.
package process
