// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the tokens an admin run needs and hands them to
// the tools that consume them.
//
// Each token lives in a [Buffer]: memory allocated with mmap outside
// the Go heap, locked against swap, and excluded from core dumps. A
// [Set] maps token names (GITHUB_TOKEN, PROD_BINSTAR_TOKEN, ...) to
// buffers and is filled from the environment or from files.
//
// conda-smithy reads provider tokens from ~/.conda-smithy/<name>.token.
// [WriteSmithyTokens] materializes the relevant subset of a Set there,
// each file created with mode 0600.
package secret
