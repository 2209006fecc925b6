// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package github provides a typed client for the parts of the GitHub
// REST API that admin requests touch: repositories (existence,
// archiving, forks), git refs (branch and tag moves), file contents
// (the feedstock-outputs and feedstock-tokens registries), and pull
// requests.
//
// The client authenticates with a token, or anonymously when no token
// is configured (read-only checks on public repositories). It waits
// out rate limits (X-RateLimit-* and Retry-After headers), sends
// conditional GETs with cached ETags, and maps non-2xx responses to
// *APIError.
//
// All requests are made over HTTPS. The client refuses non-HTTPS base
// URLs.
package github
