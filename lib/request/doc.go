// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package request defines the admin request data model and its file
// encodings.
//
// A [Request] is a string-keyed mapping decoded from a queue file. It
// always carries an "action" string naming the handler that enacts it;
// every other field is action-specific and opaque to this package.
// Typed accessors ([Request.Strings], [Request.Mappings], ...) return
// descriptive errors instead of panicking on wrong types, so handlers
// can turn schema problems into validation failures.
//
// Requests are values: handlers never mutate the Request they receive.
// [Request.With] and [Request.Clone] produce deep copies, which is how
// handlers build the residual request they return after a partial run.
//
// Queue files come in two encodings, selected by extension:
//
//   - YAML (.yml, .yaml), decoded with gopkg.in/yaml.v3
//   - JSON (.json, .jsonc), with comments and trailing commas stripped
//     by github.com/tidwall/jsonc before decoding
//
// [Decode] and [Encode] round-trip a Request through either format.
// [Fingerprint] computes the BLAKE3 digest used to identify the exact
// file content a run acted on.
package request
