// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintPrefix names the digest algorithm in rendered fingerprints
// so the format can change without ambiguity.
const fingerprintPrefix = "blake3:"

// Fingerprint returns the BLAKE3-256 digest of a queue file's raw
// bytes, rendered as "blake3:<hex>". Commit trailers and run reports
// carry it so an audit can tie an outcome to the exact file content
// the run acted on.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}

// ShortFingerprint returns the first 12 hex digits of a fingerprint
// for human-readable output.
func ShortFingerprint(fingerprint string) string {
	digest := fingerprint
	if len(digest) > len(fingerprintPrefix) && digest[:len(fingerprintPrefix)] == fingerprintPrefix {
		digest = digest[len(fingerprintPrefix):]
	}
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return digest
}
