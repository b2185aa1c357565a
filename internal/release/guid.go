// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package release

import (
	"crypto/md5" //nolint:gosec // GUID is an idempotency key, not a security boundary (§4.7)
	"encoding/hex"
	"regexp"
	"strings"
)

// GUID computes the deterministic idempotency key spec.md §4.7 defines as
// "a deterministic hash (e.g., MD5 hex) of (name, group_name)".
func GUID(name, groupName string) string {
	sum := md5.Sum([]byte(strings.ToLower(name) + "\x00" + strings.ToLower(groupName))) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

var searchNameNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SearchName derives the Store's search_name column from name: lowercase,
// non-alphanumerics replaced with spaces, collapsed (§4.7).
func SearchName(name string) string {
	s := searchNameNonAlnum.ReplaceAllString(strings.ToLower(name), " ")
	return strings.TrimSpace(s)
}
