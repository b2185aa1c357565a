// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package deobfuscate

import (
	"regexp"
	"strings"
)

// trailingArchiveSuffix matches one archive/part/volume extension at the
// end of a name, applied iteratively by Normalize (§4.5 rule 1).
var trailingArchiveSuffix = regexp.MustCompile(`(?i)\.(rar|par2|zip|7z|nfo|sfv|r\d{2}|part\d+|vol\d+\+\d+)$`)

var trailingPunctuation = regexp.MustCompile(`[.\-_\s]+$`)

// Normalize reduces a candidate name to the lowercase, suffix-stripped
// form used as the ORN cache key (§4.5 stage 1).
func Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for {
		stripped := trailingArchiveSuffix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = trailingPunctuation.ReplaceAllString(s, "")
	return s
}

var (
	reHex32   = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	reHex40   = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	reHex64   = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	reHex16   = regexp.MustCompile(`^[a-fA-F0-9]{16,}$`)
	reBase64  = regexp.MustCompile(`^[A-Za-z0-9_-]{22,}$`)
	reAlnum18 = regexp.MustCompile(`^[A-Za-z0-9]{18,}$`)
	reAlphaRun3 = regexp.MustCompile(`[A-Za-z]{3,}`)
)

// stripDecorations recursively removes trailing extension/part/volume
// suffixes the same way Normalize does, but preserves case (the detector
// cares about character classes, not case-folded comparison).
func stripDecorations(name string) string {
	s := strings.TrimSpace(name)
	for {
		stripped := trailingArchiveSuffix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return trailingPunctuation.ReplaceAllString(s, "")
}

// IsObfuscated reports whether name looks like a machine-generated
// placeholder rather than a human-chosen release name (§4.5's obfuscation
// detector), after stripping extension/part/vol decorations.
func IsObfuscated(name string) bool {
	s := stripDecorations(name)
	if s == "" {
		return true
	}
	switch {
	case reHex32.MatchString(s), reHex40.MatchString(s), reHex64.MatchString(s):
		return true
	case reHex16.MatchString(s):
		return true
	case reBase64.MatchString(s):
		return true
	case reAlnum18.MatchString(s):
		return true
	case len(s) < 10 && !reAlphaRun3.MatchString(s):
		return true
	}
	return false
}
