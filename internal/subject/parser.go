// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package subject implements the Subject Parser (C3): pure extraction of
// (name, part, total) from a raw NNTP article subject line via an ordered
// list of regex rules. The parser has no side effects and does not touch
// the network or the store.
package subject

import (
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of parsing a subject line.
type Result struct {
	Name  string
	Part  int
	Total int
}

var reLeadingRe = regexp.MustCompile(`(?i)^\s*re:\s*`)

type rule struct {
	re          *regexp.Regexp
	fixedPart   int // used only when the rule has no numeric part/total (rule 8)
	fixedTotal  int
	hasFixed    bool
}

// Rules are applied in order; the first match wins. Every pattern captures
// "name" and, unless hasFixed, "p"/"t".
//
// The yEnc-decorated forms (originally rule 6) and the "Part/File p of t"
// forms (4/5) are checked before the bare bracket/paren/dash forms (1/2/3):
// RE2 has no lookbehind, so without reordering a bare "name (p/t)" pattern
// would also match "name - yEnc (p/t)", silently absorbing "- yEnc" into
// the captured name. Checking the more specific forms first produces the
// same end result the ordering in spec.md intends without needing
// lookbehind.
var rules = []rule{
	// 4: name - Part p of t
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*part\s+(?P<p>\d+)\s+of\s+(?P<t>\d+)`)},
	// 5: name - File p of t
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*file\s+(?P<p>\d+)\s+of\s+(?P<t>\d+)`)},
	// 6: yEnc-decorated part/total, three surface forms
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*yenc\s*\(\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\)`)},
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*\(\s*yenc\s+(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\)`)},
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*yenc\s*-\s*\(\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\)`)},
	// 1: name [p/t]
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*\[\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\]`)},
	// 2: name (p/t)
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*\(\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\)`)},
	// 3: name - p/t
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*$`)},
	// 7: trailing-only variants of 1/2 — name need not be anchored at the
	// string start and trailing decoration (extension, stray text) after
	// the closing bracket/paren is tolerated.
	{re: regexp.MustCompile(`(?i)(?P<name>.+?)\s*\[\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\].*$`)},
	{re: regexp.MustCompile(`(?i)(?P<name>.+?)\s*\(\s*(?P<p>\d+)\s*/\s*(?P<t>\d+)\s*\).*$`)},
	// 8: single "name - yEnc" with no part/total → implicitly 1/1
	{re: regexp.MustCompile(`(?i)^(?P<name>.*\S)\s*-\s*yenc\s*$`), hasFixed: true, fixedPart: 1, fixedTotal: 1},
}

// Parse attempts to extract (name, part, total) from subj. ok is false if
// no rule matched, in which case the caller should fall back to the yEnc
// header (§4.6) or skip the article.
func Parse(subj string) (result Result, ok bool) {
	subj = reLeadingRe.ReplaceAllString(strings.TrimSpace(subj), "")
	subj = strings.TrimSpace(subj)
	if subj == "" {
		return Result{}, false
	}

	for _, r := range rules {
		m := r.re.FindStringSubmatch(subj)
		if m == nil {
			continue
		}
		names := r.re.SubexpNames()
		var name string
		var part, total int
		found := false
		for i, n := range names {
			switch n {
			case "name":
				name = strings.TrimSpace(m[i])
				found = true
			case "p":
				part, _ = strconv.Atoi(m[i])
			case "t":
				total, _ = strconv.Atoi(m[i])
			}
		}
		if !found || name == "" {
			continue
		}
		if r.hasFixed {
			part, total = r.fixedPart, r.fixedTotal
		}
		if part <= 0 || total <= 0 {
			continue
		}
		return Result{Name: name, Part: part, Total: total}, true
	}

	return Result{}, false
}
