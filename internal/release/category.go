// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package release

import "regexp"

var (
	reYear       = regexp.MustCompile(`(?i)\b(19|20)\d{2}\b`)
	reResolution = regexp.MustCompile(`(?i)\b(480p|720p|1080p|2160p|4k)\b`)
	reCodec      = regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|hevc|avc)\b`)
	reEpisode    = regexp.MustCompile(`(?i)\bs\d{1,2}e\d{1,3}\b`)
	reMusic      = regexp.MustCompile(`(?i)\b(flac|mp3|320kbps|vbr|v0)\b`)
)

// classify returns the category name suggested by metadata hints found in
// name (season/episode, resolution, codec, year), or "" if none apply,
// per §4.7's "if deobfuscation/metadata extraction yields categorical
// hints... a category is assigned; otherwise... default".
func classify(name string) string {
	switch {
	case reEpisode.MatchString(name):
		return "TV"
	case reMusic.MatchString(name):
		return "Music"
	case reResolution.MatchString(name) || reCodec.MatchString(name):
		return "Movies"
	case reYear.MatchString(name):
		return "Movies"
	default:
		return ""
	}
}
