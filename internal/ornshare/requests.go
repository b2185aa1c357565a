// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ornshare

// contributeRequest is the validated body of POST /orn/contribute, the
// §6 community write endpoint. Confidence is clamped to
// deobfuscate.CommunityConfidenceCap downstream regardless of what's
// submitted here; the upper bound below only rejects obviously bogus
// values (e.g. a caller sending 5.0 expecting a scale of 1-5).
type contributeRequest struct {
	ObfuscatedHash string  `json:"obfuscated_hash" validate:"required,min=1,max=256"`
	RealName       string  `json:"real_name" validate:"required,min=1,max=512"`
	Confidence     float64 `json:"confidence" validate:"min=0,max=1"`
}

// mappingsQuery is the validated query-string parameters of GET /orn,
// the §6 community read endpoint.
type mappingsQuery struct {
	MinConfidence float64 `validate:"min=0,max=1"`
	Limit         int     `validate:"min=1,max=1000"`
}
