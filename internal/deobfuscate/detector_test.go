// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package deobfuscate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsArchiveSuffixIteratively(t *testing.T) {
	require.Equal(t, "my.release.name", Normalize("My.Release.Name.part01.rar"))
	require.Equal(t, "my.release.name", Normalize("My.Release.Name.r00"))
	require.Equal(t, "my.release.name", Normalize("My.Release.Name."))
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize("Movie.2024.1080p.mkv.par2")
	twice := Normalize(once)
	require.Equal(t, once, twice)
}

func TestIsObfuscated_MD5Hash(t *testing.T) {
	require.True(t, IsObfuscated("d41d8cd98f00b204e9800998ecf8427e"))
}

func TestIsObfuscated_SHA1Hash(t *testing.T) {
	require.True(t, IsObfuscated("da39a3ee5e6b4b0d3255bfef95601890afd80709"))
}

func TestIsObfuscated_LongHexString(t *testing.T) {
	require.True(t, IsObfuscated("a1b2c3d4e5f60718"))
}

func TestIsObfuscated_Base64LikeString(t *testing.T) {
	require.True(t, IsObfuscated("xK9z_AbCdEfGhIjKlMnOpQ"))
}

func TestIsObfuscated_ShortRandomString(t *testing.T) {
	require.True(t, IsObfuscated("a8f9z2"))
}

func TestIsObfuscated_RealisticReleaseNameNotFlagged(t *testing.T) {
	require.False(t, IsObfuscated("Movie.2024.1080p.BluRay.x264-GRP"))
}

func TestIsObfuscated_StripsDecorationsFirst(t *testing.T) {
	require.True(t, IsObfuscated("d41d8cd98f00b204e9800998ecf8427e.part01.rar"))
}
