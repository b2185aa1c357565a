// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package archive

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFilename_PAR2(t *testing.T) {
	name := "my.release.name.mkv"
	pkt := make([]byte, 64+len(name)+1)
	copy(pkt, par2Magic)
	binary.LittleEndian.PutUint64(pkt[8:16], uint64(len(pkt)))
	copy(pkt[64:], name)

	got, ok := ExtractFilename(pkt)
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestExtractFilename_PAR2_SkipsIndexFile(t *testing.T) {
	idxName := "my.release.name.par2"
	realName := "my.release.name.mkv"

	idxPkt := make([]byte, 64+len(idxName)+1)
	copy(idxPkt, par2Magic)
	binary.LittleEndian.PutUint64(idxPkt[8:16], uint64(len(idxPkt)))
	copy(idxPkt[64:], idxName)

	realPkt := make([]byte, 64+len(realName)+1)
	copy(realPkt, par2Magic)
	binary.LittleEndian.PutUint64(realPkt[8:16], uint64(len(realPkt)))
	copy(realPkt[64:], realName)

	data := append(idxPkt, realPkt...)
	got, ok := ExtractFilename(data)
	require.True(t, ok)
	require.Equal(t, realName, got)
}

func TestExtractFilename_ZIP(t *testing.T) {
	name := "movie.nfo"
	data := make([]byte, 30+len(name))
	copy(data, zipMagic)
	binary.LittleEndian.PutUint16(data[26:28], uint16(len(name)))
	copy(data[30:], name)

	got, ok := ExtractFilename(data)
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestExtractFilename_ZIP_StripsDirectoryPrefix(t *testing.T) {
	name := "subdir/movie.nfo"
	data := make([]byte, 30+len(name))
	copy(data, zipMagic)
	binary.LittleEndian.PutUint16(data[26:28], uint16(len(name)))
	copy(data[30:], name)

	got, ok := ExtractFilename(data)
	require.True(t, ok)
	require.Equal(t, "movie.nfo", got)
}

func TestExtractFilename_RAR4(t *testing.T) {
	name := "release.r00"
	block := make([]byte, 28+len(name))
	block[2] = 0x74
	binary.LittleEndian.PutUint16(block[5:7], uint16(len(block)))
	binary.LittleEndian.PutUint16(block[26:28], uint16(len(name)))
	copy(block[28:], name)

	data := append(append([]byte{}, rar4Magic...), block...)
	got, ok := ExtractFilename(data)
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestExtractFilename_RAR5_PrintableRunFallback(t *testing.T) {
	data := append(append([]byte{}, rar5Magic...), []byte{0x01, 0x02}...)
	data = append(data, []byte("release.archive.rar")...)
	data = append(data, 0x00)

	got, ok := ExtractFilename(data)
	require.True(t, ok)
	require.Equal(t, "release.archive.rar", got)
}

func TestExtractFilename_7z_UTF16Run(t *testing.T) {
	name := "my.great.release.iso"
	var buf []byte
	buf = append(buf, sevenZMagic...)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // non-printable separator
	for _, r := range name {
		u := make([]byte, 2)
		binary.LittleEndian.PutUint16(u, uint16(r))
		buf = append(buf, u...)
	}
	buf = append(buf, 0x00, 0x00)

	got, ok := ExtractFilename(buf)
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestExtractFilename_NoMagicReturnsNotFound(t *testing.T) {
	_, ok := ExtractFilename([]byte("nothing interesting here at all"))
	require.False(t, ok)
}

func TestIsValidFilename(t *testing.T) {
	require.True(t, isValidFilename("movie.mkv"))
	require.False(t, isValidFilename("noextension"))
	require.False(t, isValidFilename("http://example.com/x.mkv"))
	require.False(t, isValidFilename(".."))
	require.True(t, isValidFilename("a.b.rar"))
}
