// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package archive implements the Archive Header Parsers (C5, §4.4):
// best-effort extraction of an embedded filename from a decoded yEnc byte
// prefix, tried in priority order PAR2 -> RAR4 -> RAR5 -> ZIP -> 7z. Each
// parser only needs the bounded prefix produced by internal/yenc, never
// the full binary.
package archive

import (
	"bytes"
	"encoding/binary"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	par2Magic = []byte("PAR2\x00PKT")
	rar4Magic = []byte("Rar!\x1A\x07\x00")
	rar5Magic = []byte("Rar!\x1A\x07\x01\x00")
	zipMagic  = []byte("PK\x03\x04")
	sevenZMagic = []byte("7z\xBC\xAF\x27\x1C")
)

// archiveExtensions is the whitelist consulted when a candidate filename's
// validity is otherwise ambiguous (§4.4).
var archiveExtensions = map[string]bool{
	".rar": true, ".r00": true, ".zip": true, ".7z": true, ".par2": true,
	".mkv": true, ".mp4": true, ".avi": true, ".iso": true, ".nfo": true,
}

// ExtractFilename attempts each parser in priority order against data (a
// decoded yEnc byte prefix) and returns the first valid filename found.
func ExtractFilename(data []byte) (string, bool) {
	if name, ok := par2Filename(data); ok {
		return name, true
	}
	if name, ok := rar4Filename(data); ok {
		return name, true
	}
	if name, ok := rar5Filename(data); ok {
		return name, true
	}
	if name, ok := zipFilename(data); ok {
		return name, true
	}
	if name, ok := sevenZFilename(data); ok {
		return name, true
	}
	return "", false
}

// par2Filename scans for PAR2 file-description packets and returns the
// first filename that isn't itself a .par2 index file.
func par2Filename(data []byte) (string, bool) {
	for idx := bytes.Index(data, par2Magic); idx >= 0; {
		// Packet length: 8 bytes LE at packet offset 8.
		lenOff := idx + 8
		if lenOff+8 > len(data) {
			break
		}
		pktLen := binary.LittleEndian.Uint64(data[lenOff : lenOff+8])
		if pktLen == 0 || pktLen > uint64(len(data)) {
			break
		}

		nameOff := idx + 64
		if nameOff < len(data) {
			end := bytes.IndexByte(data[nameOff:], 0)
			var raw []byte
			if end >= 0 {
				raw = data[nameOff : nameOff+end]
			} else {
				raw = data[nameOff:]
			}
			name := strings.TrimSpace(string(raw))
			if isValidFilename(name) && !strings.EqualFold(path.Ext(name), ".par2") {
				return path.Base(name), true
			}
		}

		next := bytes.Index(data[idx+len(par2Magic):], par2Magic)
		if next < 0 {
			break
		}
		idx = idx + len(par2Magic) + next
	}
	return "", false
}

// rar4Filename walks RAR4 block headers looking for a file block (type
// 0x74) and decodes its name_size-length filename.
func rar4Filename(data []byte) (string, bool) {
	start := bytes.Index(data, rar4Magic)
	if start < 0 {
		return "", false
	}
	pos := start + len(rar4Magic)

	for pos+7 <= len(data) {
		blockType := data[pos+2]
		blockSize := int(binary.LittleEndian.Uint16(data[pos+5 : pos+7]))
		if blockSize < 7 {
			break
		}

		if blockType == 0x74 {
			// File header: name_size is a 2-byte LE field at a fixed offset
			// within the extended file-header fields (offset 26 from block
			// start in the common RAR4 layout), followed immediately by the
			// filename.
			nameSizeOff := pos + 26
			if nameSizeOff+2 > len(data) {
				break
			}
			nameSize := int(binary.LittleEndian.Uint16(data[nameSizeOff : nameSizeOff+2]))
			nameOff := nameSizeOff + 2
			if nameSize <= 0 || nameOff+nameSize > len(data) {
				break
			}
			raw := data[nameOff : nameOff+nameSize]
			raw = bytes.TrimRight(raw, "\x00")
			name := decodeRARName(raw)
			if isValidFilename(name) {
				return path.Base(name), true
			}
			break
		}

		if pos+blockSize <= pos {
			break
		}
		pos += blockSize
	}
	return "", false
}

// decodeRARName tries UTF-8 first, falling back to a CP437-style byte pass
// (high bytes kept as Latin-1 code points, which recovers ASCII-range
// filenames, the overwhelming majority seen in Usenet RAR posts).
func decodeRARName(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}

// rar5Filename has no full vint-framing support here; instead it scans for
// a printable ASCII run terminated by NUL that looks like a plausible
// filename, per §4.4's documented fallback.
func rar5Filename(data []byte) (string, bool) {
	start := bytes.Index(data, rar5Magic)
	if start < 0 {
		return "", false
	}
	return scanPrintableASCIIFilename(data[start+len(rar5Magic):])
}

func scanPrintableASCIIFilename(data []byte) (string, bool) {
	var run []byte
	flush := func() (string, bool) {
		name := string(run)
		run = nil
		if isValidFilename(name) {
			return path.Base(name), true
		}
		return "", false
	}
	for _, b := range data {
		if b == 0 {
			if len(run) > 0 {
				if name, ok := flush(); ok {
					return name, true
				}
			}
			run = nil
			continue
		}
		if isPrintableASCII(b) {
			run = append(run, b)
			continue
		}
		run = nil
	}
	if len(run) > 0 {
		return flush()
	}
	return "", false
}

func isPrintableASCII(b byte) bool {
	return b >= 0x20 && b < 0x7F
}

// zipFilename reads the local file header's filename-length field and the
// filename bytes that follow it.
func zipFilename(data []byte) (string, bool) {
	start := bytes.Index(data, zipMagic)
	if start < 0 {
		return "", false
	}
	if start+30 > len(data) {
		return "", false
	}
	nameLen := int(binary.LittleEndian.Uint16(data[start+26 : start+28]))
	nameOff := start + 30
	if nameLen <= 0 || nameOff+nameLen > len(data) {
		return "", false
	}
	name := string(data[nameOff : nameOff+nameLen])
	name = strings.ReplaceAll(name, "\\", "/")
	if isValidFilename(name) {
		return path.Base(name), true
	}
	return "", false
}

// sevenZFilename scans for a run of UTF-16LE printable characters at least
// 10 runes long, the §4.4 fallback for 7z's opaque header format.
func sevenZFilename(data []byte) (string, bool) {
	start := bytes.Index(data, sevenZMagic)
	if start < 0 {
		return "", false
	}
	body := data[start+len(sevenZMagic):]

	var run []rune
	best := ""
	flush := func() {
		if len(run) >= 10 {
			name := string(run)
			if isValidFilename(name) && len(name) > len(best) {
				best = name
			}
		}
		run = nil
	}
	for i := 0; i+1 < len(body); i += 2 {
		u := binary.LittleEndian.Uint16(body[i : i+2])
		r := rune(u)
		if u != 0 && u < 0x7F && unicode.IsPrint(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()
	if best == "" {
		return "", false
	}
	return path.Base(best), true
}

// isValidFilename applies §4.4's validity rules: at least one '.', at
// least 3 alphabetic characters, must not start with "http", and must
// match the extension whitelist when the rest of the name is ambiguous
// (i.e. shorter than a handful of characters).
func isValidFilename(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || !strings.Contains(name, ".") {
		return false
	}
	if strings.HasPrefix(strings.ToLower(name), "http") {
		return false
	}

	alpha := 0
	for _, r := range name {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if alpha < 3 {
		return false
	}

	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if len(stem) < 4 {
		return archiveExtensions[strings.ToLower(path.Ext(base))]
	}
	return true
}
