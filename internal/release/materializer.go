// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package release implements the Release Materializer (C8, §4.7): it
// decides when an assembler.Binary has been observed enough to become a
// Release, resolves its final name and category, upserts it into the
// Store, and emits the matching NZB document.
package release

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/cartographus/internal/assembler"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/deobfuscate"
)

// minFractionDivisor is the "total/4" in max(2, total_parts/4) from §4.7's
// third completion trigger.
const minFractionDivisor = 4

// Materializer evaluates completion triggers against assembled Binaries,
// resolves their final name/category, and upserts+emits the resulting
// Release.
type Materializer struct {
	db       *database.DB
	pipeline *deobfuscate.Pipeline
	nzbDir   string
}

// New builds a Materializer. pipeline may be nil, in which case
// deobfuscated name resolution is skipped and the Binary's own name is
// always used as-is.
func New(db *database.DB, pipeline *deobfuscate.Pipeline, nzbDir string) *Materializer {
	return &Materializer{db: db, pipeline: pipeline, nzbDir: nzbDir}
}

// Trigger reports whether bin has been observed enough to materialize,
// per §4.7's four completion conditions (any one suffices):
//  1. total_parts known and fully observed
//  2. total_parts unknown (0) and at least one part observed
//  3. total_parts known and at least max(2, total_parts/4) observed
//  4. at least 5 parts observed regardless of total_parts
func Trigger(bin *assembler.Binary) bool {
	observed := bin.Observed()
	switch {
	case bin.TotalParts > 0 && observed >= bin.TotalParts:
		return true
	case bin.TotalParts == 0 && observed >= 1:
		return true
	case bin.TotalParts > 0 && observed >= quarterFloor(bin.TotalParts):
		return true
	case observed >= 5:
		return true
	default:
		return false
	}
}

func quarterFloor(total int) int {
	q := total / minFractionDivisor
	if q < 2 {
		return 2
	}
	return q
}

// CompletionPercent returns the Release's stored completion value (§4.7):
// 100 when total_parts is unknown, otherwise observed/total_parts clamped
// to 100.
func CompletionPercent(bin *assembler.Binary) float64 {
	if bin.TotalParts <= 0 {
		return 100
	}
	pct := 100 * float64(bin.Observed()) / float64(bin.TotalParts)
	if pct > 100 {
		return 100
	}
	return pct
}

// Materialize resolves bin's final name/category and upserts it as a
// Release, returning the stored row. It does not emit the NZB document;
// call EmitNZB separately once the caller wants the artifact written
// (typically right after a successful Materialize).
func (m *Materializer) Materialize(ctx context.Context, bin *assembler.Binary) (database.Release, error) {
	name := bin.Name
	if m.pipeline != nil && deobfuscate.IsObfuscated(name) {
		if res, err := m.pipeline.Deobfuscate(ctx, nil, deobfuscate.Input{
			Subject:   bin.Subject,
			GroupName: bin.GroupName,
			MessageID: firstMessageID(bin),
		}); err == nil && res.RealName != "" {
			name = res.RealName
		}
	}

	categoryID, err := m.resolveCategoryID(ctx, name)
	if err != nil {
		return database.Release{}, fmt.Errorf("resolve category: %w", err)
	}

	var groupID int64
	if bin.GroupName != "" {
		g, err := m.db.GroupByName(ctx, bin.GroupName)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return database.Release{}, fmt.Errorf("resolve group %q: %w", bin.GroupName, err)
		}
		groupID = g.ID
	}

	guid := GUID(name, bin.GroupName)
	r := database.Release{
		Name:       name,
		SearchName: SearchName(name),
		GUID:       guid,
		Size:       bin.SizeSum,
		Files:      bin.Observed(),
		Completion: CompletionPercent(bin),
		Status:     database.StatusActive,
		Passworded: database.PasswordedUnknown,
		CategoryID: categoryID,
		GroupID:    groupID,
	}

	id, err := m.db.UpsertRelease(ctx, r)
	if err != nil {
		return database.Release{}, fmt.Errorf("upsert release %q: %w", guid, err)
	}
	r.ID = id
	return r, nil
}

func (m *Materializer) resolveCategoryID(ctx context.Context, name string) (int64, error) {
	if catName := classify(name); catName != "" {
		return m.db.EnsureCategory(ctx, catName)
	}
	return m.db.DefaultCategoryID(ctx)
}

func firstMessageID(bin *assembler.Binary) string {
	ids := bin.OrderedMessageIDs()
	if len(ids) == 0 {
		return ""
	}
	seg, ok := bin.Parts[ids[0]]
	if !ok {
		return ""
	}
	return seg.MessageID
}

// nzbDocument is the root element of a Newzbin DTD 2003 NZB file (§6).
type nzbDocument struct {
	XMLName xml.Name  `xml:"nzb"`
	Xmlns   string    `xml:"xmlns,attr"`
	Files   []nzbFile `xml:"file"`
}

type nzbFile struct {
	Poster   string      `xml:"poster,attr"`
	Date     int64       `xml:"date,attr"`
	Subject  string      `xml:"subject,attr"`
	Groups   nzbGroups   `xml:"groups"`
	Segments nzbSegments `xml:"segments"`
}

type nzbGroups struct {
	Group []string `xml:"group"`
}

type nzbSegments struct {
	Segment []nzbSegment `xml:"segment"`
}

type nzbSegment struct {
	Bytes  int64  `xml:"bytes,attr"`
	Number int    `xml:"number,attr"`
	ID     string `xml:",chardata"`
}

const nzbXMLNS = "http://www.newzbin.com/DTD/2003/nzb"

// EmitNZB writes bin's NZB document to <nzbDir>/<guid>.nzb, atomically
// (temp file + fsync + rename) and skips writing entirely if a file for
// guid already exists (§6's skip-if-exists-by-guid rule).
func (m *Materializer) EmitNZB(guid string, bin *assembler.Binary, postedAt time.Time) error {
	if m.nzbDir == "" {
		return nil
	}
	path := filepath.Join(m.nzbDir, guid+".nzb")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat nzb %q: %w", path, err)
	}

	ids := bin.OrderedMessageIDs()
	segments := make([]nzbSegment, 0, len(ids))
	for i, n := range ids {
		seg := bin.Parts[n]
		segments = append(segments, nzbSegment{
			Bytes:  seg.Bytes,
			Number: i + 1,
			ID:     trimMessageIDBrackets(seg.MessageID),
		})
	}

	doc := nzbDocument{
		Xmlns: nzbXMLNS,
		Files: []nzbFile{{
			Poster:   bin.Poster,
			Date:     postedAt.Unix(),
			Subject:  bin.Subject,
			Groups:   nzbGroups{Group: []string{bin.GroupName}},
			Segments: nzbSegments{Segment: segments},
		}},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal nzb %q: %w", guid, err)
	}

	return writeAtomic(path, append([]byte(xml.Header), body...))
}

// trimMessageIDBrackets strips the surrounding <...> the NNTP wire format
// carries so the NZB segment body is the bare message id, matching how
// NZB readers expect it.
func trimMessageIDBrackets(id string) string {
	if len(id) >= 2 && id[0] == '<' && id[len(id)-1] == '>' {
		return id[1 : len(id)-1]
	}
	return id
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create nzb dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".nzb-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp nzb file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp nzb file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp nzb file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp nzb file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename nzb file into place: %w", err)
	}
	return nil
}
